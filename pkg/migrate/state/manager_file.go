package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// ErrRunNotFound : no log for the requested run id
var ErrRunNotFound = errors.New("run log not found")

// FileManager : keeps one json document per run under dir
type FileManager struct {
	fs   afero.Fs
	dir  string
	mu   sync.Mutex
	runs map[string]*RunLog
}

// NewFileManager : dir is created if missing
func NewFileManager(fs afero.Fs, dir string) (*FileManager, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("state: create %s : %w", dir, err)
	}
	return &FileManager{fs: fs, dir: dir, runs: make(map[string]*RunLog)}, nil
}

func (m *FileManager) GetLastRun() (*RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return nil, fmt.Errorf("state: list %s : %w", m.dir, err)
	}
	var last *RunLog
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".json") {
			continue
		}
		run, err := m.load(strings.TrimSuffix(fi.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		if last == nil || newer(run, last) {
			last = run
		}
	}
	return last, nil
}

func (m *FileManager) GetRunLog(runID string) (*RunLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(runID)
}

func (m *FileManager) InitRunLog(runID string, tables []config.TablePair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &RunLog{
		RunID:                 runID,
		TotalTablesForThisRun: len(tables),
		Status:                Started,
		Tables:                make([]*TableRunLog, 0, len(tables)),
		Base:                  Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
	}
	for i, p := range tables {
		run.Tables = append(run.Tables, &TableRunLog{
			ParentRunID:      runID,
			Index:            i,
			SourceTable:      p.Source,
			DestinationTable: p.Destination,
			Status:           Pending,
			Base:             Base{CreatedAt: currentTime(), UpdatedAt: currentTime()},
		})
	}
	m.runs[runID] = run
	return m.save(run)
}

func (m *FileManager) FailedRunLog(runID string, err error) error {
	return m.updateRunStatus(runID, Failed, err)
}

func (m *FileManager) PassedRunLog(runID string) error {
	return m.updateRunStatus(runID, Success, nil)
}

func (m *FileManager) InitTableRunLog(runID string, index int) error {
	return m.updateTable(runID, index, func(t *TableRunLog) {
		t.Status = Started
	})
}

func (m *FileManager) FailedTableRun(runID string, index int, err error) error {
	return m.updateTable(runID, index, func(t *TableRunLog) {
		t.Status = Failed
		if err != nil {
			t.ErrMsg = err.Error()
		}
	})
}

func (m *FileManager) PassedTableRun(runID string, index int, rowsWritten int) error {
	return m.updateTable(runID, index, func(t *TableRunLog) {
		t.Status = Success
		t.RowWritten = rowsWritten
	})
}

func (m *FileManager) SkippedTableRun(runID string, index int, reason string) error {
	return m.updateTable(runID, index, func(t *TableRunLog) {
		t.Status = Skipped
		t.Reason = reason
	})
}

func (m *FileManager) DidTableFailForRun(runID string) (bool, error) {
	run, err := m.GetRunLog(runID)
	if err != nil {
		return false, err
	}
	for _, t := range run.Tables {
		if t.Status == Failed {
			return true, nil
		}
	}
	return false, nil
}

func (m *FileManager) OnShutDownEv() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.Status != Started {
			continue
		}
		fmt.Printf("Run %s had status as %s , moving that to %s INSTEAD ... \n", run.RunID, Started, Aborted)
		run.Status = Aborted
		run.UpdatedAt = currentTime()
		for _, t := range run.Tables {
			if t.Status == Started {
				t.Status = Aborted
				t.UpdatedAt = currentTime()
			}
		}
		_ = m.save(run)
	}
}

func (m *FileManager) updateRunStatus(runID string, status RunLogState, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, lerr := m.load(runID)
	if lerr != nil {
		return lerr
	}
	run.Status = status
	if err != nil {
		run.ErrMsg = err.Error()
	}
	run.UpdatedAt = currentTime()
	if status == Failed {
		for _, t := range run.Tables {
			if t.Status == Started {
				t.Status = Aborted
			}
		}
	}
	return m.save(run)
}

func (m *FileManager) updateTable(runID string, index int, fn func(t *TableRunLog)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, err := m.load(runID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(run.Tables) {
		return fmt.Errorf("state: run %s has no table at index %d", runID, index)
	}
	fn(run.Tables[index])
	run.Tables[index].UpdatedAt = currentTime()
	run.UpdatedAt = currentTime()
	return m.save(run)
}

func (m *FileManager) load(runID string) (*RunLog, error) {
	if run, ok := m.runs[runID]; ok {
		return run, nil
	}
	b, err := afero.ReadFile(m.fs, m.path(runID))
	if err != nil {
		if exists, _ := afero.Exists(m.fs, m.path(runID)); !exists {
			return nil, fmt.Errorf("state: %s : %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("state: read %s : %w", runID, err)
	}
	var run RunLog
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("state: parse %s : %w", runID, err)
	}
	m.runs[runID] = &run
	return &run, nil
}

func (m *FileManager) save(run *RunLog) error {
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode %s : %w", run.RunID, err)
	}
	if err := afero.WriteFile(m.fs, m.path(run.RunID), b, 0644); err != nil {
		return fmt.Errorf("state: write %s : %w", run.RunID, err)
	}
	return nil
}

func (m *FileManager) path(runID string) string {
	return filepath.Join(m.dir, runID+".json")
}

func newer(a, b *RunLog) bool {
	if a.CreatedAt == nil {
		return false
	}
	if b.CreatedAt == nil {
		return true
	}
	return a.CreatedAt.After(*b.CreatedAt)
}
