package state

import (
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
)

type RunLogState string

const (
	Pending RunLogState = "PENDING"
	Started RunLogState = "STARTED"
	Success RunLogState = "SUCCESS"
	Aborted RunLogState = "ABORTED"
	Failed  RunLogState = "FAILED"
	Skipped RunLogState = "SKIPPED"
)

type Base struct {
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type RunLog struct {
	RunID                 string         `json:"run_id"`
	TotalTablesForThisRun int            `json:"total_tables_for_run"`
	Status                RunLogState    `json:"status"`
	ErrMsg                string         `json:"err_msg,omitempty"`
	Tables                []*TableRunLog `json:"tables"`
	Base
}

// TableRunLog : outcome of one table pair. Index is the pair's position in the mapping
type TableRunLog struct {
	ParentRunID      string      `json:"parent_run_id"`
	Index            int         `json:"index"`
	SourceTable      string      `json:"source_table"`
	DestinationTable string      `json:"destination_table"`
	RowWritten       int         `json:"rows_written_target"`
	Status           RunLogState `json:"status"`
	Reason           string      `json:"reason,omitempty"`
	ErrMsg           string      `json:"err_msg,omitempty"`
	Base
}

// Manager : records what each run did. it is an audit trail, it never holds scan positions
type Manager interface {
	// GetLastRun : most recent run or nil when there is none
	GetLastRun() (*RunLog, error)
	// GetRunLog : a specific run log
	GetRunLog(runID string) (*RunLog, error)
	// InitRunLog : start a run log, every pair is recorded as PENDING
	InitRunLog(runID string, tables []config.TablePair) error
	FailedRunLog(runID string, err error) error
	PassedRunLog(runID string) error
	InitTableRunLog(runID string, index int) error
	FailedTableRun(runID string, index int, err error) error
	PassedTableRun(runID string, index int, rowsWritten int) error
	SkippedTableRun(runID string, index int, reason string) error
	DidTableFailForRun(runID string) (bool, error)
	// OnShutDownEv : moves whatever is still STARTED to ABORTED
	OnShutDownEv()
}

// Nop : manager that remembers nothing
type Nop struct{}

func (Nop) GetLastRun() (*RunLog, error) { return nil, nil }
func (Nop) GetRunLog(string) (*RunLog, error) { return nil, ErrRunNotFound }
func (Nop) InitRunLog(string, []config.TablePair) error { return nil }
func (Nop) FailedRunLog(string, error) error { return nil }
func (Nop) PassedRunLog(string) error { return nil }
func (Nop) InitTableRunLog(string, int) error { return nil }
func (Nop) FailedTableRun(string, int, error) error { return nil }
func (Nop) PassedTableRun(string, int, int) error { return nil }
func (Nop) SkippedTableRun(string, int, string) error { return nil }
func (Nop) DidTableFailForRun(string) (bool, error) { return false, nil }
func (Nop) OnShutDownEv() {}

func currentTime() *time.Time {
	now := time.Now().UTC()
	return &now
}
