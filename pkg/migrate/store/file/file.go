// package file
//
// store adapter over a directory tree. every table is a directory and every
// batch write lands in its own part-NNNNNN.jsonl file, one record per line
package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/spf13/afero"
)

const (
	DefaultPageSize  = 100
	DefaultBatchSize = 500

	partPrefix = "part-"
	partSuffix = ".jsonl"
)

// Store : tables live under root on fs. writes append, they never replace
// earlier parts, so re-running into the same directory duplicates records
type Store struct {
	fs        afero.Fs
	root      string
	pageSize  int
	batchSize int
	mu        sync.Mutex
}

// New : pageSize and batchSize <= 0 use the defaults
func New(fs afero.Fs, root string, pageSize, batchSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{fs: fs, root: root, pageSize: pageSize, batchSize: batchSize}
}

// CreateTable : makes the table directory
func (s *Store) CreateTable(table string) error {
	return s.fs.MkdirAll(s.dir(table), 0755)
}

func (s *Store) Exists(_ context.Context, table string) (bool, error) {
	ok, err := afero.DirExists(s.fs, s.dir(table))
	if err != nil {
		return false, fmt.Errorf("file: stat %s : %w", table, err)
	}
	return ok, nil
}

// ScanPage : cursor is "<part>:<line>:<end>". end is the part count when the walk
// started, parts written during the walk are not read. pages stop at the end of a
// part file so they can come back short, or empty for an empty part
func (s *Store) ScanPage(_ context.Context, table string, cursor store.Cursor) (store.Page, error) {
	parts, err := s.parts(table)
	if err != nil {
		return store.Page{}, err
	}
	part, line, end, err := parseCursor(cursor)
	if err != nil {
		return store.Page{}, err
	}
	if cursor == store.None || end > len(parts) {
		end = len(parts)
	}
	if part >= end {
		return store.Page{Records: []record.Record{}}, nil
	}

	f, err := s.fs.Open(filepath.Join(s.dir(table), parts[part]))
	if err != nil {
		return store.Page{}, fmt.Errorf("file: open %s : %w", parts[part], err)
	}
	defer f.Close()

	var (
		page    = store.Page{Records: make([]record.Record, 0, s.pageSize)}
		sc      = bufio.NewScanner(f)
		lineNo  = 0
		hasMore = false
	)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		lineNo++
		if lineNo <= line {
			continue
		}
		if len(page.Records) == s.pageSize {
			hasMore = true
			break
		}
		r, err := record.Decode(raw)
		if err != nil {
			return store.Page{}, fmt.Errorf("file: %s line %d : %w", parts[part], lineNo, err)
		}
		page.Records = append(page.Records, r)
	}
	if err := sc.Err(); err != nil {
		return store.Page{}, fmt.Errorf("file: read %s : %w", parts[part], err)
	}

	switch {
	case hasMore:
		page.Next = formatCursor(part, line+len(page.Records), end)
	case part+1 < end:
		page.Next = formatCursor(part+1, 0, end)
	}
	return page, nil
}

// BatchWrite : writes the records to a new part file
func (s *Store) BatchWrite(_ context.Context, table string, records []record.Record) error {
	if len(records) > s.batchSize {
		return fmt.Errorf("file: write %d records to %s : %w", len(records), table, store.ErrBatchTooLarge)
	}
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := s.parts(table)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, r := range records {
		b, err := record.Encode(r)
		if err != nil {
			return fmt.Errorf("file: encode for %s : %w", table, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	name := filepath.Join(s.dir(table), partName(nextPartIndex(parts)))
	if err := afero.WriteFile(s.fs, name, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("file: write %s : %w", name, err)
	}
	return nil
}

func (s *Store) MaxBatchSize() int {
	return s.batchSize
}

func (s *Store) dir(table string) string {
	return filepath.Join(s.root, table)
}

func (s *Store) parts(table string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file: %s : %w", table, store.ErrTableNotFound)
		}
		return nil, fmt.Errorf("file: list %s : %w", table, err)
	}
	var parts []string
	for _, fi := range infos {
		if !fi.IsDir() && strings.HasPrefix(fi.Name(), partPrefix) && strings.HasSuffix(fi.Name(), partSuffix) {
			parts = append(parts, fi.Name())
		}
	}
	sort.Strings(parts)
	return parts, nil
}

func partName(i int) string {
	return fmt.Sprintf("%s%06d%s", partPrefix, i, partSuffix)
}

func nextPartIndex(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	last := strings.TrimSuffix(strings.TrimPrefix(parts[len(parts)-1], partPrefix), partSuffix)
	n, err := strconv.Atoi(last)
	if err != nil {
		return len(parts)
	}
	return n + 1
}

func formatCursor(part, line, end int) store.Cursor {
	return store.Cursor(fmt.Sprintf("%d:%d:%d", part, line, end))
}

func parseCursor(c store.Cursor) (part, line, end int, err error) {
	if c == store.None {
		return 0, 0, 0, nil
	}
	fields := strings.Split(string(c), ":")
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("file: bad cursor %q", c)
	}
	var n [3]int
	for i, f := range fields {
		if n[i], err = strconv.Atoi(f); err != nil || n[i] < 0 {
			return 0, 0, 0, fmt.Errorf("file: bad cursor %q", c)
		}
	}
	return n[0], n[1], n[2], nil
}
