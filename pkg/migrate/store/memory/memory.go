// package memory
//
// in process store adapter. tables keep insertion order and overwrite by key,
// which is what dry runs and the engine tests need
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
)

const (
	DefaultPageSize  = 25
	DefaultBatchSize = 25
)

type table struct {
	keys  []string
	items map[string]record.Record
}

// Store : goroutine safe in memory store
type Store struct {
	mu         sync.RWMutex
	tables     map[string]*table
	keyAttrs   []string
	pageSize   int
	batchSize  int
	autoCreate bool
}

// Option : configures a Store
type Option func(*Store)

// WithPageSize : max records per ScanPage
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithBatchSize : max records per BatchWrite
func WithBatchSize(n int) Option {
	return func(s *Store) { s.batchSize = n }
}

// WithAutoCreate : every table exists, an unknown one is created empty on first
// use. turns the store into a dry run target that keeps what a job would write
func WithAutoCreate() Option {
	return func(s *Store) { s.autoCreate = true }
}

// New : keyAttrs name the attributes forming the primary key of every table
func New(keyAttrs []string, opts ...Option) *Store {
	s := &Store{
		tables:    make(map[string]*table),
		keyAttrs:  keyAttrs,
		pageSize:  DefaultPageSize,
		batchSize: DefaultBatchSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	return s
}

// CreateTable : provisions an empty table, no op if it already exists
func (s *Store) CreateTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = &table{items: make(map[string]record.Record)}
	}
}

// Put : seeds records without the batch limit
func (s *Store) Put(name string, records ...record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("memory: put %s : %w", name, store.ErrTableNotFound)
	}
	return s.put(t, records)
}

// Items : snapshot of a table in insertion order
func (s *Store) Items(name string) []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]record.Record, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.items[k])
	}
	return out
}

func (s *Store) Exists(_ context.Context, name string) (bool, error) {
	if s.autoCreate {
		s.CreateTable(name)
		return true, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[name]
	return ok, nil
}

func (s *Store) ScanPage(_ context.Context, name string, cursor store.Cursor) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return store.Page{}, fmt.Errorf("memory: scan %s : %w", name, store.ErrTableNotFound)
	}
	offset := 0
	if cursor != store.None {
		n, err := strconv.Atoi(string(cursor))
		if err != nil || n < 0 {
			return store.Page{}, fmt.Errorf("memory: bad cursor %q", cursor)
		}
		offset = n
	}
	if offset > len(t.keys) {
		offset = len(t.keys)
	}
	end := offset + s.pageSize
	if end > len(t.keys) {
		end = len(t.keys)
	}
	page := store.Page{Records: make([]record.Record, 0, end-offset)}
	for _, k := range t.keys[offset:end] {
		page.Records = append(page.Records, t.items[k])
	}
	if end < len(t.keys) {
		page.Next = store.Cursor(strconv.Itoa(end))
	}
	return page, nil
}

func (s *Store) BatchWrite(_ context.Context, name string, records []record.Record) error {
	if len(records) > s.batchSize {
		return fmt.Errorf("memory: write %d records to %s : %w", len(records), name, store.ErrBatchTooLarge)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok && s.autoCreate {
		t = &table{items: make(map[string]record.Record)}
		s.tables[name] = t
		ok = true
	}
	if !ok {
		return fmt.Errorf("memory: write %s : %w", name, store.ErrTableNotFound)
	}
	return s.put(t, records)
}

func (s *Store) MaxBatchSize() int {
	return s.batchSize
}

func (s *Store) put(t *table, records []record.Record) error {
	for _, r := range records {
		k, err := r.KeyString(s.keyAttrs)
		if err != nil {
			return err
		}
		if _, seen := t.items[k]; !seen {
			t.keys = append(t.keys, k)
		}
		t.items[k] = r
	}
	return nil
}
