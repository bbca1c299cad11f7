// package batch
//
// turns a stream of records into write calls no larger than the store allows
package batch

import (
	"context"
	"fmt"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
)

// WriteError : a batch the destination refused
type WriteError struct {
	Table  string
	Size   int
	Sample record.Record // first record of the batch
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("batch write of %d records to %s : %v", e.Size, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer : buffers records for one destination table. not safe for concurrent use
type Writer struct {
	dest    store.Adapter
	table   string
	cap     int
	buf     []record.Record
	count   int
	batches int
	onFlush func(written int)
}

// New : size <= 0 or above the adapter's limit falls back to the adapter's limit
func New(dest store.Adapter, table string, size int) *Writer {
	limit := dest.MaxBatchSize()
	if size <= 0 || size > limit {
		size = limit
	}
	return &Writer{
		dest:  dest,
		table: table,
		cap:   size,
		buf:   make([]record.Record, 0, size),
	}
}

// OnFlush : called after every successful write with the running record count
func (w *Writer) OnFlush(fn func(written int)) *Writer {
	w.onFlush = fn
	return w
}

// Add : buffers records, writing a batch each time the buffer fills up
func (w *Writer) Add(ctx context.Context, records ...record.Record) error {
	for _, r := range records {
		w.buf = append(w.buf, r)
		if len(w.buf) == w.cap {
			if err := w.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush : writes whatever is buffered, no op when empty
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	batch := w.buf
	w.buf = make([]record.Record, 0, w.cap)
	if err := w.dest.BatchWrite(ctx, w.table, batch); err != nil {
		return &WriteError{Table: w.table, Size: len(batch), Sample: batch[0], Err: err}
	}
	w.count += len(batch)
	w.batches++
	if w.onFlush != nil {
		w.onFlush(w.count)
	}
	return nil
}

// Count : records written so far
func (w *Writer) Count() int { return w.count }

// Batches : successful write calls so far
func (w *Writer) Batches() int { return w.batches }

// Size : effective batch cap
func (w *Writer) Size() int { return w.cap }
