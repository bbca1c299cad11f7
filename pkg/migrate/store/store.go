// package store
//
// capability interface over a key-value store that can be scanned page by page
// and written to in bounded batches
package store

import (
	"context"
	"errors"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
)

var (
	// ErrTableNotFound : the store reported the table does not exist
	ErrTableNotFound = errors.New("table not found")
	// ErrBatchTooLarge : a write carried more records than the store accepts per call
	ErrBatchTooLarge = errors.New("batch exceeds store item limit")
)

// Cursor : opaque continuation token, only the adapter that produced it understands it
type Cursor string

// None : start of table on input, end of table on output
const None Cursor = ""

// Page : one scan result
type Page struct {
	Records []record.Record
	Next    Cursor
}

// Done : true when the store reported no continuation
func (p Page) Done() bool {
	return p.Next == None
}

// Adapter : what the migration engine needs from a store
type Adapter interface {
	// Exists : false only when the store says the table is missing, every other failure is an error
	Exists(ctx context.Context, table string) (bool, error)
	// ScanPage : next page of the table starting at cursor
	ScanPage(ctx context.Context, table string, cursor Cursor) (Page, error)
	// BatchWrite : put (insert or overwrite by key) at most MaxBatchSize records
	BatchWrite(ctx context.Context, table string, records []record.Record) error
	// MaxBatchSize : hard per call item limit of BatchWrite
	MaxBatchSize() int
}

// IsNotFound : reports whether err carries the not found signal
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}
