// package walker
//
// drains a whole table by following scan cursors until the store reports none
package walker

import (
	"context"
	"errors"
	"fmt"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
)

// ErrCursorStalled : the store handed back the cursor it was given
var ErrCursorStalled = errors.New("scan cursor did not advance")

// Stats : what a walk observed
type Stats struct {
	Pages   int
	Records int
}

// YieldFunc : receives each page's records in scan order, may be called with an empty slice
type YieldFunc func(records []record.Record) error

// Walk : scans table from the start, handing every page to yield. only a page
// without a cursor ends the walk, empty pages that carry one keep it going.
// ctx is checked between pages
func Walk(ctx context.Context, a store.Adapter, table string, yield YieldFunc) (Stats, error) {
	var (
		stats  Stats
		cursor = store.None
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := a.ScanPage(ctx, table, cursor)
		if err != nil {
			return stats, fmt.Errorf("scan %s (page %d) : %w", table, stats.Pages+1, err)
		}
		stats.Pages++
		stats.Records += len(page.Records)
		if err := yield(page.Records); err != nil {
			return stats, err
		}
		if page.Done() {
			return stats, nil
		}
		if page.Next == cursor {
			return stats, fmt.Errorf("scan %s (page %d) : %w", table, stats.Pages, ErrCursorStalled)
		}
		cursor = page.Next
	}
}
