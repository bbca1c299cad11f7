package walker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays a fixed list of pages, page i carries cursor "i+1" unless it is the last
type scripted struct {
	pages   [][]record.Record
	cursors []store.Cursor
	seen    []store.Cursor
	failAt  int
}

func (s *scripted) Exists(context.Context, string) (bool, error) { return true, nil }
func (s *scripted) MaxBatchSize() int { return 25 }
func (s *scripted) BatchWrite(context.Context, string, []record.Record) error {
	return errors.New("read only")
}

func (s *scripted) ScanPage(_ context.Context, _ string, c store.Cursor) (store.Page, error) {
	s.seen = append(s.seen, c)
	i := len(s.seen) - 1
	if s.failAt > 0 && len(s.seen) == s.failAt {
		return store.Page{}, errors.New("boom")
	}
	p := store.Page{Records: s.pages[i]}
	if s.cursors != nil {
		p.Next = s.cursors[i]
	} else if i < len(s.pages)-1 {
		p.Next = store.Cursor(fmt.Sprint(i + 1))
	}
	return p, nil
}

func recs(from, n int) []record.Record {
	out := make([]record.Record, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, record.Record{"pk": record.Number(fmt.Sprint(i))})
	}
	return out
}

func TestWalkIssuesOneScanPerPageAndKeepsOrder(t *testing.T) {
	s := &scripted{pages: [][]record.Record{recs(0, 3), recs(3, 3), recs(6, 1)}}
	var got []record.Record

	stats, err := Walk(context.Background(), s, "t", func(rs []record.Record) error {
		got = append(got, rs...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 3, Records: 7}, stats)
	assert.Equal(t, []store.Cursor{store.None, "1", "2"}, s.seen)
	require.Len(t, got, 7)
	for i, r := range got {
		assert.Equal(t, fmt.Sprint(i), r["pk"].Str())
	}
}

func TestWalkToleratesEmptyPagesWithCursor(t *testing.T) {
	s := &scripted{pages: [][]record.Record{recs(0, 2), {}, {}, recs(2, 1)}}
	var yields int

	stats, err := Walk(context.Background(), s, "t", func(rs []record.Record) error {
		yields++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Pages)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 4, yields)
}

func TestWalkSingleEmptyTable(t *testing.T) {
	s := &scripted{pages: [][]record.Record{{}}}
	stats, err := Walk(context.Background(), s, "t", func([]record.Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Stats{Pages: 1}, stats)
}

func TestWalkStopsOnScanError(t *testing.T) {
	s := &scripted{pages: [][]record.Record{recs(0, 1), recs(1, 1), recs(2, 1)}, failAt: 2}
	stats, err := Walk(context.Background(), s, "t", func([]record.Record) error { return nil })
	assert.EqualError(t, err, "scan t (page 2) : boom")
	assert.Equal(t, 1, stats.Pages)
}

func TestWalkStopsOnYieldError(t *testing.T) {
	s := &scripted{pages: [][]record.Record{recs(0, 1), recs(1, 1)}}
	wantErr := errors.New("write failed")
	_, err := Walk(context.Background(), s, "t", func([]record.Record) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.Len(t, s.seen, 1)
}

func TestWalkDetectsStalledCursor(t *testing.T) {
	s := &scripted{
		pages:   [][]record.Record{recs(0, 1), recs(1, 1)},
		cursors: []store.Cursor{"a", "a"},
	}
	_, err := Walk(context.Background(), s, "t", func([]record.Record) error { return nil })
	assert.ErrorIs(t, err, ErrCursorStalled)
}

func TestWalkHonorsCancellationBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &scripted{pages: [][]record.Record{recs(0, 1), recs(1, 1)}}
	_, err := Walk(ctx, s, "t", func([]record.Record) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, s.seen, 1)
}
