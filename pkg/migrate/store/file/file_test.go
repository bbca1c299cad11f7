package file

import (
	"context"
	"fmt"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recs(from, n int) []record.Record {
	out := make([]record.Record, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, record.Record{"pk": record.String(fmt.Sprintf("k%02d", i)), "v": record.Binary([]byte{byte(i)})})
	}
	return out
}

func drain(t *testing.T, s *Store, table string) ([]record.Record, int) {
	t.Helper()
	var (
		all    []record.Record
		pages  int
		cursor = store.None
	)
	for {
		p, err := s.ScanPage(context.Background(), table, cursor)
		require.NoError(t, err)
		pages++
		all = append(all, p.Records...)
		if p.Done() {
			return all, pages
		}
		cursor = p.Next
	}
}

func TestWriteThenScan(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/data", 2, 3)
	ctx := context.Background()
	require.NoError(t, s.CreateTable("orders"))

	require.NoError(t, s.BatchWrite(ctx, "orders", recs(0, 3)))
	require.NoError(t, s.BatchWrite(ctx, "orders", recs(3, 1)))

	ok, err := afero.Exists(fs, "/data/orders/part-000001.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)

	all, pages := drain(t, s, "orders")
	require.Len(t, all, 4)
	// part 0 yields 2 + 1, part 1 yields 1
	assert.Equal(t, 3, pages)
	for i, r := range all {
		assert.True(t, recs(i, 1)[0].Equal(r))
	}
}

func TestEmptyTableIsOnePage(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/data", 0, 0)
	require.NoError(t, s.CreateTable("empty"))
	all, pages := drain(t, s, "empty")
	assert.Empty(t, all)
	assert.Equal(t, 1, pages)
}

func TestExistsAndNotFound(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/data", 0, 0)
	ctx := context.Background()
	require.NoError(t, s.CreateTable("here"))

	ok, err := s.Exists(ctx, "here")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ScanPage(ctx, "gone", store.None)
	assert.True(t, store.IsNotFound(err))
	assert.True(t, store.IsNotFound(s.BatchWrite(ctx, "gone", recs(0, 1))))
}

func TestBatchLimitAndBadCursor(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/data", 0, 2)
	ctx := context.Background()
	require.NoError(t, s.CreateTable("t"))

	assert.ErrorIs(t, s.BatchWrite(ctx, "t", recs(0, 3)), store.ErrBatchTooLarge)
	_, err := s.ScanPage(ctx, "t", "garbage")
	assert.Error(t, err)
}

func TestPartsWrittenDuringAWalkAreNotRead(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/data", 2, 2)
	ctx := context.Background()
	require.NoError(t, s.CreateTable("t"))
	require.NoError(t, s.BatchWrite(ctx, "t", recs(0, 2)))
	require.NoError(t, s.BatchWrite(ctx, "t", recs(2, 2)))

	var (
		seen   int
		cursor = store.None
	)
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "walk did not end")
		p, err := s.ScanPage(ctx, "t", cursor)
		require.NoError(t, err)
		seen += len(p.Records)
		// copy the table onto itself while reading it
		require.NoError(t, s.BatchWrite(ctx, "t", p.Records))
		if p.Done() {
			break
		}
		cursor = p.Next
	}
	assert.Equal(t, 4, seen)

	all, _ := drain(t, s, "t")
	assert.Len(t, all, 8)
}
