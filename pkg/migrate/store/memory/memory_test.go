package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(i int) record.Record {
	return record.Record{"pk": record.String(fmt.Sprintf("id-%03d", i)), "n": record.Number(fmt.Sprint(i))}
}

func TestScanPagesInInsertionOrder(t *testing.T) {
	s := New([]string{"pk"}, WithPageSize(2))
	s.CreateTable("t")
	require.NoError(t, s.Put("t", item(1), item(2), item(3)))

	p1, err := s.ScanPage(context.Background(), "t", store.None)
	require.NoError(t, err)
	assert.Len(t, p1.Records, 2)
	assert.False(t, p1.Done())

	p2, err := s.ScanPage(context.Background(), "t", p1.Next)
	require.NoError(t, err)
	assert.Len(t, p2.Records, 1)
	assert.True(t, p2.Done())
	assert.True(t, item(3).Equal(p2.Records[0]))
}

func TestBatchWriteOverwritesByKey(t *testing.T) {
	s := New([]string{"pk"})
	s.CreateTable("t")
	ctx := context.Background()

	require.NoError(t, s.BatchWrite(ctx, "t", []record.Record{item(1), item(2)}))
	changed := item(1)
	changed["n"] = record.Number("100")
	require.NoError(t, s.BatchWrite(ctx, "t", []record.Record{changed}))

	items := s.Items("t")
	require.Len(t, items, 2)
	assert.Equal(t, "100", items[0]["n"].Str())
}

func TestMissingTable(t *testing.T) {
	s := New([]string{"pk"})
	ctx := context.Background()

	ok, err := s.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.ScanPage(ctx, "nope", store.None)
	assert.True(t, store.IsNotFound(err))
	assert.True(t, store.IsNotFound(s.BatchWrite(ctx, "nope", nil)))
}

func TestBatchLimit(t *testing.T) {
	s := New([]string{"pk"}, WithBatchSize(2))
	s.CreateTable("t")
	err := s.BatchWrite(context.Background(), "t", []record.Record{item(1), item(2), item(3)})
	assert.ErrorIs(t, err, store.ErrBatchTooLarge)
	assert.Equal(t, 2, s.MaxBatchSize())
}

func TestAutoCreateMakesEveryTableExist(t *testing.T) {
	s := New([]string{"pk"}, WithAutoCreate())
	ctx := context.Background()

	ok, err := s.Exists(ctx, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := s.ScanPage(ctx, "anything", store.None)
	require.NoError(t, err)
	assert.Empty(t, p.Records)
	assert.True(t, p.Done())

	require.NoError(t, s.BatchWrite(ctx, "never-checked", []record.Record{item(1)}))
	assert.Len(t, s.Items("never-checked"), 1)

	strict := New([]string{"pk"})
	ok, err = strict.Exists(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}
