package batch

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

type recorder struct {
	limit int
	sizes []int
	got   []record.Record
	err   error
}

func (r *recorder) Exists(context.Context, string) (bool, error) { return true, nil }
func (r *recorder) MaxBatchSize() int { return r.limit }
func (r *recorder) ScanPage(context.Context, string, store.Cursor) (store.Page, error) {
	return store.Page{}, nil
}

func (r *recorder) BatchWrite(_ context.Context, _ string, rs []record.Record) error {
	if r.err != nil {
		return r.err
	}
	r.sizes = append(r.sizes, len(rs))
	r.got = append(r.got, rs...)
	return nil
}

func stream(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Record{"pk": record.Number(fmt.Sprint(i))}
	}
	return out
}

func TestBatchSizes(t *testing.T) {
	cases := []struct {
		n, cap int
		want   []int
	}{
		{0, 25, nil},
		{1, 25, []int{1}},
		{25, 25, []int{25}},
		{53, 25, []int{25, 25, 3}},
		{75, 25, []int{25, 25, 25}},
		{10, 3, []int{3, 3, 3, 1}},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%d_by_%d", c.n, c.cap), func(t *testing.T) {
			dest := &recorder{limit: 25}
			w := New(dest, "t", c.cap)
			require.NoError(t, w.Add(context.Background(), stream(c.n)...))
			require.NoError(t, w.Flush(context.Background()))

			assert.Equal(t, c.want, dest.sizes)
			assert.Equal(t, c.n, w.Count())
			assert.Equal(t, len(c.want), w.Batches())
			for i, r := range dest.got {
				assert.Equal(t, fmt.Sprint(i), r["pk"].Str())
			}
		})
	}
}

func TestAddAcrossPagesKeepsFillingTheSameBatch(t *testing.T) {
	dest := &recorder{limit: 25}
	w := New(dest, "t", 4)
	ctx := context.Background()
	all := stream(7)

	require.NoError(t, w.Add(ctx, all[:3]...))
	require.NoError(t, w.Add(ctx))
	require.NoError(t, w.Add(ctx, all[3:]...))
	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, []int{4, 3}, dest.sizes)
}

func TestCapIsClampedToStoreLimit(t *testing.T) {
	assert.Equal(t, 25, New(&recorder{limit: 25}, "t", 100).Size())
	assert.Equal(t, 25, New(&recorder{limit: 25}, "t", 0).Size())
	assert.Equal(t, 10, New(&recorder{limit: 25}, "t", 10).Size())
}

func TestWriteErrorCarriesBatch(t *testing.T) {
	cause := errors.New("throttled")
	dest := &recorder{limit: 25, err: cause}
	w := New(dest, "orders", 2)

	err := w.Add(context.Background(), stream(3)...)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "orders", we.Table)
	assert.Equal(t, 2, we.Size)
	assert.Equal(t, "0", we.Sample["pk"].Str())
	assert.Equal(t, 0, w.Count())
}

func TestOnFlushReportsRunningCount(t *testing.T) {
	var seen []int
	w := New(&recorder{limit: 25}, "t", 2).OnFlush(func(n int) { seen = append(seen, n) })
	require.NoError(t, w.Add(context.Background(), stream(5)...))
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []int{2, 4, 5}, seen)
}
