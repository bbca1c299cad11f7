package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/baderkha/table-transfer/pkg/migrate/store/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errThrottled = errors.New("throttled")

// flaky fails the first n calls of every operation
type flaky struct {
	store.Adapter
	failures int
	calls    int
}

func (f *flaky) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return errThrottled
	}
	return nil
}

func (f *flaky) ScanPage(ctx context.Context, table string, c store.Cursor) (store.Page, error) {
	if err := f.fail(); err != nil {
		return store.Page{}, err
	}
	return f.Adapter.ScanPage(ctx, table, c)
}

func (f *flaky) BatchWrite(ctx context.Context, table string, rs []record.Record) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Adapter.BatchWrite(ctx, table, rs)
}

func fastPolicy(n int) store.RetryPolicy {
	return store.RetryPolicy{MaxRetry: n, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	mem := memory.New([]string{"pk"})
	mem.CreateTable("t")
	f := &flaky{Adapter: mem, failures: 2}
	a := store.WithRetry(f, fastPolicy(3), zerolog.Nop())

	err := a.BatchWrite(context.Background(), "t", []record.Record{{"pk": record.String("1")}})
	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	assert.Len(t, mem.Items("t"), 1)
}

func TestRetryGivesUpAfterMaxRetry(t *testing.T) {
	mem := memory.New([]string{"pk"})
	mem.CreateTable("t")
	f := &flaky{Adapter: mem, failures: 10}
	a := store.WithRetry(f, fastPolicy(2), zerolog.Nop())

	_, err := a.ScanPage(context.Background(), "t", store.None)
	assert.ErrorIs(t, err, errThrottled)
	assert.Equal(t, 3, f.calls)
}

func TestRetryDoesNotRetryNotFound(t *testing.T) {
	mem := memory.New([]string{"pk"})
	f := &flaky{Adapter: mem}
	a := store.WithRetry(f, fastPolicy(5), zerolog.Nop())

	_, err := a.ScanPage(context.Background(), "missing", store.None)
	assert.True(t, store.IsNotFound(err))
	assert.Equal(t, 1, f.calls)
}

func TestZeroRetryReturnsAdapterUnchanged(t *testing.T) {
	mem := memory.New([]string{"pk"})
	assert.Same(t, store.Adapter(mem), store.WithRetry(mem, store.RetryPolicy{}, zerolog.Nop()))
}
