package store

import (
	"context"
	"errors"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// RetryPolicy : exponential backoff settings for transient store errors
type RetryPolicy struct {
	MaxRetry        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy : 5 retries starting at 100ms, capped at 5s between attempts
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetry:        5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// WithRetry : wraps an adapter so that each call is retried on transient errors.
// with MaxRetry <= 0 the adapter is returned unchanged
func WithRetry(a Adapter, p RetryPolicy, logger zerolog.Logger) Adapter {
	if p.MaxRetry <= 0 {
		return a
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultRetryPolicy().InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultRetryPolicy().MaxInterval
	}
	return &retrying{next: a, policy: p, logger: logger}
}

type retrying struct {
	next   Adapter
	policy RetryPolicy
	logger zerolog.Logger
}

func (r *retrying) Exists(ctx context.Context, table string) (bool, error) {
	return retry(ctx, r, "exists", table, func() (bool, error) {
		return r.next.Exists(ctx, table)
	})
}

func (r *retrying) ScanPage(ctx context.Context, table string, cursor Cursor) (Page, error) {
	return retry(ctx, r, "scan", table, func() (Page, error) {
		return r.next.ScanPage(ctx, table, cursor)
	})
}

func (r *retrying) BatchWrite(ctx context.Context, table string, records []record.Record) error {
	_, err := retry(ctx, r, "batch_write", table, func() (struct{}, error) {
		return struct{}{}, r.next.BatchWrite(ctx, table, records)
	})
	return err
}

func (r *retrying) MaxBatchSize() int {
	return r.next.MaxBatchSize()
}

func retry[T any](ctx context.Context, r *retrying, op string, table string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && isPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxRetry+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.Warn().
				Err(err).
				Str("op", op).
				Str("table", table).
				Dur("retry_in", wait).
				Msg("transient store error, retrying")
		}),
	)
}

func isPermanent(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrBatchTooLarge) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
