// package dynamo
//
// store adapter over DynamoDB tables using the v1 sdk
package dynamo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// BatchWriteItemLimit : max put requests per BatchWriteItem call
const BatchWriteItemLimit = 25

// ErrUnprocessedItems : dynamodb kept returning unprocessed items after every resubmission
var ErrUnprocessedItems = errors.New("unprocessed items left after resubmission")

// Options : scan and write tuning
type Options struct {
	// PageLimit : Limit on each Scan, 0 lets dynamodb fill its 1MB page
	PageLimit int64
	// ConsistentRead : strongly consistent scans
	ConsistentRead bool
	// MaxUnprocessedRetry : resubmissions of UnprocessedItems before giving up
	MaxUnprocessedRetry int
	// UnprocessedBackoff : first wait before resubmitting, doubles each time
	UnprocessedBackoff time.Duration
}

// Store : adapter over a dynamodb client
type Store struct {
	client dynamodbiface.DynamoDBAPI
	opts   Options
	logger zerolog.Logger
}

// New : client is usually dynamodb.New(session)
func New(client dynamodbiface.DynamoDBAPI, opts Options, logger zerolog.Logger) *Store {
	if opts.MaxUnprocessedRetry <= 0 {
		opts.MaxUnprocessedRetry = 8
	}
	if opts.UnprocessedBackoff <= 0 {
		opts.UnprocessedBackoff = 50 * time.Millisecond
	}
	return &Store{client: client, opts: opts, logger: logger}
}

// Exists : probes with a 1 item scan, ResourceNotFoundException means missing
func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	_, err := s.client.ScanWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Limit:     aws.Int64(1),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("dynamodb: probe %s : %w", table, err)
}

func (s *Store) ScanPage(ctx context.Context, table string, cursor store.Cursor) (store.Page, error) {
	in := &dynamodb.ScanInput{
		TableName:      aws.String(table),
		ConsistentRead: aws.Bool(s.opts.ConsistentRead),
	}
	if s.opts.PageLimit > 0 {
		in.Limit = aws.Int64(s.opts.PageLimit)
	}
	if cursor != store.None {
		key, err := decodeCursor(cursor)
		if err != nil {
			return store.Page{}, err
		}
		in.ExclusiveStartKey = key
	}
	out, err := s.client.ScanWithContext(ctx, in)
	if err != nil {
		return store.Page{}, s.wrap("scan", table, err)
	}
	page := store.Page{Records: make([]record.Record, 0, len(out.Items))}
	for _, item := range out.Items {
		r, err := FromItem(item)
		if err != nil {
			return store.Page{}, fmt.Errorf("dynamodb: scan %s : %w", table, err)
		}
		page.Records = append(page.Records, r)
	}
	if len(out.LastEvaluatedKey) > 0 {
		page.Next, err = encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return store.Page{}, err
		}
	}
	return page, nil
}

// BatchWrite : puts the records, resubmitting UnprocessedItems with exponential backoff
func (s *Store) BatchWrite(ctx context.Context, table string, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}
	if len(records) > BatchWriteItemLimit {
		return fmt.Errorf("dynamodb: write %d records to %s : %w", len(records), table, store.ErrBatchTooLarge)
	}
	reqs := make([]*dynamodb.WriteRequest, 0, len(records))
	for _, r := range records {
		reqs = append(reqs, &dynamodb.WriteRequest{PutRequest: &dynamodb.PutRequest{Item: ToItem(r)}})
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.UnprocessedBackoff
	b.Reset()
	pending := map[string][]*dynamodb.WriteRequest{table: reqs}
	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return s.wrap("batch write", table, err)
		}
		left := len(out.UnprocessedItems[table])
		if left == 0 {
			return nil
		}
		if attempt >= s.opts.MaxUnprocessedRetry {
			return fmt.Errorf("dynamodb: write %s : %d of %d items : %w", table, left, len(records), ErrUnprocessedItems)
		}
		wait := b.NextBackOff()
		s.logger.Debug().
			Str("table", table).
			Int("unprocessed", left).
			Dur("wait", wait).
			Msg("resubmitting unprocessed items")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		pending = out.UnprocessedItems
	}
}

func (s *Store) MaxBatchSize() int {
	return BatchWriteItemLimit
}

func (s *Store) wrap(op, table string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("dynamodb: %s %s : %w : %v", op, table, store.ErrTableNotFound, err)
	}
	return fmt.Errorf("dynamodb: %s %s : %w", op, table, err)
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException
}

func encodeCursor(key map[string]*dynamodb.AttributeValue) (store.Cursor, error) {
	r, err := FromItem(key)
	if err != nil {
		return store.None, fmt.Errorf("dynamodb: encode cursor : %w", err)
	}
	b, err := record.Encode(r)
	if err != nil {
		return store.None, fmt.Errorf("dynamodb: encode cursor : %w", err)
	}
	return store.Cursor(base64.RawURLEncoding.EncodeToString(b)), nil
}

func decodeCursor(c store.Cursor) (map[string]*dynamodb.AttributeValue, error) {
	b, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return nil, fmt.Errorf("dynamodb: bad cursor : %w", err)
	}
	r, err := record.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: bad cursor : %w", err)
	}
	return ToItem(r), nil
}
