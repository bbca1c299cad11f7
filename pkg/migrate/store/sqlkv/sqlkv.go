// package sqlkv
//
// store adapter over MySQL tables shaped as key-value tables:
//
//	CREATE TABLE t (pk VARBINARY(1024) NOT NULL PRIMARY KEY, item JSON NOT NULL)
//
// pk holds the canonical encoding of the key attributes, item the whole record.
// pk must compare bytes: a _ci collation folds keys differing only in case
// into one row, and keyset paging relies on byte order
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/record"
	"github.com/baderkha/table-transfer/pkg/migrate/store"
	"github.com/go-sql-driver/mysql"
)

const (
	DefaultPageSize  = 500
	DefaultBatchSize = 100

	// mysql error number for "Table doesn't exist"
	errNoSuchTable = 1146
)

// Store : adapter over a mysql database
type Store struct {
	db        *sql.DB
	keyAttrs  []string
	pageSize  int
	batchSize int
}

// New : keyAttrs name the record attributes forming pk
func New(db *sql.DB, keyAttrs []string, pageSize, batchSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{db: db, keyAttrs: keyAttrs, pageSize: pageSize, batchSize: batchSize}
}

// WrapQ : backtick quotes an identifier
func WrapQ(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// CreateTable : provisions a table with the expected shape, no op if it exists
func (s *Store) CreateTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, CreateTableQuery(table)); err != nil {
		return wrap("create", table, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, existsQuery, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("mysql: probe %s : %w", table, err)
	}
	return n > 0, nil
}

// ScanPage : keyset pagination on pk. a full page always hands back a cursor,
// so a table whose size is a multiple of the page size ends on an empty page
func (s *Store) ScanPage(ctx context.Context, table string, cursor store.Cursor) (store.Page, error) {
	rows, err := s.db.QueryContext(ctx, ScanQuery(table), string(cursor), s.pageSize)
	if err != nil {
		return store.Page{}, wrap("scan", table, err)
	}
	defer rows.Close()

	var (
		page   = store.Page{Records: make([]record.Record, 0, s.pageSize)}
		lastPK string
	)
	for rows.Next() {
		var (
			pk   string
			item []byte
		)
		if err := rows.Scan(&pk, &item); err != nil {
			return store.Page{}, wrap("scan", table, err)
		}
		r, err := record.Decode(item)
		if err != nil {
			return store.Page{}, fmt.Errorf("mysql: %s pk %s : %w", table, pk, err)
		}
		page.Records = append(page.Records, r)
		lastPK = pk
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, wrap("scan", table, err)
	}
	if len(page.Records) == s.pageSize {
		page.Next = store.Cursor(lastPK)
	}
	return page, nil
}

// BatchWrite : a single multi row upsert, last write wins on pk
func (s *Store) BatchWrite(ctx context.Context, table string, records []record.Record) error {
	if len(records) > s.batchSize {
		return fmt.Errorf("mysql: write %d records to %s : %w", len(records), table, store.ErrBatchTooLarge)
	}
	if len(records) == 0 {
		return nil
	}
	args, err := s.upsertArgs(records)
	if err != nil {
		return fmt.Errorf("mysql: write %s : %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, UpsertQuery(table, len(records)), args...); err != nil {
		return wrap("write", table, err)
	}
	return nil
}

func (s *Store) MaxBatchSize() int {
	return s.batchSize
}

func (s *Store) upsertArgs(records []record.Record) ([]any, error) {
	args := make([]any, 0, 2*len(records))
	for _, r := range records {
		pk, err := r.KeyString(s.keyAttrs)
		if err != nil {
			return nil, err
		}
		item, err := record.Encode(r)
		if err != nil {
			return nil, err
		}
		args = append(args, pk, string(item))
	}
	return args, nil
}

const existsQuery = `SELECT COUNT(*)
	FROM information_schema.tables
	WHERE table_schema = DATABASE() AND table_name = ?`

// CreateTableQuery : ddl of a key-value table, pk is binary so keys compare byte for byte
func CreateTableQuery(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (pk VARBINARY(1024) NOT NULL PRIMARY KEY, item JSON NOT NULL)", WrapQ(table))
}

// ScanQuery : page query, args are (after pk, limit)
func ScanQuery(table string) string {
	return fmt.Sprintf("SELECT pk, item FROM %s WHERE pk > ? ORDER BY pk LIMIT ?", WrapQ(table))
}

// UpsertQuery : insert of n (pk, item) rows overwriting existing keys
func UpsertQuery(table string, n int) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = "(?, ?)"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (pk, item) VALUES %s ON DUPLICATE KEY UPDATE item = VALUES(item)",
		WrapQ(table),
		strings.Join(rows, ", "),
	)
}

func wrap(op, table string, err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errNoSuchTable {
		return fmt.Errorf("mysql: %s %s : %w : %v", op, table, store.ErrTableNotFound, err)
	}
	return fmt.Errorf("mysql: %s %s : %w", op, table, err)
}
