// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/residuals/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	q        querier
	tx       *sql.Tx // set on stores handed out by InTx
	pageSize int
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithPageSize sets the maximum number of rows returned by list calls.
func WithPageSize(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Concurrent reconciliations share the file, so wait on locks instead of failing
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, q: db, pageSize: storage.DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn against a store bound to a single transaction, committing if
// fn returns nil and rolling back otherwise. Calls on a store that is already
// inside a transaction join it.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: tx, pageSize: s.pageSize}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txn is a transaction for a multi-statement write. Inside InTx it wraps the
// outer transaction and Commit and Rollback are left to InTx.
type txn struct {
	querier
	tx *sql.Tx
}

func (t *txn) Commit() error {
	if t.tx == nil {
		return nil
	}
	return t.tx.Commit()
}

func (t *txn) Rollback() error {
	if t.tx == nil {
		return nil
	}
	return t.tx.Rollback()
}

func (s *SQLiteStore) begin(ctx context.Context) (*txn, error) {
	if s.tx != nil {
		return &txn{querier: s.tx}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txn{querier: tx, tx: tx}, nil
}

// PageSize returns the list ceiling.
func (s *SQLiteStore) PageSize() int {
	return s.pageSize
}

func (s *SQLiteStore) clampLimit(limit int) int {
	if limit <= 0 || limit > s.pageSize {
		return s.pageSize
	}
	return limit
}

// inClause returns "?, ?, ?" for n placeholders and the args as []any.
func inClause(values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

// where accumulates AND-ed predicates.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) {
	ph, args := inClause(values)
	w.add(column+" IN ("+ph+")", args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// execCount runs a statement and returns the rows affected.
func execCount(ctx context.Context, q querier, what, query string, args ...any) (int, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return int(n), nil
}
