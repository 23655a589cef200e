// Package store reads scopes from and writes pipeline results to Postgres.
// Writes go through uniquely named staging tables that are merged into
// their destination, so re-running a scope never duplicates rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/logging"
)

// Store wraps the connection pool.
type Store struct {
	db      *sql.DB
	schemas Schemas
	logger  *slog.Logger
}

// New creates a store over db.
func New(db *sql.DB, schemas Schemas) *Store {
	return &Store{
		db:      db,
		schemas: schemas,
		logger:  logging.WithComponent("store"),
	}
}

// DB exposes the pool for collaborators that share it.
func (s *Store) DB() *sql.DB { return s.db }

// Schemas returns the configured schema names.
func (s *Store) Schemas() Schemas { return s.schemas }

// Query runs a read query.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "query: %s", firstLine(strings.TrimSpace(query)))
	}
	return rows, nil
}

// Exec runs a statement and returns the affected row count.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "exec: %s", firstLine(strings.TrimSpace(query)))
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Truncate empties a table.
func (s *Store) Truncate(ctx context.Context, t Table) error {
	s.logger.Info("truncating table", "table", t.String())
	_, err := s.Exec(ctx, "TRUNCATE "+t.String())
	return err
}

// Upload bulk-loads rows with COPY in one transaction.
func (s *Store) Upload(ctx context.Context, t Table, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	defer logging.Timer(s.logger, "upload", "table", t.String(), "rows", len(rows))()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin upload")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(t.Schema, t.Name, columns...))
	if err != nil {
		return errors.Wrapf(err, "prepare copy into %s", t)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = stmt.Close()
			return errors.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			return errors.Wrapf(err, "copy row %d into %s", i, t)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.Wrapf(err, "flush copy into %s", t)
	}
	if err := stmt.Close(); err != nil {
		return errors.Wrap(err, "close copy")
	}
	return errors.Wrap(tx.Commit(), "commit upload")
}

// Stager collects rows for one destination table in a private preload
// table and merges them in one statement.
type Stager struct {
	store   *Store
	dest    Table
	stage   Table
	columns []string
	key     []string
}

// NewStager creates the preload table. key lists the columns that identify
// a row; a staged row whose key already exists in dest is not inserted. An
// empty key compares every column.
func (s *Store) NewStager(ctx context.Context, dest Table, columns, key []string) (*Stager, error) {
	stage := Table{
		Schema: strings.ToLower(s.schemas.Staging + s.schemas.RunSuffix),
		Name:   dest.Name + "_preload_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	query := fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS)", stage, dest)
	if _, err := s.Exec(ctx, query); err != nil {
		return nil, errors.Wrap(err, "create preload table")
	}
	if len(key) == 0 {
		key = columns
	}
	return &Stager{store: s, dest: dest, stage: stage, columns: columns, key: key}, nil
}

// Add uploads rows into the preload table.
func (st *Stager) Add(ctx context.Context, rows [][]any) error {
	return st.store.Upload(ctx, st.stage, st.columns, rows)
}

// Merge inserts the preloaded rows missing from the destination.
func (st *Stager) Merge(ctx context.Context) (int64, error) {
	n, err := st.store.Exec(ctx, mergeSQL(st.dest, st.stage, st.columns, st.key))
	if err != nil {
		return 0, errors.Wrapf(err, "merge into %s", st.dest)
	}
	st.store.logger.Info("merged preload table", "table", st.dest.String(), "inserted", n)
	return n, nil
}

// Drop removes the preload table.
func (st *Stager) Drop(ctx context.Context) error {
	_, err := st.store.Exec(ctx, "DROP TABLE IF EXISTS "+st.stage.String())
	return err
}

// mergeSQL inserts the staged rows whose key is not yet in dest.
func mergeSQL(dest, stage Table, columns, key []string) string {
	cols := quoteAll(columns)
	keys := quoteAll(key)
	if strings.Join(columns, ",") == strings.Join(key, ",") {
		return fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s EXCEPT SELECT %s FROM %s",
			dest, cols, cols, stage, cols, dest,
		)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE (%s) IN (SELECT %s FROM %s EXCEPT SELECT %s FROM %s)",
		dest, cols, cols, stage, keys, keys, stage, keys, dest,
	)
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pq.QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}
