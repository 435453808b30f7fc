package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SQLITE (modernc, database/sql)
// =============================================================================

type sqliteDB struct {
	conn *sql.DB
}

// openSQLite opens (creating if needed) the database file at path.
func openSQLite(path string) (*sqliteDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL for concurrent readers; busy_timeout so concurrent stage writers wait
	// instead of failing with SQLITE_BUSY.
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One writer at a time; an in-memory database only exists on one connection.
	conn.SetMaxOpenConns(1)
	return &sqliteDB{conn: conn}, nil
}

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind turns $n placeholders into ?. Queries use each $n once, in order.
func rebind(query string) string {
	return placeholder.ReplaceAllString(query, "?")
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlAdapter struct {
	q sqlQuerier
}

func (a sqlAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := a.q.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (a sqlAdapter) QueryRow(ctx context.Context, query string, args ...any) row {
	return sqlRow{a.q.QueryRowContext(ctx, rebind(query), args...)}
}

func (a sqlAdapter) Query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := a.q.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (d *sqliteDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqlAdapter{d.conn}.Exec(ctx, query, args...)
}

func (d *sqliteDB) QueryRow(ctx context.Context, query string, args ...any) row {
	return sqlAdapter{d.conn}.QueryRow(ctx, query, args...)
}

func (d *sqliteDB) Query(ctx context.Context, query string, args ...any) (rows, error) {
	return sqlAdapter{d.conn}.Query(ctx, query, args...)
}

func (d *sqliteDB) InTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(sqlAdapter{tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (d *sqliteDB) Migrate(ctx context.Context) error {
	ddl, err := schemaFor(DriverSQLite)
	if err != nil {
		return err
	}
	if _, err := d.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (d *sqliteDB) Close() {
	d.conn.Close()
}

type sqlRow struct {
	r *sql.Row
}

func (r sqlRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoRows
	}
	return err
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() {
	r.Rows.Close()
}
