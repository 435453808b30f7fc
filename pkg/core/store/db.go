package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// ENGINE ADAPTERS
// Queries are written once with $n placeholders; each engine adapts them.
// =============================================================================

// errNoRows is what every adapter returns for an empty single-row query.
var errNoRows = errors.New("no rows")

type row interface {
	Scan(dest ...any) error
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// querier is the part of a connection the repository uses.
type querier interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) row
	Query(ctx context.Context, query string, args ...any) (rows, error)
}

// database is a querier that can also open transactions.
type database interface {
	querier
	InTx(ctx context.Context, fn func(q querier) error) error
	Migrate(ctx context.Context) error
	Close()
}

// =============================================================================
// POSTGRES (pgxpool)
// =============================================================================

type postgresDB struct {
	pool *pgxpool.Pool
}

// openPostgres connects a pool to dsn.
func openPostgres(ctx context.Context, dsn string) (*postgresDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &postgresDB{pool: pool}, nil
}

func (d *postgresDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, d.pool, query, args...)
}

func (d *postgresDB) QueryRow(ctx context.Context, query string, args ...any) row {
	return pgRow{d.pool.QueryRow(ctx, query, args...)}
}

func (d *postgresDB) Query(ctx context.Context, query string, args ...any) (rows, error) {
	return d.pool.Query(ctx, query, args...)
}

func (d *postgresDB) InTx(ctx context.Context, fn func(q querier) error) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx})
	})
}

func (d *postgresDB) Migrate(ctx context.Context) error {
	ddl, err := schemaFor(DriverPostgres)
	if err != nil {
		return err
	}
	if _, err := d.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (d *postgresDB) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, t.tx, query, args...)
}

func (t pgTx) QueryRow(ctx context.Context, query string, args ...any) row {
	return pgRow{t.tx.QueryRow(ctx, query, args...)}
}

func (t pgTx) Query(ctx context.Context, query string, args ...any) (rows, error) {
	return t.tx.Query(ctx, query, args...)
}

// pgExecer is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func pgExec(ctx context.Context, q pgExecer, query string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type pgRow struct {
	r pgx.Row
}

func (r pgRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoRows
	}
	return err
}
