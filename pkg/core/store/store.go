// Package store persists filings, facts, valuations and the subject taxonomy
// in Postgres (pgx) or SQLite (modernc) behind one Repository.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"filing_valuation/pkg/models"
)

// ErrNotFound is returned when a looked-up filing does not exist.
var ErrNotFound = errors.New("not found")

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func schemaFor(driver string) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for driver %q: %w", driver, err)
	}
	return string(b), nil
}

// Repository is the persistence contract of the pipeline.
// Inserts report inserted=false instead of failing when the unique key exists.
type Repository interface {
	InsertFiling(ctx context.Context, f models.Filing) (bool, error)
	FindFiling(ctx context.Context, documentID string) (models.Filing, error)
	ListFilingsBySubmitDate(ctx context.Context, date time.Time) ([]models.Filing, error)
	ListFilingsNeedingAttention(ctx context.Context, from, to time.Time) ([]models.Filing, error)
	UpdateStatus(ctx context.Context, documentID string, stage models.Stage, status models.StageStatus, note models.StageNote) error
	MarkRemoved(ctx context.Context, documentID string) error

	FindFact(ctx context.Context, key models.FactKey) (*models.FinancialFact, error)
	InsertFact(ctx context.Context, fact models.FinancialFact) (bool, error)

	InsertValuation(ctx context.Context, v models.ValuationResult) (bool, error)
	FindValuation(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error)

	ListSubjects(ctx context.Context) ([]models.Subject, error)
	SaveSubjects(ctx context.Context, subjects []models.Subject) error

	Close()
}

// Store is the SQL Repository.
type Store struct {
	db  database
	now func() time.Time
}

var _ Repository = (*Store)(nil)

// Open connects to the configured engine and applies the schema.
// For sqlite, dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  database
		err error
	)
	switch driver {
	case DriverPostgres, "pgx", "":
		db, err = openPostgres(ctx, dsn)
	case DriverSQLite:
		db, err = openSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// =============================================================================
// TEXT ENCODING OF DATES
// =============================================================================

const timestampLayout = time.RFC3339Nano

func dateText(t time.Time) string {
	return t.Format(models.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", s, err)
	}
	return t, nil
}

func timestampText(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
