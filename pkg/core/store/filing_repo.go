package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing_valuation/pkg/models"
)

// stageColumns whitelists the status column of each stage.
var stageColumns = map[models.Stage]string{
	models.StageDownload:        "download_status",
	models.StageDecode:          "decode_status",
	models.StageBalanceSheet:    "scraped_bs",
	models.StageIncomeStatement: "scraped_pl",
	models.StageShares:          "scraped_ns",
}

const filingColumns = `document_id, filer_code, company_code, document_type_code, quarter_type,
	period_start, period_end, submit_date,
	download_status, decode_status, scraped_bs, scraped_pl, scraped_ns,
	removed, created_at, updated_at`

// InsertFiling registers a filing. Stage statuses are taken from f.Status
// (NOT_STARTED when empty); an existing document id is left untouched.
func (s *Store) InsertFiling(ctx context.Context, f models.Filing) (bool, error) {
	if f.PeriodEnd.IsZero() {
		f.PeriodEnd = models.UnknownPeriod
	}
	if f.PeriodStart.IsZero() {
		f.PeriodStart = models.UnknownPeriod
	}
	st := f.Status
	for _, stage := range models.AllStages {
		if st.Get(stage) == "" {
			st = st.With(stage, models.StatusNotStarted)
		}
	}
	now := timestampText(s.now())

	query := `
		INSERT INTO filing (` + filingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (document_id) DO NOTHING
	`
	n, err := s.db.Exec(ctx, query,
		f.DocumentID, f.FilerCode, f.CompanyCode, string(f.DocumentTypeCode), int(f.QuarterType),
		dateText(f.PeriodStart), dateText(f.PeriodEnd), dateText(f.SubmitDate),
		string(st.Download), string(st.Decode), string(st.BalanceSheet), string(st.IncomeStatement), string(st.Shares),
		f.Removed, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert filing %s: %w", f.DocumentID, err)
	}
	return n > 0, nil
}

// FindFiling loads a filing with its stage notes.
func (s *Store) FindFiling(ctx context.Context, documentID string) (models.Filing, error) {
	query := `SELECT ` + filingColumns + ` FROM filing WHERE document_id = $1`
	f, err := scanFiling(s.db.QueryRow(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, errNoRows) {
			return models.Filing{}, fmt.Errorf("filing %s: %w", documentID, ErrNotFound)
		}
		return models.Filing{}, fmt.Errorf("failed to load filing %s: %w", documentID, err)
	}

	notes, err := s.loadNotes(ctx, documentID)
	if err != nil {
		return models.Filing{}, err
	}
	f.Notes = notes
	return f, nil
}

// ListFilingsBySubmitDate returns every filing submitted on date, removed ones included.
func (s *Store) ListFilingsBySubmitDate(ctx context.Context, date time.Time) ([]models.Filing, error) {
	query := `SELECT ` + filingColumns + ` FROM filing WHERE submit_date = $1 ORDER BY document_id`
	return s.listFilings(ctx, query, dateText(date))
}

// ListFilingsNeedingAttention returns live filings submitted in [from, to]
// with at least one PARTIAL or ERROR stage.
func (s *Store) ListFilingsNeedingAttention(ctx context.Context, from, to time.Time) ([]models.Filing, error) {
	query := `
		SELECT ` + filingColumns + `
		FROM filing
		WHERE submit_date >= $1 AND submit_date <= $2
		  AND removed = FALSE
		  AND (download_status IN ('5', '9') OR decode_status IN ('5', '9')
		       OR scraped_bs IN ('5', '9') OR scraped_pl IN ('5', '9') OR scraped_ns IN ('5', '9'))
		ORDER BY submit_date, document_id
	`
	return s.listFilings(ctx, query, dateText(from), dateText(to))
}

func (s *Store) listFilings(ctx context.Context, query string, args ...any) ([]models.Filing, error) {
	rs, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	var out []models.Filing
	for rs.Next() {
		f, err := scanFiling(rs)
		if err != nil {
			rs.Close()
			return nil, err
		}
		out = append(out, f)
	}
	err = rs.Err()
	rs.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	// Notes are loaded after the cursor is closed: SQLite runs on one connection.
	for i := range out {
		notes, err := s.loadNotes(ctx, out[i].DocumentID)
		if err != nil {
			return nil, err
		}
		out[i].Notes = notes
	}
	return out, nil
}

// UpdateStatus writes one stage flag and its note in a single transaction.
func (s *Store) UpdateStatus(ctx context.Context, documentID string, stage models.Stage, status models.StageStatus, note models.StageNote) error {
	column, ok := stageColumns[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = s.now()
	}
	updatedAt := timestampText(note.UpdatedAt)

	return s.db.InTx(ctx, func(q querier) error {
		n, err := q.Exec(ctx,
			`UPDATE filing SET `+column+` = $1, updated_at = $2 WHERE document_id = $3`,
			string(status), updatedAt, documentID)
		if err != nil {
			return fmt.Errorf("failed to update %s status: %w", stage, err)
		}
		if n == 0 {
			return fmt.Errorf("filing %s: %w", documentID, ErrNotFound)
		}

		_, err = q.Exec(ctx, `
			INSERT INTO document_stage_note (document_id, stage, path, diagnostic, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id, stage)
			DO UPDATE SET
				path = EXCLUDED.path,
				diagnostic = EXCLUDED.diagnostic,
				updated_at = EXCLUDED.updated_at
		`, documentID, string(stage), note.Path, note.Diagnostic, updatedAt)
		if err != nil {
			return fmt.Errorf("failed to save %s note: %w", stage, err)
		}
		return nil
	})
}

// MarkRemoved sets the removed flag. The row itself is never deleted.
func (s *Store) MarkRemoved(ctx context.Context, documentID string) error {
	n, err := s.db.Exec(ctx,
		`UPDATE filing SET removed = TRUE, updated_at = $1 WHERE document_id = $2`,
		timestampText(s.now()), documentID)
	if err != nil {
		return fmt.Errorf("failed to mark %s removed: %w", documentID, err)
	}
	if n == 0 {
		return fmt.Errorf("filing %s: %w", documentID, ErrNotFound)
	}
	return nil
}

func (s *Store) loadNotes(ctx context.Context, documentID string) (map[models.Stage]models.StageNote, error) {
	rs, err := s.db.Query(ctx,
		`SELECT stage, path, diagnostic, updated_at FROM document_stage_note WHERE document_id = $1`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	defer rs.Close()

	notes := make(map[models.Stage]models.StageNote)
	for rs.Next() {
		var stage, path, diagnostic, updatedAt string
		if err := rs.Scan(&stage, &path, &diagnostic, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes[models.Stage(stage)] = models.StageNote{
			Path:       path,
			Diagnostic: diagnostic,
			UpdatedAt:  parseTimestamp(updatedAt),
		}
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to load notes: %w", err)
	}
	return notes, nil
}

func scanFiling(r row) (models.Filing, error) {
	var (
		f                                  models.Filing
		docType                            string
		quarter                            int
		periodStart, periodEnd, submitDate string
		download, decode, bs, pl, ns       string
		createdAt, updatedAt               string
	)
	err := r.Scan(
		&f.DocumentID, &f.FilerCode, &f.CompanyCode, &docType, &quarter,
		&periodStart, &periodEnd, &submitDate,
		&download, &decode, &bs, &pl, &ns,
		&f.Removed, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Filing{}, err
	}

	f.DocumentTypeCode = models.DocumentTypeCode(docType)
	f.QuarterType = models.QuarterType(quarter)
	if f.PeriodStart, err = parseDate(periodStart); err != nil {
		return models.Filing{}, err
	}
	if f.PeriodEnd, err = parseDate(periodEnd); err != nil {
		return models.Filing{}, err
	}
	if f.SubmitDate, err = parseDate(submitDate); err != nil {
		return models.Filing{}, err
	}

	codes := []string{download, decode, bs, pl, ns}
	f.Status = models.NewStatusVector()
	for i, stage := range models.AllStages {
		st, err := models.ParseStageStatus(codes[i])
		if err != nil {
			return models.Filing{}, fmt.Errorf("filing %s %s: %w", f.DocumentID, stage, err)
		}
		f.Status = f.Status.With(stage, st)
	}
	f.CreatedAt = parseTimestamp(createdAt)
	f.UpdatedAt = parseTimestamp(updatedAt)
	return f, nil
}
