package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"filing_valuation/pkg/models"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FINANCIAL FACTS
// =============================================================================

// FindFact returns the fact stored under key, or nil when there is none.
func (s *Store) FindFact(ctx context.Context, key models.FactKey) (*models.FinancialFact, error) {
	query := `
		SELECT company_code, document_id, period_start, value, created_type, created_at
		FROM financial_fact
		WHERE filer_code = $1 AND kind = $2 AND subject_id = $3
		  AND period_end = $4 AND document_type_code = $5 AND submit_date = $6
	`
	fact := models.FinancialFact{FactKey: key}
	var (
		periodStart, createdAt string
		createdType            string
		value                  sql.NullInt64
	)
	err := s.db.QueryRow(ctx, query,
		key.FilerCode, string(key.Kind), key.SubjectID,
		dateText(key.PeriodEnd), string(key.DocumentTypeCode), dateText(key.SubmitDate),
	).Scan(&fact.CompanyCode, &fact.DocumentID, &periodStart, &value, &createdType, &createdAt)
	if err != nil {
		if errors.Is(err, errNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load fact %s: %w", key.SubjectID, err)
	}

	if fact.PeriodStart, err = parseDate(periodStart); err != nil {
		return nil, err
	}
	if value.Valid {
		v := value.Int64
		fact.Value = &v
	}
	fact.CreatedType = models.CreatedType(createdType)
	fact.CreatedAt = parseTimestamp(createdAt)
	return &fact, nil
}

// InsertFact writes a fact. The first writer of a key wins; later writers
// get inserted=false and no error.
func (s *Store) InsertFact(ctx context.Context, fact models.FinancialFact) (bool, error) {
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = s.now()
	}
	if fact.CreatedType == "" {
		fact.CreatedType = models.CreatedAuto
	}
	periodStart := fact.PeriodStart
	if periodStart.IsZero() {
		periodStart = models.UnknownPeriod
	}
	var value sql.NullInt64
	if fact.Value != nil {
		value = sql.NullInt64{Int64: *fact.Value, Valid: true}
	}

	query := `
		INSERT INTO financial_fact (
			filer_code, kind, subject_id, period_end, document_type_code, submit_date,
			company_code, document_id, period_start, value, created_type, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (filer_code, kind, subject_id, period_end, document_type_code, submit_date)
		DO NOTHING
	`
	n, err := s.db.Exec(ctx, query,
		fact.FilerCode, string(fact.Kind), fact.SubjectID,
		dateText(fact.PeriodEnd), string(fact.DocumentTypeCode), dateText(fact.SubmitDate),
		fact.CompanyCode, fact.DocumentID, dateText(periodStart), value,
		string(fact.CreatedType), timestampText(fact.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert fact %s: %w", fact.SubjectID, err)
	}
	return n > 0, nil
}

// =============================================================================
// VALUATION RESULTS
// =============================================================================

// InsertValuation records a corporate value; a second result for the same
// filer and period end is skipped.
func (s *Store) InsertValuation(ctx context.Context, v models.ValuationResult) (bool, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	query := `
		INSERT INTO valuation_result (
			id, filer_code, company_code, period_end, document_type_code, quarter_type,
			submit_date, document_id, corporate_value, bps, eps, roe, roa, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (filer_code, period_end) DO NOTHING
	`
	n, err := s.db.Exec(ctx, query,
		v.ID, v.FilerCode, v.CompanyCode, dateText(v.PeriodEnd), string(v.DocumentTypeCode), int(v.QuarterType),
		dateText(v.SubmitDate), v.DocumentID, v.CorporateValue.String(),
		decimalText(v.BPS), decimalText(v.EPS), decimalText(v.ROE), decimalText(v.ROA),
		timestampText(v.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert valuation for %s: %w", v.FilerCode, err)
	}
	return n > 0, nil
}

// FindValuation returns the stored result for a filer and period end, or nil.
func (s *Store) FindValuation(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error) {
	query := `
		SELECT id, company_code, document_type_code, quarter_type, submit_date,
		       document_id, corporate_value, bps, eps, roe, roa, created_at
		FROM valuation_result
		WHERE filer_code = $1 AND period_end = $2
	`
	v := models.ValuationResult{FilerCode: filerCode, PeriodEnd: periodEnd}
	var (
		docType, submitDate string
		createdAt           string
		quarter             int
		corporateValue      decimal.Decimal
		bps, eps, roe, roa  decimal.NullDecimal
	)
	err := s.db.QueryRow(ctx, query, filerCode, dateText(periodEnd)).Scan(
		&v.ID, &v.CompanyCode, &docType, &quarter, &submitDate,
		&v.DocumentID, &corporateValue, &bps, &eps, &roe, &roa, &createdAt,
	)
	if err != nil {
		if errors.Is(err, errNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load valuation for %s: %w", filerCode, err)
	}

	v.DocumentTypeCode = models.DocumentTypeCode(docType)
	v.QuarterType = models.QuarterType(quarter)
	if v.SubmitDate, err = parseDate(submitDate); err != nil {
		return nil, err
	}
	v.CorporateValue = corporateValue
	v.BPS, v.EPS, v.ROE, v.ROA = decimalPtr(bps), decimalPtr(eps), decimalPtr(roe), decimalPtr(roa)
	v.CreatedAt = parseTimestamp(createdAt)
	return &v, nil
}

// decimalText writes optional decimals as text so both engines store them exactly.
func decimalText(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	return &d.Decimal
}

// =============================================================================
// SUBJECT TAXONOMY
// =============================================================================

// ListSubjects returns the whole taxonomy.
func (s *Store) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rs, err := s.db.Query(ctx,
		`SELECT id, kind, outline_subject_id, detail_subject_id, name FROM subject ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rs.Close()

	var out []models.Subject
	for rs.Next() {
		var sub models.Subject
		var kind string
		if err := rs.Scan(&sub.ID, &kind, &sub.OutlineSubjectID, &sub.DetailSubjectID, &sub.Name); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		sub.Kind = models.StatementKind(kind)
		out = append(out, sub)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return out, nil
}

// SaveSubjects upserts subjects by id in one transaction.
func (s *Store) SaveSubjects(ctx context.Context, subjects []models.Subject) error {
	sorted := make([]models.Subject, len(subjects))
	copy(sorted, subjects)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return s.db.InTx(ctx, func(q querier) error {
		for _, sub := range sorted {
			_, err := q.Exec(ctx, `
				INSERT INTO subject (id, kind, outline_subject_id, detail_subject_id, name)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id)
				DO UPDATE SET
					kind = EXCLUDED.kind,
					outline_subject_id = EXCLUDED.outline_subject_id,
					detail_subject_id = EXCLUDED.detail_subject_id,
					name = EXCLUDED.name
			`, sub.ID, string(sub.Kind), sub.OutlineSubjectID, sub.DetailSubjectID, sub.Name)
			if err != nil {
				return fmt.Errorf("failed to save subject %s: %w", sub.ID, err)
			}
		}
		return nil
	})
}
