package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing_valuation/pkg/core/scrape"
	"filing_valuation/pkg/core/status"
	"filing_valuation/pkg/core/subject"
	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
)

// =============================================================================
// STAGE RUNNER
// =============================================================================

// runStage scrapes one statement and records its outcome.
func (o *Orchestrator) runStage(ctx context.Context, f models.Filing, stage models.Stage, dir string, log zerolog.Logger) (StageResult, error) {
	kind, ok := stage.Kind()
	if !ok {
		return StageResult{}, fmt.Errorf("%q is not a scrape stage", stage)
	}
	log = log.With().Str("stage", string(stage)).Logger()

	sr, err := o.scrape(ctx, f, kind, dir, log)
	if err != nil {
		if !scrape.IsDataQuality(err) {
			return StageResult{}, err
		}
		sr.Status = models.StatusError
		sr.Diagnostic = err.Error()
	}
	sr.Stage = stage

	if _, err := o.status.Apply(ctx, f.DocumentID, status.Outcome{
		Stage:      stage,
		Status:     sr.Status,
		Path:       sr.Path,
		Diagnostic: sr.Diagnostic,
	}); err != nil {
		return sr, err
	}

	ev := log.Info()
	if sr.Status != models.StatusDone {
		ev = log.Warn().Str("diagnostic", sr.Diagnostic)
	}
	ev.Str("status", sr.Status.String()).Int("facts", sr.Facts).Msg("stage finished")
	return sr, nil
}

// scrape returns a DONE or ERROR result, or a data-quality error the caller
// turns into ERROR.
func (o *Orchestrator) scrape(ctx context.Context, f models.Filing, kind models.StatementKind, dir string, log zerolog.Logger) (StageResult, error) {
	keywords := o.cfg.Keywords[kind]
	if len(keywords) == 0 {
		return StageResult{Status: models.StatusError, Diagnostic: "no keywords configured for " + kind.Name()}, nil
	}

	m, found, err := o.locator.LocateFirst(dir, keywords)
	if err != nil {
		return StageResult{}, err
	}
	if !found {
		return StageResult{
			Status:     models.StatusError,
			Path:       dir,
			Diagnostic: fmt.Sprintf("no %s table found for %d keyword(s)", kind.Name(), len(keywords)),
		}, nil
	}

	sr := StageResult{Status: models.StatusDone, Path: m.Path}
	if kind == models.KindShareCount {
		sr.Facts, err = o.scrapeShares(ctx, f, m, log)
	} else {
		sr.Facts, err = o.scrapeStatement(ctx, f, kind, m, log)
	}
	if err != nil {
		return sr, err
	}

	if kind == models.KindBalanceSheet {
		if err := o.fillBalanceSheetGaps(ctx, f, log); err != nil {
			return sr, err
		}
	}
	return sr, nil
}

// scrapeStatement stores every row whose label is a known subject.
func (o *Orchestrator) scrapeStatement(ctx context.Context, f models.Filing, kind models.StatementKind, m scrape.Match, log zerolog.Logger) (int, error) {
	rows, order, err := scrape.ParseFinancialTable(m)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("keyword", m.Keyword).Stringer("order", order).Int("rows", len(rows)).Msg("table parsed")

	n := 0
	for _, r := range rows {
		sub, ok, err := o.taxonomy.FindByName(kind, r.Subject)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}

		var value *int64
		if v, err := scrape.ScaledValue(r.Current, r.Unit); err != nil {
			log.Warn().Err(err).Str("subject", sub.Name).Str("printed", r.Current).Msg("value not readable; stored empty")
		} else {
			value = &v
		}

		inserted, err := o.insertFact(ctx, f, kind, sub.ID, value)
		if err != nil {
			return n, err
		}
		if inserted {
			n++
		}
	}
	return n, nil
}

func (o *Orchestrator) scrapeShares(ctx context.Context, f models.Filing, m scrape.Match, log zerolog.Logger) (int, error) {
	sc, err := scrape.ExtractShareCount(m)
	if err != nil {
		return 0, err
	}

	var value *int64
	if v, err := scrape.ParseValue(sc.Value); err != nil {
		log.Warn().Err(err).Str("printed", sc.Value).Msg("share count not readable; stored empty")
	} else {
		value = &v
	}

	inserted, err := o.insertFact(ctx, f, models.KindShareCount, models.ShareCountSubjectID, value)
	if err != nil || !inserted {
		return 0, err
	}
	return 1, nil
}

// fillBalanceSheetGaps stores the zeros a balance sheet implies but does not
// print: no fixed liabilities when current liabilities are all liabilities,
// and no investments line in a quarterly report.
func (o *Orchestrator) fillBalanceSheetGaps(ctx context.Context, f models.Filing, log zerolog.Logger) error {
	if _, err := o.resolver.Resolve(ctx, f, subject.TotalFixedLiabilities); isMissing(err) {
		current, errC := o.resolver.Resolve(ctx, f, subject.TotalCurrentLiabilities)
		total, errT := o.resolver.Resolve(ctx, f, subject.TotalLiabilities)
		if errC == nil && errT == nil && current == total {
			if err := o.insertZero(ctx, f, subject.TotalFixedLiabilities, log); err != nil {
				return err
			}
		} else if err := firstInfraError(errC, errT); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if !f.DocumentTypeCode.IsQuarterly() {
		return nil
	}
	_, err := o.resolver.Resolve(ctx, f, subject.TotalInvestmentsAndOtherAssets)
	if isMissing(err) {
		return o.insertZero(ctx, f, subject.TotalInvestmentsAndOtherAssets, log)
	}
	return err
}

func (o *Orchestrator) insertZero(ctx context.Context, f models.Filing, outline subject.Outline, log zerolog.Logger) error {
	details, err := o.taxonomy.Details(outline)
	if err != nil {
		return err
	}
	if len(details) == 0 {
		return fmt.Errorf("no detail subjects under %s", outline)
	}
	zero := int64(0)
	if _, err := o.insertFact(ctx, f, outline.Kind, details[0].ID, &zero); err != nil {
		return err
	}
	log.Info().Str("subject", outline.Name).Msg("implied zero stored")
	return nil
}

func (o *Orchestrator) insertFact(ctx context.Context, f models.Filing, kind models.StatementKind, subjectID string, value *int64) (bool, error) {
	return o.store.InsertFact(ctx, models.FinancialFact{
		FactKey:     f.FactKey(kind, subjectID),
		CompanyCode: f.CompanyCode,
		DocumentID:  f.DocumentID,
		PeriodStart: f.PeriodStart,
		Value:       value,
		CreatedType: models.CreatedAuto,
		CreatedAt:   time.Now(),
	})
}

func isMissing(err error) bool {
	return errors.Is(err, subject.ErrMissingFinancialValue)
}

func firstInfraError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !isMissing(err) {
			return err
		}
	}
	return nil
}
