// Package valuation turns the stored facts of a scraped filing into its
// corporate value and records the result once per filer and period.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filing_valuation/pkg/core/calc"
	"filing_valuation/pkg/core/subject"
	"filing_valuation/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is the persistence the evaluator writes to.
type Store interface {
	InsertValuation(ctx context.Context, v models.ValuationResult) (bool, error)
	FindValuation(ctx context.Context, filerCode string, periodEnd time.Time) (*models.ValuationResult, error)
}

// Resolver reassembles one outline aggregate.
type Resolver interface {
	Resolve(ctx context.Context, filing models.Filing, o subject.Outline) (int64, error)
}

// Demoter flags a scrape stage whose output turned out to be unusable.
type Demoter interface {
	Demote(ctx context.Context, documentID string, stage models.Stage, diagnostic string) (bool, error)
}

// ErrUnknownPeriod is returned for filings whose period end was never
// determined; their valuation key would collide with every other such filing.
var ErrUnknownPeriod = errors.New("filing period end unknown")

// Result is the outcome of one evaluation.
type Result struct {
	Value      decimal.Decimal
	Indicators calc.Indicators
	Inserted   bool // false when this filer and period was already valued
	Missing    []*subject.MissingFinancialValueError
	Demoted    []models.Stage
}

// inputs lists the outlines read for the calculation, in resolve order.
var inputs = []subject.Outline{
	subject.OperatingProfit,
	subject.TotalCurrentAssets,
	subject.TotalCurrentLiabilities,
	subject.TotalInvestmentsAndOtherAssets,
	subject.TotalFixedLiabilities,
	subject.NumberOfShares,
}

// indicatorInputs are read after the value is computed; a miss leaves the
// indicator empty and demotes nothing.
var indicatorInputs = []subject.Outline{
	subject.TotalNetAssets,
	subject.NetIncome,
	subject.TotalAssets,
	subject.SubscriptionWarrant,
}

// Evaluator computes and records corporate values.
type Evaluator struct {
	resolver Resolver
	store    Store
	status   Demoter
	params   calc.Params
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewEvaluator builds an Evaluator.
func NewEvaluator(resolver Resolver, store Store, status Demoter, params calc.Params, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		resolver: resolver,
		store:    store,
		status:   status,
		params:   params,
		log:      log.With().Str("component", "valuation").Logger(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Evaluate resolves the six aggregates of filing, computes the value and
// inserts it. Every outline is resolved before giving up so that each stage
// with a missing value is demoted in one pass. Missing values come back as
// an error matching subject.ErrMissingFinancialValue; a missing or zero share
// count also matches calc.ErrCalculationFailed.
func (e *Evaluator) Evaluate(ctx context.Context, filing models.Filing) (Result, error) {
	var res Result
	if !filing.HasKnownPeriod() {
		return res, fmt.Errorf("%s: %w", filing.DocumentID, ErrUnknownPeriod)
	}
	values := make(map[subject.Outline]int64, len(inputs))

	for _, o := range inputs {
		v, err := e.resolver.Resolve(ctx, filing, o)
		var missing *subject.MissingFinancialValueError
		switch {
		case errors.As(err, &missing):
			res.Missing = append(res.Missing, missing)
			continue
		case err != nil:
			return res, err
		}
		values[o] = v
	}

	if len(res.Missing) > 0 {
		errs := make([]error, 0, len(res.Missing))
		for _, m := range res.Missing {
			if m.Outline == subject.NumberOfShares {
				errs = append(errs, fmt.Errorf("%w: %w", calc.ErrCalculationFailed, m))
			} else {
				errs = append(errs, m)
			}
			stage := m.Outline.Kind.Stage()
			changed, err := e.status.Demote(ctx, filing.DocumentID, stage, m.Error())
			if err != nil {
				return res, fmt.Errorf("demote %s: %w", stage, err)
			}
			if changed {
				res.Demoted = append(res.Demoted, stage)
			}
		}
		return res, errors.Join(errs...)
	}

	in := calc.Inputs{
		OperatingProfit:                values[subject.OperatingProfit],
		TotalCurrentAssets:             values[subject.TotalCurrentAssets],
		TotalCurrentLiabilities:        values[subject.TotalCurrentLiabilities],
		TotalInvestmentsAndOtherAssets: values[subject.TotalInvestmentsAndOtherAssets],
		TotalFixedLiabilities:          values[subject.TotalFixedLiabilities],
		NumberOfShares:                 values[subject.NumberOfShares],
		QuarterWeight:                  QuarterWeight(filing),
	}
	value, err := calc.CorporateValue(in, e.params)
	if err != nil {
		return res, fmt.Errorf("%s: %w", filing.DocumentID, err)
	}
	res.Value = value

	res.Indicators, err = e.indicators(ctx, filing, values[subject.NumberOfShares])
	if err != nil {
		return res, err
	}

	inserted, err := e.store.InsertValuation(ctx, models.ValuationResult{
		ID:               e.newID(),
		FilerCode:        filing.FilerCode,
		CompanyCode:      filing.CompanyCode,
		PeriodEnd:        filing.PeriodEnd,
		DocumentTypeCode: filing.DocumentTypeCode,
		QuarterType:      filing.QuarterType,
		SubmitDate:       filing.SubmitDate,
		DocumentID:       filing.DocumentID,
		CorporateValue:   value,
		BPS:              res.Indicators.BPS,
		EPS:              res.Indicators.EPS,
		ROE:              res.Indicators.ROE,
		ROA:              res.Indicators.ROA,
		CreatedAt:        e.now(),
	})
	if err != nil {
		return res, fmt.Errorf("insert valuation: %w", err)
	}
	res.Inserted = inserted

	ev := e.log.Info()
	if !inserted {
		ev = e.log.Debug()
	}
	ev.Str("document_id", filing.DocumentID).
		Str("filer", filing.FilerCode).
		Str("corporate_value", value.StringFixed(2)).
		Bool("inserted", inserted).
		Msg("corporate value computed")
	return res, nil
}

// indicators resolves the optional aggregates and derives BPS, EPS, ROE and ROA.
func (e *Evaluator) indicators(ctx context.Context, filing models.Filing, shares int64) (calc.Indicators, error) {
	found := make(map[subject.Outline]*int64, len(indicatorInputs))
	for _, o := range indicatorInputs {
		v, err := e.resolver.Resolve(ctx, filing, o)
		switch {
		case errors.Is(err, subject.ErrMissingFinancialValue):
			e.log.Debug().Str("document_id", filing.DocumentID).Stringer("outline", o).Msg("indicator input missing")
			continue
		case err != nil:
			return calc.Indicators{}, err
		}
		found[o] = &v
	}

	return calc.CalculateIndicators(calc.IndicatorInputs{
		NetAssets:           found[subject.TotalNetAssets],
		NetIncome:           found[subject.NetIncome],
		TotalAssets:         found[subject.TotalAssets],
		SubscriptionWarrant: found[subject.SubscriptionWarrant],
		NumberOfShares:      shares,
		Quarterly:           filing.DocumentTypeCode.IsQuarterly(),
	}), nil
}

// AlreadyValued reports whether the filer and period of filing has a stored result.
func (e *Evaluator) AlreadyValued(ctx context.Context, filing models.Filing) (bool, error) {
	v, err := e.store.FindValuation(ctx, filing.FilerCode, filing.PeriodEnd)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// QuarterWeight is the number of quarters a filing's figures accumulate;
// 0 (a full year) for everything that is not a quarterly report.
func QuarterWeight(f models.Filing) int64 {
	if !f.DocumentTypeCode.IsQuarterly() {
		return 0
	}
	w, ok := f.QuarterType.Weight()
	if !ok {
		return 0
	}
	return w
}
