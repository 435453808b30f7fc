package subject

import (
	"context"
	"errors"
	"fmt"

	"filing_valuation/pkg/models"
)

// ErrMissingFinancialValue is matched by every *MissingFinancialValueError.
var ErrMissingFinancialValue = errors.New("missing financial value")

// MissingFinancialValueError names the outline no detail subject had a value for.
type MissingFinancialValueError struct {
	Outline    Outline
	DocumentID string
	FilerCode  string
	PeriodEnd  string
}

func (e *MissingFinancialValueError) Error() string {
	return fmt.Sprintf("%s: no value for %s (filer %s, period %s)",
		e.DocumentID, e.Outline, e.FilerCode, e.PeriodEnd)
}

func (e *MissingFinancialValueError) Unwrap() error { return ErrMissingFinancialValue }

// FactFinder is the slice of the store the resolver reads.
type FactFinder interface {
	FindFact(ctx context.Context, key models.FactKey) (*models.FinancialFact, error)
}

// DetailLister yields the detail subjects of an outline in probe order.
type DetailLister interface {
	Details(o Outline) ([]models.Subject, error)
}

// Resolver reassembles outline aggregates from stored facts.
type Resolver struct {
	facts    FactFinder
	taxonomy DetailLister
}

// NewResolver builds a Resolver.
func NewResolver(facts FactFinder, taxonomy DetailLister) *Resolver {
	return &Resolver{facts: facts, taxonomy: taxonomy}
}

// Resolve probes the outline's detail subjects in ascending detail-id order and
// returns the first stored non-nil value. Subjects of other outlines are never
// read. A miss is a *MissingFinancialValueError.
func (r *Resolver) Resolve(ctx context.Context, filing models.Filing, o Outline) (int64, error) {
	details, err := r.taxonomy.Details(o)
	if err != nil {
		return 0, err
	}

	for _, s := range details {
		if s.Kind != o.Kind || s.OutlineSubjectID != o.ID {
			continue
		}
		fact, err := r.facts.FindFact(ctx, filing.FactKey(o.Kind, s.ID))
		if err != nil {
			return 0, fmt.Errorf("find fact %s: %w", s.ID, err)
		}
		if fact != nil && fact.Value != nil {
			return *fact.Value, nil
		}
	}

	return 0, &MissingFinancialValueError{
		Outline:    o,
		DocumentID: filing.DocumentID,
		FilerCode:  filing.FilerCode,
		PeriodEnd:  filing.PeriodEnd.Format(models.DateLayout),
	}
}
