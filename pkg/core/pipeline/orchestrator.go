// Package pipeline runs the scrape stages of decoded filings and feeds the
// results into the valuation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"filing_valuation/pkg/core/calc"
	"filing_valuation/pkg/core/scrape"
	"filing_valuation/pkg/core/status"
	"filing_valuation/pkg/core/subject"
	"filing_valuation/pkg/core/valuation"
	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the orchestrator reads and writes directly.
type Store interface {
	FindFiling(ctx context.Context, documentID string) (models.Filing, error)
	ListFilingsBySubmitDate(ctx context.Context, date time.Time) ([]models.Filing, error)
	ListFilingsNeedingAttention(ctx context.Context, from, to time.Time) ([]models.Filing, error)
	FindFact(ctx context.Context, key models.FactKey) (*models.FinancialFact, error)
	InsertFact(ctx context.Context, fact models.FinancialFact) (bool, error)
}

// StatusWriter records stage outcomes; *status.Machine implements it.
type StatusWriter interface {
	Apply(ctx context.Context, documentID string, o status.Outcome) (models.Filing, error)
	Remove(ctx context.Context, documentID string) error
}

// TableLocator finds the fragment a statement keyword points at.
type TableLocator interface {
	LocateFirst(dir string, keywords []models.ScrapingKeyword) (scrape.Match, bool, error)
}

// Taxonomy maps printed labels to subjects and lists the details of an outline.
type Taxonomy interface {
	FindByName(kind models.StatementKind, label string) (models.Subject, bool, error)
	Details(o subject.Outline) ([]models.Subject, error)
}

// Evaluator computes the corporate value of a fully scraped filing.
type Evaluator interface {
	Evaluate(ctx context.Context, filing models.Filing) (valuation.Result, error)
	AlreadyValued(ctx context.Context, filing models.Filing) (bool, error)
}

// Config is the file-system layout and keyword table of a run.
type Config struct {
	// DecodeRoot holds one directory per submit date, one per document below it.
	DecodeRoot string
	// DocumentSubdir is the path inside a document directory that holds the body files.
	DocumentSubdir string
	Keywords       map[models.StatementKind][]models.ScrapingKeyword
	// TargetDocTypes limits batch runs; empty means every type.
	TargetDocTypes []models.DocumentTypeCode
}

// Options tune a single run.
type Options struct {
	// Force re-runs stages that are already DONE or PARTIAL.
	Force bool
}

// StageResult is what one scrape stage did.
type StageResult struct {
	Stage      models.Stage       `json:"stage"`
	Status     models.StageStatus `json:"status"`
	Path       string             `json:"path,omitempty"`
	Diagnostic string             `json:"diagnostic,omitempty"`
	Facts      int                `json:"facts"`
	Skipped    bool               `json:"skipped,omitempty"`
}

// FilingResult summarises one RunFiling call.
type FilingResult struct {
	DocumentID     string            `json:"document_id"`
	Skipped        string            `json:"skipped,omitempty"`
	Stages         []StageResult     `json:"stages,omitempty"`
	Valuation      *valuation.Result `json:"valuation,omitempty"`
	ValuationError string            `json:"valuation_error,omitempty"`
}

// Skip reasons.
const (
	SkipRemoved       = "removed"
	SkipNotDecoded    = "not decoded"
	SkipDocumentType  = "document type not targeted"
	SkipAlreadyValued = "already valued"
)

// Orchestrator drives filings through the scrape stages and the valuation.
type Orchestrator struct {
	store     Store
	status    StatusWriter
	locator   TableLocator
	taxonomy  Taxonomy
	resolver  *subject.Resolver
	evaluator Evaluator
	cfg       Config
	log       zerolog.Logger
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(store Store, statusWriter StatusWriter, locator TableLocator, taxonomy Taxonomy, evaluator Evaluator, cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		status:    statusWriter,
		locator:   locator,
		taxonomy:  taxonomy,
		resolver:  subject.NewResolver(store, taxonomy),
		evaluator: evaluator,
		cfg:       cfg,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// DocumentDir is where the decoded body files of a filing live.
func (o *Orchestrator) DocumentDir(f models.Filing) string {
	return filepath.Join(o.cfg.DecodeRoot, f.SubmitDate.Format(models.DateLayout), f.DocumentID, o.cfg.DocumentSubdir)
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// RunFiling scrapes one filing and values it when all three statements are in.
// Once started, a filing runs to completion even if ctx is cancelled.
// Data-quality problems end up in the stage outcomes; only infrastructure
// failures are returned.
func (o *Orchestrator) RunFiling(ctx context.Context, documentID string, opts Options) (FilingResult, error) {
	ctx = context.WithoutCancel(ctx)
	res := FilingResult{DocumentID: documentID}

	f, err := o.store.FindFiling(ctx, documentID)
	if err != nil {
		return res, err
	}
	if f.Removed {
		res.Skipped = SkipRemoved
		return res, nil
	}
	if !status.Eligible(f) {
		res.Skipped = SkipNotDecoded
		return res, nil
	}

	log := o.log.With().Str("document_id", f.DocumentID).Str("filer", f.FilerCode).Logger()
	dir := o.DocumentDir(f)

	res.Stages = make([]StageResult, len(models.ScrapeStages))
	g, gctx := errgroup.WithContext(ctx)
	for i, stage := range models.ScrapeStages {
		i, stage := i, stage
		if !opts.Force && !needsRun(f.Status.Get(stage)) {
			res.Stages[i] = StageResult{Stage: stage, Status: f.Status.Get(stage), Skipped: true}
			continue
		}
		g.Go(func() error {
			sr, err := o.runStage(gctx, f, stage, dir, log)
			if err != nil {
				return fmt.Errorf("%s stage: %w", stage, err)
			}
			res.Stages[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	f, err = o.store.FindFiling(ctx, documentID)
	if err != nil {
		return res, err
	}
	if !f.Status.ScrapeDone() {
		log.Info().Interface("status", f.Status).Msg("scrape incomplete; valuation skipped")
		return res, nil
	}

	vr, err := o.evaluator.Evaluate(ctx, f)
	switch {
	case errors.Is(err, subject.ErrMissingFinancialValue), errors.Is(err, calc.ErrCalculationFailed),
		errors.Is(err, valuation.ErrUnknownPeriod):
		res.Valuation = &vr
		res.ValuationError = err.Error()
		log.Warn().Err(err).Msg("valuation not possible")
		return res, nil
	case err != nil:
		return res, err
	}
	res.Valuation = &vr
	return res, nil
}

// RunSubmitDate runs every targeted, decoded and not yet valued filing
// submitted on date. It stops issuing filings when ctx is done.
func (o *Orchestrator) RunSubmitDate(ctx context.Context, date time.Time, opts Options) ([]FilingResult, error) {
	filings, err := o.store.ListFilingsBySubmitDate(ctx, date)
	if err != nil {
		return nil, err
	}

	log := o.log.With().Str("submit_date", date.Format(models.DateLayout)).Logger()
	log.Info().Int("filings", len(filings)).Msg("batch started")

	results := make([]FilingResult, 0, len(filings))
	for _, f := range filings {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("done", len(results)).Msg("batch interrupted")
			return results, err
		}

		if reason := o.batchSkipReason(f); reason != "" {
			results = append(results, FilingResult{DocumentID: f.DocumentID, Skipped: reason})
			continue
		}
		if f.Status.ScrapeDone() && !opts.Force {
			valued, err := o.evaluator.AlreadyValued(ctx, f)
			if err != nil {
				return results, err
			}
			if valued {
				results = append(results, FilingResult{DocumentID: f.DocumentID, Skipped: SkipAlreadyValued})
				continue
			}
		}

		r, err := o.RunFiling(ctx, f.DocumentID, opts)
		if err != nil {
			return results, fmt.Errorf("filing %s: %w", f.DocumentID, err)
		}
		results = append(results, r)
	}

	log.Info().Int("filings", len(results)).Msg("batch finished")
	return results, nil
}

// Report lists the filings submitted in [from, to] that need an operator.
func (o *Orchestrator) Report(ctx context.Context, from, to time.Time) (status.Report, error) {
	filings, err := o.store.ListFilingsNeedingAttention(ctx, from, to)
	if err != nil {
		return status.Report{}, err
	}
	return status.BuildReport(filings, from, to, time.Now()), nil
}

// Remove excludes a filing from every future run.
func (o *Orchestrator) Remove(ctx context.Context, documentID string) error {
	return o.status.Remove(ctx, documentID)
}

func (o *Orchestrator) batchSkipReason(f models.Filing) string {
	switch {
	case f.Removed:
		return SkipRemoved
	case !status.Eligible(f):
		return SkipNotDecoded
	case !o.targeted(f.DocumentTypeCode):
		return SkipDocumentType
	}
	return ""
}

func (o *Orchestrator) targeted(code models.DocumentTypeCode) bool {
	if len(o.cfg.TargetDocTypes) == 0 {
		return true
	}
	for _, c := range o.cfg.TargetDocTypes {
		if c == code {
			return true
		}
	}
	return false
}

// needsRun is true for stages a plain run picks up: never run, or failed.
func needsRun(s models.StageStatus) bool {
	return s == models.StatusNotStarted || s == models.StatusError
}
