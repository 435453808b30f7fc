// Package app wires the store, taxonomy, status machine and orchestrator from
// the loaded configuration. Both binaries start here.
package app

import (
	"context"
	"fmt"

	"filing_valuation/pkg/config"
	"filing_valuation/pkg/core/pipeline"
	"filing_valuation/pkg/core/scrape"
	"filing_valuation/pkg/core/status"
	"filing_valuation/pkg/core/store"
	"filing_valuation/pkg/core/subject"
	"filing_valuation/pkg/core/valuation"
	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
)

// App is a ready-to-run pipeline.
type App struct {
	Config       config.Config
	Store        *store.Store
	Taxonomy     *subject.Taxonomy
	Machine      *status.Machine
	Orchestrator *pipeline.Orchestrator
}

// Open connects the store, loads the subject taxonomy (seeding it from the
// configured file when the table is empty) and builds the orchestrator.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	keywords, err := cfg.KeywordsByKind()
	if err != nil {
		return nil, err
	}
	params, err := cfg.ValuationParams()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	taxonomy := subject.NewTaxonomy(st)
	if err := taxonomy.Refresh(ctx); err != nil {
		st.Close()
		return nil, err
	}
	if taxonomy.Len() == 0 && cfg.Paths.SubjectSeed != "" {
		n, err := SeedSubjects(ctx, st, taxonomy, cfg.Paths.SubjectSeed)
		if err != nil {
			st.Close()
			return nil, err
		}
		log.Info().Int("subjects", n).Str("seed", cfg.Paths.SubjectSeed).Msg("subject table seeded")
	}

	machine := status.NewMachine(st, log)
	resolver := subject.NewResolver(st, taxonomy)
	evaluator := valuation.NewEvaluator(resolver, st, machine, params, log)
	orch := pipeline.NewOrchestrator(st, machine, scrape.NewLocator(cfg.Paths.BodyFileMarker, log), taxonomy, evaluator, pipeline.Config{
		DecodeRoot:     cfg.Paths.DecodeRoot,
		DocumentSubdir: cfg.Paths.DocumentSubdir,
		Keywords:       keywords,
		TargetDocTypes: cfg.DocumentTypes(),
	}, log)

	return &App{Config: cfg, Store: st, Taxonomy: taxonomy, Machine: machine, Orchestrator: orch}, nil
}

// SeedSubjects upserts the subjects of an hjson seed file and reloads the taxonomy.
func SeedSubjects(ctx context.Context, st *store.Store, taxonomy *subject.Taxonomy, path string) (int, error) {
	subjects, err := subject.LoadSeed(path)
	if err != nil {
		return 0, err
	}
	if err := st.SaveSubjects(ctx, subjects); err != nil {
		return 0, err
	}
	if err := taxonomy.Refresh(ctx); err != nil {
		return 0, err
	}
	return len(subjects), nil
}

// Register records a filing handed over by the download and decode steps and
// marks the given upstream stages DONE through the status machine. It returns
// false when the filing was already registered; the stages are applied either way.
func (a *App) Register(ctx context.Context, f models.Filing, done ...models.Stage) (bool, error) {
	for _, stage := range done {
		if stage != models.StageDownload && stage != models.StageDecode {
			return false, fmt.Errorf("stage %s is not recorded at registration", stage)
		}
	}
	if f.SubmitDate.IsZero() {
		return false, fmt.Errorf("filing %s has no submit date", f.DocumentID)
	}
	f.Status = models.NewStatusVector()

	inserted, err := a.Store.InsertFiling(ctx, f)
	if err != nil {
		return false, err
	}
	for _, stage := range done {
		if _, err := a.Machine.Apply(ctx, f.DocumentID, status.Outcome{Stage: stage, Status: models.StatusDone}); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// Close releases the store.
func (a *App) Close() {
	a.Store.Close()
}
