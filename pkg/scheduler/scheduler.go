// Package scheduler runs the daily batch on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"filing_valuation/pkg/core/pipeline"
	"filing_valuation/pkg/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  zerolog.Logger
}

// New creates a scheduler. Jobs run with ctx, so cancelling it stops a batch
// between filings. Specs use the standard five cron fields.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		ctx:  ctx,
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under a cron spec such as "30 20 * * *" or "@daily".
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(job); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("schedule", spec).Str("job", job.Name()).Msg("Job registered")
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	return job.Run(s.ctx)
}

// =============================================================================
// SUBMIT-DATE BATCH
// =============================================================================

// BatchRunner runs all filings of one submit date.
type BatchRunner interface {
	RunSubmitDate(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error)
}

// SubmitDateJob runs today's filings and those of the previous LookbackDays days,
// oldest first, so late-decoded documents are picked up.
type SubmitDateJob struct {
	Runner       BatchRunner
	LookbackDays int
	Now          func() time.Time
	Log          zerolog.Logger
}

func (j *SubmitDateJob) Name() string { return "submit_date_batch" }

// Run stops at the first date that fails.
func (j *SubmitDateJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	today := now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	for back := max(j.LookbackDays, 0); back >= 0; back-- {
		date := today.AddDate(0, 0, -back)
		results, err := j.Runner.RunSubmitDate(ctx, date, pipeline.Options{})
		if err != nil {
			return err
		}

		valued := 0
		for _, r := range results {
			if r.Valuation != nil && r.Valuation.Inserted {
				valued++
			}
		}
		j.Log.Info().
			Str("submit_date", date.Format(models.DateLayout)).
			Int("filings", len(results)).
			Int("valued", valued).
			Msg("submit date processed")
	}
	return nil
}
