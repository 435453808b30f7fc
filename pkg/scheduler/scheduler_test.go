package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"filing_valuation/pkg/core/pipeline"
	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockBatchRunner struct {
	RunSubmitDateFunc func(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error)
}

func (m *MockBatchRunner) RunSubmitDate(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error) {
	if m.RunSubmitDateFunc != nil {
		return m.RunSubmitDateFunc(ctx, date, opts)
	}
	return nil, nil
}

func TestSubmitDateJob_RunsLookbackOldestFirst(t *testing.T) {
	var dates []string
	job := &SubmitDateJob{
		Runner: &MockBatchRunner{
			RunSubmitDateFunc: func(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error) {
				dates = append(dates, date.Format(models.DateLayout))
				return []pipeline.FilingResult{{DocumentID: "S100AAAA"}}, nil
			},
		},
		LookbackDays: 2,
		Now:          func() time.Time { return time.Date(2024, 6, 20, 21, 15, 0, 0, time.UTC) },
		Log:          zerolog.Nop(),
	}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"2024-06-18", "2024-06-19", "2024-06-20"}, dates)
}

func TestSubmitDateJob_StopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("store down")
	job := &SubmitDateJob{
		Runner: &MockBatchRunner{
			RunSubmitDateFunc: func(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error) {
				calls++
				return nil, boom
			},
		},
		LookbackDays: 3,
		Log:          zerolog.Nop(),
	}

	assert.ErrorIs(t, job.Run(context.Background()), boom)
	assert.Equal(t, 1, calls)
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	job := &SubmitDateJob{Runner: &MockBatchRunner{}, Log: zerolog.Nop()}

	assert.NoError(t, s.AddJob("30 20 * * *", job))
	assert.NoError(t, s.AddJob("@daily", job))
	assert.Error(t, s.AddJob("not a schedule", job))
}

func TestScheduler_RunNowPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	s := New(ctx, zerolog.Nop())
	job := &SubmitDateJob{
		Runner: &MockBatchRunner{
			RunSubmitDateFunc: func(ctx context.Context, date time.Time, opts pipeline.Options) ([]pipeline.FilingResult, error) {
				got = ctx.Err()
				return nil, ctx.Err()
			},
		},
		Log: zerolog.Nop(),
	}

	assert.ErrorIs(t, s.RunNow(job), context.Canceled)
	assert.ErrorIs(t, got, context.Canceled)
}
