package valuation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"filing_valuation/pkg/core/calc"
	"filing_valuation/pkg/core/subject"
	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockResolver implements Resolver.
type MockResolver struct {
	ResolveFunc func(ctx context.Context, f models.Filing, o subject.Outline) (int64, error)
}

func (m *MockResolver) Resolve(ctx context.Context, f models.Filing, o subject.Outline) (int64, error) {
	return m.ResolveFunc(ctx, f, o)
}

// MockDemoter implements Demoter.
type MockDemoter struct {
	DemoteFunc func(ctx context.Context, documentID string, stage models.Stage, diagnostic string) (bool, error)
	demoted    []models.Stage
}

func (m *MockDemoter) Demote(ctx context.Context, documentID string, stage models.Stage, diagnostic string) (bool, error) {
	m.demoted = append(m.demoted, stage)
	if m.DemoteFunc != nil {
		return m.DemoteFunc(ctx, documentID, stage, diagnostic)
	}
	return true, nil
}

// memValuations is a unique-on-(filer, period) valuation store.
type memValuations struct {
	mu   sync.Mutex
	rows map[string]models.ValuationResult
}

func newMemValuations() *memValuations {
	return &memValuations{rows: make(map[string]models.ValuationResult)}
}

func valuationKey(filer string, period time.Time) string {
	return filer + "|" + period.Format(models.DateLayout)
}

func (m *memValuations) InsertValuation(ctx context.Context, v models.ValuationResult) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := valuationKey(v.FilerCode, v.PeriodEnd)
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = v
	return true, nil
}

func (m *memValuations) FindValuation(ctx context.Context, filer string, period time.Time) (*models.ValuationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[valuationKey(filer, period)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

var exampleValues = map[subject.Outline]int64{
	subject.OperatingProfit:                500_000,
	subject.TotalCurrentAssets:             2_000_000,
	subject.TotalCurrentLiabilities:        1_000_000,
	subject.TotalInvestmentsAndOtherAssets: 300_000,
	subject.TotalFixedLiabilities:          200_000,
	subject.NumberOfShares:                 10_000,
}

func resolverFrom(values map[subject.Outline]int64) *MockResolver {
	return &MockResolver{ResolveFunc: func(ctx context.Context, f models.Filing, o subject.Outline) (int64, error) {
		v, ok := values[o]
		if !ok {
			return 0, &subject.MissingFinancialValueError{Outline: o, DocumentID: f.DocumentID}
		}
		return v, nil
	}}
}

func annualFiling() models.Filing {
	return models.Filing{
		DocumentID:       "S100TEST",
		FilerCode:        "E00001",
		DocumentTypeCode: models.DocTypeAnnualReport,
		PeriodEnd:        time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC),
		SubmitDate:       time.Date(2020, 6, 26, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluate(t *testing.T) {
	store := newMemValuations()
	e := NewEvaluator(resolverFrom(exampleValues), store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())
	e.newID = func() string { return "fixed-id" }

	res, err := e.Evaluate(context.Background(), annualFiling())
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, "590", res.Value.String())

	stored, err := store.FindValuation(context.Background(), "E00001", annualFiling().PeriodEnd)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "fixed-id", stored.ID)
	assert.Equal(t, "S100TEST", stored.DocumentID)
}

func TestEvaluate_Idempotent(t *testing.T) {
	store := newMemValuations()
	e := NewEvaluator(resolverFrom(exampleValues), store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())

	var wg sync.WaitGroup
	inserted := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Evaluate(context.Background(), annualFiling())
			assert.NoError(t, err)
			inserted <- res.Inserted
		}()
	}
	wg.Wait()
	close(inserted)

	n := 0
	for ok := range inserted {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.Len(t, store.rows, 1)
}

func TestEvaluate_MissingValuesDemoteEachStage(t *testing.T) {
	values := map[subject.Outline]int64{}
	for k, v := range exampleValues {
		values[k] = v
	}
	delete(values, subject.TotalCurrentAssets)
	delete(values, subject.NumberOfShares)

	demoter := &MockDemoter{}
	store := newMemValuations()
	e := NewEvaluator(resolverFrom(values), store, demoter, calc.DefaultParams(), zerolog.Nop())

	res, err := e.Evaluate(context.Background(), annualFiling())
	require.Error(t, err)
	assert.ErrorIs(t, err, subject.ErrMissingFinancialValue)
	assert.Len(t, res.Missing, 2)
	assert.Equal(t, []models.Stage{models.StageBalanceSheet, models.StageShares}, demoter.demoted)
	assert.Equal(t, []models.Stage{models.StageBalanceSheet, models.StageShares}, res.Demoted)
	assert.Empty(t, store.rows)
}

func TestEvaluate_MissingSharesIsCalculationFailure(t *testing.T) {
	values := map[subject.Outline]int64{}
	for k, v := range exampleValues {
		values[k] = v
	}
	delete(values, subject.NumberOfShares)

	demoter := &MockDemoter{}
	e := NewEvaluator(resolverFrom(values), newMemValuations(), demoter, calc.DefaultParams(), zerolog.Nop())

	_, err := e.Evaluate(context.Background(), annualFiling())
	assert.ErrorIs(t, err, calc.ErrCalculationFailed)
	assert.ErrorIs(t, err, subject.ErrMissingFinancialValue)
	assert.Equal(t, []models.Stage{models.StageShares}, demoter.demoted)

	// Other missing inputs are not calculation failures.
	values[subject.NumberOfShares] = 10_000
	delete(values, subject.OperatingProfit)
	_, err = e.Evaluate(context.Background(), annualFiling())
	assert.ErrorIs(t, err, subject.ErrMissingFinancialValue)
	assert.NotErrorIs(t, err, calc.ErrCalculationFailed)
}

func TestEvaluate_UnknownPeriodNotValued(t *testing.T) {
	store := newMemValuations()
	resolved := 0
	r := &MockResolver{ResolveFunc: func(ctx context.Context, f models.Filing, o subject.Outline) (int64, error) {
		resolved++
		return exampleValues[o], nil
	}}
	e := NewEvaluator(r, store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())

	f := annualFiling()
	f.PeriodEnd = models.UnknownPeriod
	_, err := e.Evaluate(context.Background(), f)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
	assert.Zero(t, resolved)
	assert.Empty(t, store.rows)
}

func TestEvaluate_Indicators(t *testing.T) {
	values := map[subject.Outline]int64{
		subject.TotalNetAssets:      1_500_000,
		subject.NetIncome:           300_000,
		subject.TotalAssets:         3_000_000,
		subject.SubscriptionWarrant: 100_000,
	}
	for k, v := range exampleValues {
		values[k] = v
	}
	store := newMemValuations()
	e := NewEvaluator(resolverFrom(values), store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())

	res, err := e.Evaluate(context.Background(), annualFiling())
	require.NoError(t, err)
	require.NotNil(t, res.Indicators.BPS)
	require.NotNil(t, res.Indicators.EPS)
	require.NotNil(t, res.Indicators.ROA)
	assert.Equal(t, "150", res.Indicators.BPS.String())
	assert.Equal(t, "30", res.Indicators.EPS.String())
	assert.Equal(t, "10", res.Indicators.ROA.String())

	stored := store.rows[valuationKey("E00001", annualFiling().PeriodEnd)]
	require.NotNil(t, stored.ROE)
	assert.True(t, stored.ROE.Equal(*res.Indicators.ROE))
}

func TestEvaluate_IndicatorInputsAreOptional(t *testing.T) {
	demoter := &MockDemoter{}
	e := NewEvaluator(resolverFrom(exampleValues), newMemValuations(), demoter, calc.DefaultParams(), zerolog.Nop())

	res, err := e.Evaluate(context.Background(), annualFiling())
	require.NoError(t, err)
	assert.Equal(t, calc.Indicators{}, res.Indicators)
	assert.Empty(t, demoter.demoted)
}

func TestEvaluate_QuarterlyIndicatorsOnlyBPS(t *testing.T) {
	values := map[subject.Outline]int64{
		subject.TotalNetAssets: 1_500_000,
		subject.NetIncome:      300_000,
	}
	for k, v := range exampleValues {
		values[k] = v
	}
	f := annualFiling()
	f.DocumentTypeCode = models.DocTypeQuarterlyReport
	f.QuarterType = models.Quarter2

	e := NewEvaluator(resolverFrom(values), newMemValuations(), &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())
	res, err := e.Evaluate(context.Background(), f)
	require.NoError(t, err)
	require.NotNil(t, res.Indicators.BPS)
	assert.Equal(t, "150", res.Indicators.BPS.String())
	assert.Nil(t, res.Indicators.EPS)
	assert.Nil(t, res.Indicators.ROE)
}

func TestEvaluate_ZeroSharesFails(t *testing.T) {
	values := map[subject.Outline]int64{}
	for k, v := range exampleValues {
		values[k] = v
	}
	values[subject.NumberOfShares] = 0

	store := newMemValuations()
	e := NewEvaluator(resolverFrom(values), store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())

	_, err := e.Evaluate(context.Background(), annualFiling())
	assert.ErrorIs(t, err, calc.ErrCalculationFailed)
	assert.Empty(t, store.rows)
}

func TestEvaluate_InfrastructureErrorPropagates(t *testing.T) {
	boom := errors.New("db unreachable")
	r := &MockResolver{ResolveFunc: func(ctx context.Context, f models.Filing, o subject.Outline) (int64, error) {
		return 0, boom
	}}
	demoter := &MockDemoter{}
	e := NewEvaluator(r, newMemValuations(), demoter, calc.DefaultParams(), zerolog.Nop())

	_, err := e.Evaluate(context.Background(), annualFiling())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, demoter.demoted)
}

func TestEvaluate_QuarterlyFilingIsAnnualised(t *testing.T) {
	f := annualFiling()
	f.DocumentTypeCode = models.DocTypeQuarterlyReport
	f.QuarterType = models.Quarter2

	e := NewEvaluator(resolverFrom(exampleValues), newMemValuations(), &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())
	res, err := e.Evaluate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "1180", res.Value.String())
}

func TestQuarterWeight(t *testing.T) {
	f := annualFiling()
	f.QuarterType = models.Quarter1
	assert.Equal(t, int64(0), QuarterWeight(f), "annual reports ignore quarter type")

	f.DocumentTypeCode = models.DocTypeAmendedQuarterlyReport
	assert.Equal(t, int64(1), QuarterWeight(f))

	f.QuarterType = models.QuarterOther
	assert.Equal(t, int64(0), QuarterWeight(f))
}

func TestAlreadyValued(t *testing.T) {
	store := newMemValuations()
	e := NewEvaluator(resolverFrom(exampleValues), store, &MockDemoter{}, calc.DefaultParams(), zerolog.Nop())

	done, err := e.AlreadyValued(context.Background(), annualFiling())
	require.NoError(t, err)
	assert.False(t, done)

	_, err = e.Evaluate(context.Background(), annualFiling())
	require.NoError(t, err)

	done, err = e.AlreadyValued(context.Background(), annualFiling())
	require.NoError(t, err)
	assert.True(t, done)
}
