package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func assertDecimal(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func TestCalculateIndicators_AnnualFiling(t *testing.T) {
	got := CalculateIndicators(IndicatorInputs{
		NetAssets:           i64(1_500_000),
		NetIncome:           i64(300_000),
		TotalAssets:         i64(3_000_000),
		SubscriptionWarrant: i64(100_000),
		NumberOfShares:      10_000,
	})

	assertDecimal(t, "150", got.BPS)
	assertDecimal(t, "30", got.EPS)
	// 300,000 / 1,400,000 rounded to ten places, then as a percentage.
	assertDecimal(t, "21.42857143", got.ROE)
	assertDecimal(t, "10", got.ROA)
}

func TestCalculateIndicators_MissingWarrantCountsAsZero(t *testing.T) {
	got := CalculateIndicators(IndicatorInputs{
		NetAssets:      i64(1_500_000),
		NetIncome:      i64(300_000),
		NumberOfShares: 10_000,
	})

	assertDecimal(t, "20", got.ROE)
	assert.Nil(t, got.ROA)
}

func TestCalculateIndicators_QuarterlyOnlyBPS(t *testing.T) {
	got := CalculateIndicators(IndicatorInputs{
		NetAssets:      i64(1_500_000),
		NetIncome:      i64(300_000),
		TotalAssets:    i64(3_000_000),
		NumberOfShares: 10_000,
		Quarterly:      true,
	})

	assertDecimal(t, "150", got.BPS)
	assert.Nil(t, got.EPS)
	assert.Nil(t, got.ROE)
	assert.Nil(t, got.ROA)
}

func TestCalculateIndicators_MissingInputs(t *testing.T) {
	got := CalculateIndicators(IndicatorInputs{NumberOfShares: 10_000})
	assert.Equal(t, Indicators{}, got)

	got = CalculateIndicators(IndicatorInputs{NetIncome: i64(-50_000), NumberOfShares: 10_000})
	assert.Nil(t, got.BPS)
	assertDecimal(t, "-5", got.EPS)
	assert.Nil(t, got.ROE)
}

func TestCalculateIndicators_ZeroDenominators(t *testing.T) {
	got := CalculateIndicators(IndicatorInputs{
		NetAssets:           i64(100_000),
		NetIncome:           i64(10_000),
		TotalAssets:         i64(0),
		SubscriptionWarrant: i64(100_000),
		NumberOfShares:      0,
	})

	assert.Nil(t, got.BPS)
	assert.Nil(t, got.EPS)
	assert.Nil(t, got.ROE)
	assert.Nil(t, got.ROA)
}
