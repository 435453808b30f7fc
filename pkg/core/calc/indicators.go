package calc

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// IndicatorInputs are the optional aggregates behind the per-share indicators.
// A nil field was not found in the filing.
type IndicatorInputs struct {
	NetAssets           *int64
	NetIncome           *int64
	TotalAssets         *int64
	SubscriptionWarrant *int64
	NumberOfShares      int64
	// Quarterly filings only carry BPS; their income is not a full year.
	Quarterly bool
}

// Indicators are the ratios stored next to the corporate value. Each is nil
// when its inputs are missing or its denominator is zero.
type Indicators struct {
	BPS *decimal.Decimal `json:"bps,omitempty"`
	EPS *decimal.Decimal `json:"eps,omitempty"`
	ROE *decimal.Decimal `json:"roe,omitempty"`
	ROA *decimal.Decimal `json:"roa,omitempty"`
}

// =============================================================================
// PER-SHARE INDICATORS
// =============================================================================

// CalculateIndicators derives BPS, EPS, ROE and ROA.
//
//	BPS = net assets / shares
//	EPS = net income / shares
//	ROE = net income / (net assets − subscription warrants) × 100
//	ROA = net income / total assets × 100
//
// EPS, ROE and ROA are left empty for quarterly filings. A missing
// subscription warrant counts as zero.
func CalculateIndicators(in IndicatorInputs) Indicators {
	var out Indicators
	shares := decimal.NewFromInt(in.NumberOfShares)

	if in.NetAssets != nil {
		out.BPS = ratio(decimal.NewFromInt(*in.NetAssets), shares)
	}
	if in.Quarterly || in.NetIncome == nil {
		return out
	}

	income := decimal.NewFromInt(*in.NetIncome)
	out.EPS = ratio(income, shares)

	if in.NetAssets != nil {
		equity := decimal.NewFromInt(*in.NetAssets)
		if in.SubscriptionWarrant != nil {
			equity = equity.Sub(decimal.NewFromInt(*in.SubscriptionWarrant))
		}
		out.ROE = percent(ratio(income, equity))
	}
	if in.TotalAssets != nil {
		out.ROA = percent(ratio(income, decimal.NewFromInt(*in.TotalAssets)))
	}
	return out
}

func ratio(num, den decimal.Decimal) *decimal.Decimal {
	if den.IsZero() {
		return nil
	}
	r := num.DivRound(den, Scale)
	return &r
}

func percent(r *decimal.Decimal) *decimal.Decimal {
	if r == nil {
		return nil
	}
	p := r.Mul(hundred)
	return &p
}
