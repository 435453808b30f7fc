// Package calc provides the deterministic corporate-value calculation.
package calc

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCalculationFailed is returned when an arithmetic precondition does not hold.
var ErrCalculationFailed = errors.New("calculation failed")

// Scale is the number of decimal places kept in the result (half-up).
const Scale = 10

// =============================================================================
// PARAMETERS
// =============================================================================

// Params holds the fixed constants of the corporate-value formula.
type Params struct {
	BusinessValueWeight decimal.Decimal // W: multiple applied to operating profit
	CurrentRatioFactor  decimal.Decimal // R: average current-ratio adjustment
}

// DefaultParams returns W = 10, R = 1.2.
func DefaultParams() Params {
	return Params{
		BusinessValueWeight: decimal.NewFromInt(10),
		CurrentRatioFactor:  decimal.RequireFromString("1.2"),
	}
}

// Inputs are the six outline aggregates of one filing, already scaled to yen.
type Inputs struct {
	OperatingProfit                int64
	TotalCurrentAssets             int64
	TotalCurrentLiabilities        int64
	TotalInvestmentsAndOtherAssets int64
	TotalFixedLiabilities          int64
	NumberOfShares                 int64
	// QuarterWeight is the number of quarters the operating profit covers.
	// 0 is treated as a full year (4).
	QuarterWeight int64
}

// =============================================================================
// CORPORATE VALUE
// =============================================================================

// CorporateValue calculates the value per share.
//
// FORMULA:
//
//	numerator = OP × W + TCA − TCL × R + TIOA − TFL
//	value     = numerator / quarterWeight × 4 / numberOfShares
//
// Each division rounds half-up to Scale places. A full year has
// quarterWeight = 4, which reduces to numerator / numberOfShares.
func CorporateValue(in Inputs, p Params) (decimal.Decimal, error) {
	if in.NumberOfShares == 0 {
		return decimal.Zero, fmt.Errorf("%w: number of shares is zero", ErrCalculationFailed)
	}
	if in.NumberOfShares < 0 {
		return decimal.Zero, fmt.Errorf("%w: number of shares is negative (%d)", ErrCalculationFailed, in.NumberOfShares)
	}

	weight := in.QuarterWeight
	if weight == 0 {
		weight = 4
	}
	if weight < 1 || weight > 4 {
		return decimal.Zero, fmt.Errorf("%w: quarter weight %d out of range", ErrCalculationFailed, weight)
	}

	numerator := decimal.NewFromInt(in.OperatingProfit).Mul(p.BusinessValueWeight).
		Add(decimal.NewFromInt(in.TotalCurrentAssets)).
		Sub(decimal.NewFromInt(in.TotalCurrentLiabilities).Mul(p.CurrentRatioFactor)).
		Add(decimal.NewFromInt(in.TotalInvestmentsAndOtherAssets)).
		Sub(decimal.NewFromInt(in.TotalFixedLiabilities))

	annual := numerator.DivRound(decimal.NewFromInt(weight), Scale).Mul(decimal.NewFromInt(4))
	return annual.DivRound(decimal.NewFromInt(in.NumberOfShares), Scale), nil
}
