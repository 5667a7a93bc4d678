package interest

import (
	"math"

	"github.com/ledgerline/debt-engine/ledger"
	"github.com/shopspring/decimal"
)

// Calculate returns the interest accrued on a principal over elapsedDays.
//
//	periods = elapsedDays/365 × periodsPerYear
//	simple:   principal × (rate/100) × periods
//	compound: principal × ((1 + rate/100/periodsPerYear)^periods − 1)
//
// The compound power term is evaluated in float64 (periods is fractional)
// and the result carried back into decimal, rounded to 2 places. Negative
// or zero principal yields zero; interest never shrinks a balance here.
func Calculate(principal ledger.Money, ratePercent float64, elapsedDays int, typ Type, freq Frequency) ledger.Money {
	if !principal.IsPositive() || ratePercent <= 0 || elapsedDays <= 0 {
		return ledger.ZeroMoney()
	}

	periodsPerYear := freq.PeriodsPerYear()
	periods := float64(elapsedDays) / 365.0 * periodsPerYear

	var factor float64
	switch typ {
	case Compound:
		factor = math.Pow(1+ratePercent/100/periodsPerYear, periods) - 1
	default:
		factor = ratePercent / 100 * periods
	}

	amount := principal.Mul(decimal.NewFromFloat(factor))
	return ledger.Money{Value: amount.Value.Round(2)}
}
