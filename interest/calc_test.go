package interest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
)

// =============================================================================
// SIMPLE INTEREST
// =============================================================================

func TestCalculate_Simple_OneYearAtTenPercent(t *testing.T) {
	// GIVEN: 1,000,000 principal, 10% yearly simple interest
	// WHEN: 365 days elapse
	// THEN: Interest is exactly 100,000

	got := interest.Calculate(ledger.NewMoney(1_000_000), 10, 365, interest.Simple, interest.Yearly)
	assert.True(t, got.Equal(ledger.NewMoney(100_000)), "got %s", got)
}

func TestCalculate_Simple_HalfYear(t *testing.T) {
	// 1,000,000 at 10% yearly for half a year rounds to 50,000.
	got := interest.Calculate(ledger.NewMoney(1_000_000), 10, 182, interest.Simple, interest.Yearly)
	// 182/365 of 100,000 = 49,863.01
	assert.True(t, got.Equal(ledger.NewMoney(49_863.01)), "got %s", got)
}

func TestCalculate_Simple_DailyFrequency(t *testing.T) {
	// Daily frequency, 30 days: periods = 30/365*365 = 30.
	// 10,000 at 1% per day for 30 days = 3,000.
	got := interest.Calculate(ledger.NewMoney(10_000), 1, 30, interest.Simple, interest.Daily)
	assert.True(t, got.Equal(ledger.NewMoney(3_000)), "got %s", got)
}

// =============================================================================
// COMPOUND INTEREST
// =============================================================================

func TestCalculate_Compound_OneYear_ExceedsSimple(t *testing.T) {
	// GIVEN: The same principal, rate, and horizon
	// WHEN: Compounding monthly instead of accruing simply
	// THEN: Compound interest is strictly greater

	principal := ledger.NewMoney(1_000_000)
	simple := interest.Calculate(principal, 10, 365, interest.Simple, interest.Yearly)
	compound := interest.Calculate(principal, 10, 365, interest.Compound, interest.Monthly)

	assert.True(t, compound.GreaterThan(simple),
		"compound %s should exceed simple %s over a full year", compound, simple)
}

func TestCalculate_Compound_MonthlyOneYear(t *testing.T) {
	// (1 + 0.10/12)^12 - 1 = 10.4713% effective.
	got := interest.Calculate(ledger.NewMoney(1_000_000), 10, 365, interest.Compound, interest.Monthly)
	assert.InDelta(t, 104_713.07, got.Float64(), 1.0, "got %s", got)
}

func TestCalculate_Compound_DivergesOverTwoYears(t *testing.T) {
	principal := ledger.NewMoney(500_000)

	oneYear := interest.Calculate(principal, 12, 365, interest.Compound, interest.Monthly)
	twoYears := interest.Calculate(principal, 12, 730, interest.Compound, interest.Monthly)

	// Year two earns interest on year one's interest, so the second year's
	// increment is larger than the first year's total.
	secondYearIncrement := twoYears.Sub(oneYear)
	assert.True(t, secondYearIncrement.GreaterThan(oneYear),
		"second year increment %s should exceed first year %s", secondYearIncrement, oneYear)
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestCalculate_MonotonicInElapsedDays(t *testing.T) {
	// More elapsed days never yields less interest.
	principal := ledger.NewMoney(75_000)
	prev := ledger.ZeroMoney()
	for days := 1; days <= 730; days += 30 {
		got := interest.Calculate(principal, 8, days, interest.Compound, interest.Weekly)
		assert.True(t, got.GreaterOrEqual(prev), "interest decreased at %d days", days)
		prev = got
	}
}

func TestCalculate_NonPositiveInputs_ReturnZero(t *testing.T) {
	assert.True(t, interest.Calculate(ledger.ZeroMoney(), 10, 30, interest.Simple, interest.Yearly).IsZero())
	assert.True(t, interest.Calculate(ledger.NewMoney(-500), 10, 30, interest.Simple, interest.Yearly).IsZero())
	assert.True(t, interest.Calculate(ledger.NewMoney(500), 0, 30, interest.Simple, interest.Yearly).IsZero())
	assert.True(t, interest.Calculate(ledger.NewMoney(500), 10, 0, interest.Simple, interest.Yearly).IsZero())
}

func TestFrequency_PeriodsPerYear(t *testing.T) {
	assert.Equal(t, 365.0, interest.Daily.PeriodsPerYear())
	assert.Equal(t, 52.0, interest.Weekly.PeriodsPerYear())
	assert.Equal(t, 12.0, interest.Monthly.PeriodsPerYear())
	assert.Equal(t, 1.0, interest.Yearly.PeriodsPerYear())
}
