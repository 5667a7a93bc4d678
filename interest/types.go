/*
Package interest accrues rule-driven interest on outstanding debt.

PURPOSE:
  Rules define a rate, a simple/compound formula, and an accrual frequency.
  A binding attaches one rule to one debtor and tracks the accrued state.
  On each evaluation tick the engine recomputes interest over the total
  elapsed days against the debtor's current balance.

KEY INVARIANTS:
  - At most one active binding per debtor (ErrAlreadyBound).
  - CurrentInterest is monotonically non-decreasing while the binding and
    the underlying debt remain active; non-positive principal produces no
    further growth, never a decrease.
  - Re-running a tick within the same day accrues nothing (the < 1 day
    guard on LastCalculated).

SEE ALSO:
  - calc.go: The simple/compound formulas
  - engine.go: Binding lifecycle and the evaluation tick
*/
package interest

import (
	"time"

	"github.com/ledgerline/debt-engine/ledger"
)

type Type string

const (
	Simple   Type = "simple"
	Compound Type = "compound"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// PeriodsPerYear returns the compounding period count for a frequency.
func (f Frequency) PeriodsPerYear() float64 {
	switch f {
	case Daily:
		return 365
	case Weekly:
		return 52
	case Monthly:
		return 12
	default:
		return 1
	}
}

// Rule is an interest configuration that can be bound to debtors.
type Rule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Rate          float64       `json:"rate"` // percent, 0-100
	Type          Type          `json:"type"`
	Frequency     Frequency     `json:"frequency"`
	MinAmount     *ledger.Money `json:"min_amount,omitempty"` // principal floor for accrual
	MaxAmount     *ledger.Money `json:"max_amount,omitempty"` // principal cap for accrual
	ApplyAfterDays int          `json:"apply_after_days,omitempty"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Binding attaches one rule to one debtor and carries the accrual state.
type Binding struct {
	ID               string          `json:"id"`
	DebtorID         ledger.DebtorID `json:"debtor_id"`
	RuleID           string          `json:"rule_id"`
	BaseAmount       ledger.Money    `json:"base_amount"`        // principal at last calculation
	CurrentInterest  ledger.Money    `json:"current_interest"`   // monotonic non-decreasing
	TotalWithInterest ledger.Money   `json:"total_with_interest"`
	DaysAccrued      int             `json:"days_accrued"`
	LastCalculated   time.Time       `json:"last_calculated"`
	BoundAt          time.Time       `json:"bound_at"`
}
