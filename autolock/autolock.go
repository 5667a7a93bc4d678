/*
Package autolock freezes debtors whose unpaid debt has gone stale.

PURPOSE:
  Runs on a periodic evaluation tick rather than on every mutation. For each
  unlocked debtor with positive debt, it measures the days since the most
  recent charge; past the configured threshold (and, when configured, above
  the amount floor), the debtor is locked with a human-readable reason.

UNLOCKING:
  Locked debtors unlock synchronously inside ledger.AddTransaction when a
  payment brings TotalDebt <= 0. This package never unlocks.

IDEMPOTENCE:
  Already-locked debtors are skipped, so evaluating twice on unchanged state
  never re-stamps LockedAt or rewrites LockedReason.

SEE ALSO:
  - ledger/service.go: LockDebtor and the unlock-on-payment path
  - api/scheduler.go: Tick driver
*/
package autolock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ledgerline/debt-engine/ledger"
)

// Config holds the lock thresholds. The policy is disabled unless Enabled
// is set; disabled evaluation is a no-op pass-through.
type Config struct {
	Enabled         bool
	ThresholdDays   int
	ThresholdAmount ledger.Money // zero = no amount gate
}

// Engine scans the ledger and locks stale debtors.
type Engine struct {
	Ledger *ledger.Service
	Config Config
}

func New(svc *ledger.Service, cfg Config) *Engine {
	return &Engine{Ledger: svc, Config: cfg}
}

// Result summarizes one evaluation pass.
type Result struct {
	Scanned int
	Locked  int
}

// Evaluate locks every unlocked debtor whose debt has aged past the
// threshold. now is injected so ticks are pure functions of state and time.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	if !e.Config.Enabled || e.Config.ThresholdDays <= 0 {
		return res, nil
	}

	debtors, err := e.Ledger.ListDebtors(ctx)
	if err != nil {
		return res, err
	}

	for i := range debtors {
		d := &debtors[i]
		res.Scanned++

		if d.IsLocked || !d.TotalDebt.IsPositive() {
			continue
		}
		lastDebt, ok := d.LastDebtDate()
		if !ok {
			// Never charged; nothing to age.
			continue
		}

		days := int(now.Sub(lastDebt).Hours() / 24)
		if days < e.Config.ThresholdDays {
			continue
		}
		if e.Config.ThresholdAmount.IsPositive() && d.TotalDebt.LessThan(e.Config.ThresholdAmount) {
			continue
		}

		reason := fmt.Sprintf("auto-locked: debt unpaid for %d days (threshold %d)", days, e.Config.ThresholdDays)
		if e.Config.ThresholdAmount.IsPositive() {
			reason += fmt.Sprintf(", balance %s at or above %s", d.TotalDebt, e.Config.ThresholdAmount)
		}

		if err := e.Ledger.LockDebtor(ctx, d.ID, reason); err != nil {
			// Debtor deleted between snapshot and lock; skip, not an error.
			if ledger.IsNotFound(err) {
				continue
			}
			log.Printf("[AutoLock] Failed to lock %s: %v", d.ID, err)
			continue
		}
		res.Locked++
	}
	return res, nil
}
