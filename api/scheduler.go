/*
scheduler.go - Periodic rule-engine evaluation driver

PURPOSE:
  Drives the auto-lock, interest, and contract engines on a recurring timer
  independent of user actions. Each tick passes the same wall-clock instant
  to every engine, so a tick is a pure function of persisted state plus one
  timestamp and tests can simulate time without waiting.

DESIGN:
  - Background goroutine with a configurable tick interval
  - Runs immediately on start, then on every tick
  - Engines guard their own idempotence (LastCalculated, NextPaymentDate,
    already-locked skips); the driver never deduplicates for them
  - RunNow() for tests and the admin endpoint

USAGE:
  scheduler := NewRuleScheduler(autolockEngine, interestEngine, contracts)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - autolock, interest, contract: The engines driven here
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ledgerline/debt-engine/autolock"
	"github.com/ledgerline/debt-engine/contract"
	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
)

// RuleScheduler runs the periodic evaluation tick.
type RuleScheduler struct {
	AutoLock  *autolock.Engine
	Interest  *interest.Engine
	Contracts *contract.Scheduler

	TickInterval time.Duration
	Enabled      bool
	Clock        ledger.Clock

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRuleScheduler(al *autolock.Engine, in *interest.Engine, ct *contract.Scheduler) *RuleScheduler {
	return &RuleScheduler{
		AutoLock:     al,
		Interest:     in,
		Contracts:    ct,
		TickInterval: 1 * time.Hour,
		Enabled:      true,
		Clock:        time.Now,
		stop:         make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RuleScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.TickInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with tick interval: %v", rs.TickInterval)
}

// Stop stops the scheduler.
func (rs *RuleScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RuleScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.tick()

	for {
		select {
		case <-rs.ticker.C:
			rs.tick()
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate tick (for tests/admin).
func (rs *RuleScheduler) RunNow() {
	rs.tick()
}

func (rs *RuleScheduler) tick() {
	ctx := context.Background()
	now := rs.Clock()

	if rs.AutoLock != nil {
		res, err := rs.AutoLock.Evaluate(ctx, now)
		if err != nil {
			log.Printf("[Scheduler] Auto-lock tick failed: %v", err)
			engineTicksTotal.WithLabelValues("autolock", "error").Inc()
		} else {
			engineTicksTotal.WithLabelValues("autolock", "ok").Inc()
			engineActionsTotal.WithLabelValues("autolock", "locked").Add(float64(res.Locked))
		}
	}

	if rs.Interest != nil {
		res, err := rs.Interest.Evaluate(ctx, now)
		if err != nil {
			log.Printf("[Scheduler] Interest tick failed: %v", err)
			engineTicksTotal.WithLabelValues("interest", "error").Inc()
		} else {
			engineTicksTotal.WithLabelValues("interest", "ok").Inc()
			engineActionsTotal.WithLabelValues("interest", "accrued").Add(float64(res.Accrued))
		}
	}

	if rs.Contracts != nil {
		res, err := rs.Contracts.Evaluate(ctx, now)
		if err != nil {
			log.Printf("[Scheduler] Contract tick failed: %v", err)
			engineTicksTotal.WithLabelValues("contracts", "error").Inc()
		} else {
			engineTicksTotal.WithLabelValues("contracts", "ok").Inc()
			engineActionsTotal.WithLabelValues("contracts", "executed").Add(float64(res.Executed))
			engineActionsTotal.WithLabelValues("contracts", "missed").Add(float64(res.Missed))
		}
	}
}
