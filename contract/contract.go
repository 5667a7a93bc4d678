/*
Package contract schedules recurring installment payments against a debtor.

PURPOSE:
  A contract fixes an installment amount, a frequency, and a total payment
  count. Auto-executing contracts post payment transactions into the ledger
  on the evaluation tick; non-auto contracts accumulate missed-payment
  counts when installments go overdue. Operators can pause and resume a
  contract at any time, suspending both behaviors.

STATE MACHINE:
  Active -> (installment executes) -> Active   while completed < total
  Active -> Inactive (terminal)                once completed == total
  Active <-> Paused                            operator toggle

DATE ARITHMETIC:
  Monthly advancement uses Go's calendar normalization (time.AddDate), so a
  contract started Jan 31 rolls an over-long month into the start of the
  next one (Jan 31 + 1 month = Mar 2/3). Deterministic and reproducible;
  see NextPaymentDate.

SEE ALSO:
  - ledger/service.go: Where installment payments are posted
  - api/scheduler.go: Tick driver
*/
package contract

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/debt-engine/kv"
	"github.com/ledgerline/debt-engine/ledger"
)

type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

// Contract is a recurring payment plan against one debtor.
type Contract struct {
	ID                string          `json:"id"`
	DebtorID          ledger.DebtorID `json:"debtor_id"`
	Amount            ledger.Money    `json:"amount"` // per installment
	Frequency         Frequency       `json:"frequency"`
	StartDate         time.Time       `json:"start_date"`
	TotalPayments     int             `json:"total_payments"`
	CompletedPayments int             `json:"completed_payments"`
	MissedPayments    int             `json:"missed_payments"`
	NextPaymentDate   time.Time       `json:"next_payment_date"`
	AutoExecute       bool            `json:"auto_execute"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`

	// LastMissedFor records which installment date has already been counted
	// as missed, so re-evaluating an unchanged overdue contract doesn't
	// double-count.
	LastMissedFor *time.Time `json:"last_missed_for,omitempty"`
}

// NextPaymentDate is a deterministic function of the start date, frequency,
// and completed count. Monthly steps use calendar month arithmetic, not a
// fixed 30-day stride.
func NextPaymentDate(start time.Time, freq Frequency, completed int) time.Time {
	n := completed + 1
	switch freq {
	case Daily:
		return start.AddDate(0, 0, n)
	case Weekly:
		return start.AddDate(0, 0, n*7)
	case Biweekly:
		return start.AddDate(0, 0, n*14)
	default:
		return start.AddDate(0, n, 0)
	}
}

// Scheduler manages the contract collection.
type Scheduler struct {
	mu     sync.Mutex
	store  kv.Store
	ledger *ledger.Service
	clock  ledger.Clock
}

func NewScheduler(store kv.Store, svc *ledger.Service) *Scheduler {
	return &Scheduler{store: store, ledger: svc, clock: time.Now}
}

// WithClock sets the time source. Call before use.
func (s *Scheduler) WithClock(c ledger.Clock) *Scheduler {
	if c != nil {
		s.clock = c
	}
	return s
}

func (s *Scheduler) load(ctx context.Context) ([]Contract, error) {
	return kv.LoadJSON[[]Contract](ctx, s.store, kv.KeyContracts)
}

func (s *Scheduler) save(ctx context.Context, contracts []Contract) error {
	return kv.SaveJSON(ctx, s.store, kv.KeyContracts, contracts)
}

// =============================================================================
// CONTRACT OPERATIONS
// =============================================================================

type CreateInput struct {
	DebtorID      ledger.DebtorID
	Amount        ledger.Money
	Frequency     Frequency
	StartDate     time.Time
	TotalPayments int
	AutoExecute   bool
}

func (s *Scheduler) Create(ctx context.Context, in CreateInput) (Contract, error) {
	if !in.Amount.IsPositive() {
		return Contract{}, ledger.NewValidationError("amount", "installment amount must be positive")
	}
	if in.TotalPayments < 1 {
		return Contract{}, ledger.NewValidationError("total_payments", "total payments must be at least 1")
	}
	switch in.Frequency {
	case Daily, Weekly, Biweekly, Monthly:
	default:
		return Contract{}, ledger.NewValidationError("frequency", "unknown frequency %q", in.Frequency)
	}
	if _, err := s.ledger.GetDebtor(ctx, in.DebtorID); err != nil {
		return Contract{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.load(ctx)
	if err != nil {
		return Contract{}, err
	}

	start := in.StartDate
	if start.IsZero() {
		start = s.clock()
	}
	c := Contract{
		ID:              uuid.NewString(),
		DebtorID:        in.DebtorID,
		Amount:          in.Amount,
		Frequency:       in.Frequency,
		StartDate:       start,
		TotalPayments:   in.TotalPayments,
		NextPaymentDate: NextPaymentDate(start, in.Frequency, 0),
		AutoExecute:     in.AutoExecute,
		IsActive:        true,
		CreatedAt:       s.clock(),
	}
	contracts = append(contracts, c)

	if err := s.save(ctx, contracts); err != nil {
		return Contract{}, err
	}
	return c, nil
}

func (s *Scheduler) Get(ctx context.Context, id string) (*Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].ID == id {
			c := contracts[i]
			return &c, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "contract", ID: id}
}

func (s *Scheduler) List(ctx context.Context) ([]Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// ExecutePayment posts one installment on demand, regardless of AutoExecute.
func (s *Scheduler) ExecutePayment(ctx context.Context, id string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.load(ctx)
	if err != nil {
		return Contract{}, err
	}
	i := indexOf(contracts, id)
	if i < 0 {
		return Contract{}, &ledger.NotFoundError{Kind: "contract", ID: id}
	}

	c := &contracts[i]
	if c.CompletedPayments >= c.TotalPayments {
		return Contract{}, ledger.ErrContractComplete
	}
	if !c.IsActive {
		return Contract{}, ledger.ErrContractPaused
	}

	if err := s.postInstallment(ctx, c); err != nil {
		return Contract{}, err
	}
	s.advance(c)

	if err := s.save(ctx, contracts); err != nil {
		return Contract{}, err
	}
	return *c, nil
}

// Pause suspends auto-execution and missed-payment counting.
func (s *Scheduler) Pause(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

// Resume reactivates a paused contract. A completed contract stays terminal.
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *Scheduler) setActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(contracts, id)
	if i < 0 {
		return &ledger.NotFoundError{Kind: "contract", ID: id}
	}
	if active && contracts[i].CompletedPayments >= contracts[i].TotalPayments {
		return ledger.ErrContractComplete
	}
	contracts[i].IsActive = active
	return s.save(ctx, contracts)
}

// =============================================================================
// EVALUATION TICK
// =============================================================================

// Result summarizes one evaluation pass.
type Result struct {
	Executed  int
	Missed    int
	Completed int
}

// Evaluate walks active contracts. Due auto-executing contracts post one
// installment; overdue non-auto contracts (and contracts whose debtor is
// gone or rejects the payment) get one missed-payment count per overdue
// installment.
func (s *Scheduler) Evaluate(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	s.mu.Lock()
	defer s.mu.Unlock()

	contracts, err := s.load(ctx)
	if err != nil {
		return res, err
	}

	changed := false
	for i := range contracts {
		c := &contracts[i]
		if !c.IsActive || c.CompletedPayments >= c.TotalPayments {
			continue
		}
		if now.Before(c.NextPaymentDate) {
			continue
		}

		if c.AutoExecute {
			if err := s.postInstallment(ctx, c); err != nil {
				// Debtor deleted or mutation rejected: counts as a miss.
				log.Printf("[Contracts] Auto-execution failed for %s: %v", c.ID, err)
				if s.markMissed(c) {
					res.Missed++
					changed = true
				}
				continue
			}
			s.advance(c)
			res.Executed++
			if !c.IsActive {
				res.Completed++
			}
			changed = true
			continue
		}

		if now.After(c.NextPaymentDate) && s.markMissed(c) {
			res.Missed++
			changed = true
		}
	}

	if changed {
		if err := s.save(ctx, contracts); err != nil {
			return res, err
		}
	}
	if res.Executed > 0 || res.Missed > 0 {
		log.Printf("[Contracts] Tick: %d executed, %d missed, %d completed", res.Executed, res.Missed, res.Completed)
	}
	return res, nil
}

func (s *Scheduler) postInstallment(ctx context.Context, c *Contract) error {
	_, err := s.ledger.AddTransaction(ctx, c.DebtorID, ledger.TransactionInput{
		Amount:      c.Amount,
		Type:        ledger.TxPayment,
		Description: fmt.Sprintf("Installment %d of %d", c.CompletedPayments+1, c.TotalPayments),
		Tags:        []string{"contract", c.ID},
		CreatedBy:   ledger.ActorRef{Name: "contract scheduler", Role: "system"},
	})
	return err
}

// advance moves the contract forward one installment and deactivates it at
// the total. NextPaymentDate stays a pure function of start/frequency/count.
func (s *Scheduler) advance(c *Contract) {
	c.CompletedPayments++
	c.LastMissedFor = nil
	if c.CompletedPayments >= c.TotalPayments {
		c.IsActive = false
		return
	}
	c.NextPaymentDate = NextPaymentDate(c.StartDate, c.Frequency, c.CompletedPayments)
}

// markMissed counts one miss per overdue installment. NextPaymentDate does
// not advance on a miss, so the stamp prevents double-counting on re-runs.
func (s *Scheduler) markMissed(c *Contract) bool {
	if c.LastMissedFor != nil && c.LastMissedFor.Equal(c.NextPaymentDate) {
		return false
	}
	due := c.NextPaymentDate
	c.LastMissedFor = &due
	c.MissedPayments++
	return true
}

func indexOf(contracts []Contract, id string) int {
	for i := range contracts {
		if contracts[i].ID == id {
			return i
		}
	}
	return -1
}
