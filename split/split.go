/*
Package split divides one logical debt amount across several debtors.

PURPOSE:
  A multi-party debt names a total amount and a list of parties, each with
  an equal, percentage, or fixed share. Fixed shares consume their stated
  amount first, percentage shares consume their fraction of the total, and
  the remainder is divided equally among the equal parties. Settling posts
  one debt transaction per resolved party amount back into the ledger.

ALLOCATION RULES:
  - fixed + percentage allocations exceeding the total are rejected at
    creation (ValidationError), not clamped.
  - With no equal parties, a leftover remainder stays unallocated; it is
    not silently redistributed.
  - Settlement skips zero/negative resolved amounts and parties whose
    debtor has since been deleted or locked (logged, not an error).
  - Settlement is one-way: IsSettled never flips back, and a second call
    fails with ErrAlreadySettled.

SEE ALSO:
  - ledger/service.go: Where per-party debts are posted
*/
package split

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/debt-engine/kv"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/shopspring/decimal"
)

type SplitType string

const (
	Equal      SplitType = "equal"
	Percentage SplitType = "percentage"
	Fixed      SplitType = "fixed"
)

// Party is one debtor's share definition in a multi-party debt.
type Party struct {
	DebtorID   ledger.DebtorID `json:"debtor_id"`
	SplitType  SplitType       `json:"split_type"`
	Amount     *ledger.Money   `json:"amount,omitempty"`     // required for Fixed
	Percentage *float64        `json:"percentage,omitempty"` // required for Percentage
	// Resolved is the computed share, filled at creation.
	Resolved ledger.Money `json:"resolved"`
}

// MultiPartyDebt is one logical debt divided across several debtors.
type MultiPartyDebt struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	TotalAmount ledger.Money `json:"total_amount"`
	Parties     []Party      `json:"parties"`
	IsSettled   bool         `json:"is_settled"`
	CreatedAt   time.Time    `json:"created_at"`
	SettledAt   *time.Time   `json:"settled_at,omitempty"`
}

// ComputeSplit resolves per-party amounts. The returned slice is parallel to
// parties. Over-allocation (fixed + percentage beyond the total) returns a
// ValidationError rather than clamping.
func ComputeSplit(total ledger.Money, parties []Party) ([]ledger.Money, error) {
	resolved := make([]ledger.Money, len(parties))
	consumed := ledger.ZeroMoney()
	equalCount := 0

	for i, p := range parties {
		switch p.SplitType {
		case Fixed:
			if p.Amount == nil || !p.Amount.IsPositive() {
				return nil, ledger.NewValidationError("parties", "fixed party %d requires a positive amount", i)
			}
			resolved[i] = *p.Amount
			consumed = consumed.Add(*p.Amount)
		case Percentage:
			if p.Percentage == nil || *p.Percentage <= 0 || *p.Percentage > 100 {
				return nil, ledger.NewValidationError("parties", "percentage party %d requires a percentage in (0, 100]", i)
			}
			share := total.Mul(decimal.NewFromFloat(*p.Percentage)).Div(decimal.NewFromInt(100))
			resolved[i] = share
			consumed = consumed.Add(share)
		case Equal:
			equalCount++
		default:
			return nil, ledger.NewValidationError("parties", "party %d has unknown split type %q", i, p.SplitType)
		}
	}

	remainder := total.Sub(consumed)
	if remainder.IsNegative() {
		return nil, ledger.NewValidationError("parties",
			"fixed and percentage shares (%s) exceed the total (%s)", consumed, total)
	}

	if equalCount > 0 {
		each := remainder.Div(decimal.NewFromInt(int64(equalCount)))
		for i, p := range parties {
			if p.SplitType == Equal {
				resolved[i] = each
			}
		}
	}
	return resolved, nil
}

// Allocator manages the multi-party debt collection.
type Allocator struct {
	mu     sync.Mutex
	store  kv.Store
	ledger *ledger.Service
	clock  ledger.Clock
}

func NewAllocator(store kv.Store, svc *ledger.Service) *Allocator {
	return &Allocator{store: store, ledger: svc, clock: time.Now}
}

// WithClock sets the time source. Call before use.
func (a *Allocator) WithClock(c ledger.Clock) *Allocator {
	if c != nil {
		a.clock = c
	}
	return a
}

func (a *Allocator) load(ctx context.Context) ([]MultiPartyDebt, error) {
	return kv.LoadJSON[[]MultiPartyDebt](ctx, a.store, kv.KeySplits)
}

func (a *Allocator) save(ctx context.Context, splits []MultiPartyDebt) error {
	return kv.SaveJSON(ctx, a.store, kv.KeySplits, splits)
}

// =============================================================================
// SPLIT OPERATIONS
// =============================================================================

type CreateInput struct {
	Name        string
	Description string
	TotalAmount ledger.Money
	Parties     []Party
}

func (a *Allocator) Create(ctx context.Context, in CreateInput) (MultiPartyDebt, error) {
	if in.Name == "" {
		return MultiPartyDebt{}, ledger.NewValidationError("name", "name is required")
	}
	if !in.TotalAmount.IsPositive() {
		return MultiPartyDebt{}, ledger.NewValidationError("total_amount", "total amount must be positive")
	}
	if len(in.Parties) < 2 {
		return MultiPartyDebt{}, ledger.NewValidationError("parties", "a split requires at least 2 parties")
	}

	resolved, err := ComputeSplit(in.TotalAmount, in.Parties)
	if err != nil {
		return MultiPartyDebt{}, err
	}

	parties := make([]Party, len(in.Parties))
	for i, p := range in.Parties {
		parties[i] = p
		parties[i].Resolved = resolved[i]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	splits, err := a.load(ctx)
	if err != nil {
		return MultiPartyDebt{}, err
	}
	mpd := MultiPartyDebt{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		TotalAmount: in.TotalAmount,
		Parties:     parties,
		CreatedAt:   a.clock(),
	}
	splits = append(splits, mpd)

	if err := a.save(ctx, splits); err != nil {
		return MultiPartyDebt{}, err
	}
	return mpd, nil
}

func (a *Allocator) List(ctx context.Context) ([]MultiPartyDebt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load(ctx)
}

func (a *Allocator) Get(ctx context.Context, id string) (*MultiPartyDebt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	splits, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range splits {
		if splits[i].ID == id {
			s := splits[i]
			return &s, nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "split", ID: id}
}

// Settle posts one debt transaction per resolved party amount and marks the
// split settled. One-way: a second call fails with ErrAlreadySettled.
func (a *Allocator) Settle(ctx context.Context, id string) (MultiPartyDebt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	splits, err := a.load(ctx)
	if err != nil {
		return MultiPartyDebt{}, err
	}
	var mpd *MultiPartyDebt
	for i := range splits {
		if splits[i].ID == id {
			mpd = &splits[i]
			break
		}
	}
	if mpd == nil {
		return MultiPartyDebt{}, &ledger.NotFoundError{Kind: "split", ID: id}
	}
	if mpd.IsSettled {
		return MultiPartyDebt{}, ledger.ErrAlreadySettled
	}

	for _, p := range mpd.Parties {
		if !p.Resolved.IsPositive() {
			continue
		}
		_, err := a.ledger.AddTransaction(ctx, p.DebtorID, ledger.TransactionInput{
			Amount:      p.Resolved,
			Type:        ledger.TxDebt,
			Description: fmt.Sprintf("Share of %s", mpd.Name),
			Tags:        []string{"split", mpd.ID},
			CreatedBy:   ledger.ActorRef{Name: "split allocator", Role: "system"},
		})
		if err != nil {
			// Deleted or locked party: skipped, not fatal to the settlement.
			log.Printf("[Split] Skipping party %s in %s: %v", p.DebtorID, mpd.ID, err)
		}
	}

	now := a.clock()
	mpd.IsSettled = true
	mpd.SettledAt = &now

	if err := a.save(ctx, splits); err != nil {
		return MultiPartyDebt{}, err
	}
	return *mpd, nil
}
