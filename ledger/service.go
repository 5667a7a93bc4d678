/*
service.go - Serializing mutation service for the debtor collection

PURPOSE:
  The Service is the single entry point for every ledger mutation. Each
  operation takes the mutex, loads the latest persisted snapshot, applies a
  pure transform to a deep copy, persists the result, and only then emits
  notifications. Two callers racing on stale in-memory snapshots can never
  lose updates: the snapshot is re-read inside the lock on every mutation.

CRITICAL INVARIANTS:
  1. BALANCE: TotalDebt == signed sum of remaining transactions, always.
     Every mutation applies exactly the signed delta it introduces.
  2. SERIALIZED: all writes flow through one mutex-guarded read-transform-
     persist cycle.
  3. LOCKING: a locked debtor rejects mutations, except a payment that
     brings TotalDebt <= 0, which is applied and synchronously unlocks.
  4. NOTIFICATIONS: dispatched after the persist commits; failures are
     logged, never rolled back into the mutation.

SEE ALSO:
  - types.go: Debtor/Transaction model
  - notify.go: Notification contract
  - autolock: Periodic lock policy built on LockDebtor
*/
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/debt-engine/kv"
	"github.com/shopspring/decimal"
)

// Clock supplies the current time. Injected so engine ticks and tests are
// pure functions of state plus a chosen instant.
type Clock func() time.Time

// Service owns the debtor collection.
type Service struct {
	mu       sync.Mutex
	store    kv.Store
	notifier Notifier
	clock    Clock
	marketID string

	// onMutation, when set, observes committed mutation kinds (metrics hook).
	onMutation func(kind string)
}

func NewService(store kv.Store) *Service {
	return &Service{
		store:    store,
		notifier: NoopNotifier{},
		clock:    time.Now,
	}
}

// WithNotifier sets the notification dispatcher. Call before use.
func (s *Service) WithNotifier(n Notifier) *Service {
	if n != nil {
		s.notifier = n
	}
	return s
}

// WithClock sets the time source. Call before use.
func (s *Service) WithClock(c Clock) *Service {
	if c != nil {
		s.clock = c
	}
	return s
}

// WithMarket namespaces the debtor collection key per market.
func (s *Service) WithMarket(marketID string) *Service {
	s.marketID = marketID
	return s
}

// WithMutationObserver registers a callback invoked after each committed
// mutation, keyed by operation name. Used by the API layer for metrics.
func (s *Service) WithMutationObserver(fn func(kind string)) *Service {
	s.onMutation = fn
	return s
}

func (s *Service) debtorsKey() string {
	if s.marketID == "" {
		return kv.KeyDebtors
	}
	return kv.KeyDebtors + "/" + s.marketID
}

func (s *Service) load(ctx context.Context) ([]Debtor, error) {
	return kv.LoadJSON[[]Debtor](ctx, s.store, s.debtorsKey())
}

func (s *Service) save(ctx context.Context, debtors []Debtor) error {
	return kv.SaveJSON(ctx, s.store, s.debtorsKey(), debtors)
}

func (s *Service) observe(kind string) {
	if s.onMutation != nil {
		s.onMutation(kind)
	}
}

// dispatch sends a notification after a committed mutation. Best-effort:
// delivery failure is logged and suppressed.
func (s *Service) dispatch(ctx context.Context, n Notification) {
	n.MarketID = s.marketID
	if err := s.notifier.Send(ctx, n); err != nil {
		log.Printf("[Ledger] Notification %s dropped: %v", n.Kind, err)
	}
}

// =============================================================================
// DEBTOR OPERATIONS
// =============================================================================

type CreateDebtorInput struct {
	Name            string
	Nickname        string
	Phone           string
	Address         string
	DebtLimit       *Money
	InterestRate    *float64
	PaymentSchedule []time.Time
	CreatedBy       ActorRef
}

func (s *Service) CreateDebtor(ctx context.Context, in CreateDebtorInput) (DebtorID, error) {
	if in.Name == "" {
		return "", NewValidationError("name", "name is required")
	}
	if in.DebtLimit != nil && !in.DebtLimit.IsPositive() {
		return "", NewValidationError("debt_limit", "debt limit must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	debtor := Debtor{
		ID:              DebtorID(uuid.NewString()),
		Name:            in.Name,
		Nickname:        in.Nickname,
		Phone:           in.Phone,
		Address:         in.Address,
		TotalDebt:       ZeroMoney(),
		Transactions:    []Transaction{},
		DebtLimit:       in.DebtLimit,
		InterestRate:    in.InterestRate,
		PaymentSchedule: in.PaymentSchedule,
		CreatedAt:       s.clock(),
	}
	debtors = append(debtors, debtor)

	if err := s.save(ctx, debtors); err != nil {
		return "", err
	}
	s.observe("create_debtor")

	s.dispatch(ctx, Notification{
		Kind:          NotifyDebtorCreated,
		Title:         "New debtor",
		Body:          fmt.Sprintf("%s was added to the ledger", debtor.Name),
		RecipientRole: "owner",
		SenderRole:    in.CreatedBy.Role,
		SenderID:      in.CreatedBy.ID,
	})
	return debtor.ID, nil
}

// GetDebtor returns a deep copy so callers can't mutate the snapshot.
func (s *Service) GetDebtor(ctx context.Context, id DebtorID) (*Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range debtors {
		if debtors[i].ID == id {
			return debtors[i].Clone(), nil
		}
	}
	return nil, &NotFoundError{Kind: "debtor", ID: string(id)}
}

func (s *Service) ListDebtors(ctx context.Context) ([]Debtor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Debtor, len(debtors))
	for i := range debtors {
		out[i] = *debtors[i].Clone()
	}
	return out, nil
}

// DebtorUpdate carries partial contact/limit updates. Nil fields are untouched.
type DebtorUpdate struct {
	Name            *string
	Nickname        *string
	Phone           *string
	Address         *string
	DebtLimit       *Money
	ClearDebtLimit  bool
	InterestRate    *float64
	PaymentSchedule []time.Time
}

func (s *Service) UpdateDebtor(ctx context.Context, id DebtorID, upd DebtorUpdate) error {
	if upd.Name != nil && *upd.Name == "" {
		return NewValidationError("name", "name cannot be empty")
	}
	if upd.DebtLimit != nil && !upd.DebtLimit.IsPositive() {
		return NewValidationError("debt_limit", "debt limit must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, id)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(id)}
	}

	next := debtors[i].Clone()
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Nickname != nil {
		next.Nickname = *upd.Nickname
	}
	if upd.Phone != nil {
		next.Phone = *upd.Phone
	}
	if upd.Address != nil {
		next.Address = *upd.Address
	}
	if upd.ClearDebtLimit {
		next.DebtLimit = nil
	} else if upd.DebtLimit != nil {
		limit := *upd.DebtLimit
		next.DebtLimit = &limit
	}
	if upd.InterestRate != nil {
		rate := *upd.InterestRate
		next.InterestRate = &rate
	}
	if upd.PaymentSchedule != nil {
		next.PaymentSchedule = upd.PaymentSchedule
	}
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("update_debtor")
	return nil
}

func (s *Service) DeleteDebtor(ctx context.Context, id DebtorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, id)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(id)}
	}
	name := debtors[i].Name
	debtors = append(debtors[:i], debtors[i+1:]...)

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("delete_debtor")

	s.dispatch(ctx, Notification{
		Kind:          NotifyDebtorDeleted,
		Title:         "Debtor removed",
		Body:          fmt.Sprintf("%s was removed from the ledger", name),
		RecipientRole: "owner",
	})
	return nil
}

// =============================================================================
// TRANSACTION OPERATIONS
// =============================================================================

type TransactionInput struct {
	Amount           Money
	Type             TransactionType
	Description      string
	Date             time.Time // zero = now
	Tags             []string
	Attachments      []Attachment
	IsPartialPayment bool
	PartialPaymentOf TransactionID
	CreatedBy        ActorRef
}

// AddTransaction appends a charge or payment and updates TotalDebt by the
// exact signed delta. On a locked debtor only the qualifying unlock payment
// (a payment bringing TotalDebt <= 0) is accepted; it unlocks synchronously.
func (s *Service) AddTransaction(ctx context.Context, debtorID DebtorID, in TransactionInput) (TransactionID, error) {
	if !in.Amount.IsPositive() {
		return "", NewValidationError("amount", "amount must be positive")
	}
	if in.Type != TxDebt && in.Type != TxPayment {
		return "", NewValidationError("type", "type must be %q or %q", TxDebt, TxPayment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	i := indexOf(debtors, debtorID)
	if i < 0 {
		return "", &NotFoundError{Kind: "debtor", ID: string(debtorID)}
	}

	now := s.clock()
	next := debtors[i].Clone()

	newTotal := next.TotalDebt.Add(txDelta(in.Amount, in.Type))
	if next.IsLocked {
		qualifies := in.Type == TxPayment && newTotal.LessOrEqual(ZeroMoney())
		if !qualifies {
			return "", &LockedError{DebtorID: debtorID, Reason: next.LockedReason}
		}
		next.IsLocked = false
		next.LockedAt = nil
		next.LockedReason = ""
		log.Printf("[Ledger] Debtor %s unlocked by payment of %s", debtorID, in.Amount)
	}

	date := in.Date
	if date.IsZero() {
		date = now
	}

	tx := Transaction{
		ID:               TransactionID(uuid.NewString()),
		Amount:           in.Amount,
		Type:             in.Type,
		Date:             date,
		Description:      in.Description,
		Tags:             in.Tags,
		Attachments:      in.Attachments,
		IsPartialPayment: in.IsPartialPayment,
		PartialPaymentOf: in.PartialPaymentOf,
		CreatedBy:        in.CreatedBy,
		History: []HistoryItem{{
			Action:     HistoryCreated,
			At:         now,
			PrevAmount: in.Amount,
			PrevType:   in.Type,
			By:         in.CreatedBy,
		}},
	}

	prevTotal := next.TotalDebt
	next.Transactions = append(next.Transactions, tx)
	next.TotalDebt = newTotal
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return "", err
	}
	s.observe("add_transaction")

	s.dispatch(ctx, Notification{
		Kind:          NotifyTransactionAdded,
		Title:         "Transaction added",
		Body:          fmt.Sprintf("%s of %s for %s", in.Type, in.Amount, next.Name),
		RecipientRole: "owner",
		SenderRole:    in.CreatedBy.Role,
		SenderID:      in.CreatedBy.ID,
	})
	if in.Type == TxDebt {
		s.checkLimitBreach(ctx, next, prevTotal, newTotal)
	}
	return tx.ID, nil
}

// TransactionUpdate carries a partial transaction edit. Nil fields are untouched.
type TransactionUpdate struct {
	Amount      *Money
	Type        *TransactionType
	Description *string
	Date        *time.Time
	Tags        []string
	EditedBy    ActorRef
}

// EditTransaction recomputes TotalDebt by the delta between the old and new
// signed contribution and appends a history entry preserving prior values.
func (s *Service) EditTransaction(ctx context.Context, debtorID DebtorID, txID TransactionID, upd TransactionUpdate) error {
	if upd.Amount != nil && !upd.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be positive")
	}
	if upd.Type != nil && *upd.Type != TxDebt && *upd.Type != TxPayment {
		return NewValidationError("type", "type must be %q or %q", TxDebt, TxPayment)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, debtorID)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(debtorID)}
	}

	next := debtors[i].Clone()
	if next.IsLocked {
		return &LockedError{DebtorID: debtorID, Reason: next.LockedReason}
	}

	j := txIndexOf(next.Transactions, txID)
	if j < 0 {
		return &NotFoundError{Kind: "transaction", ID: string(txID)}
	}
	old := next.Transactions[j]
	if old.IsLocked {
		return ErrTransactionLocked
	}

	edited := old
	if upd.Amount != nil {
		edited.Amount = *upd.Amount
	}
	if upd.Type != nil {
		edited.Type = *upd.Type
	}
	if upd.Description != nil {
		edited.Description = *upd.Description
	}
	if upd.Date != nil {
		edited.Date = *upd.Date
	}
	if upd.Tags != nil {
		edited.Tags = upd.Tags
	}
	edited.History = append(append([]HistoryItem(nil), old.History...), HistoryItem{
		Action:          HistoryEdited,
		At:              s.clock(),
		PrevAmount:      old.Amount,
		PrevType:        old.Type,
		PrevDescription: old.Description,
		By:              upd.EditedBy,
	})

	next.Transactions[j] = edited
	next.TotalDebt = next.TotalDebt.Sub(old.SignedDelta()).Add(edited.SignedDelta())
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("edit_transaction")

	s.dispatch(ctx, Notification{
		Kind:          NotifyTransactionEdited,
		Title:         "Transaction edited",
		Body:          fmt.Sprintf("%s of %s for %s was edited", edited.Type, edited.Amount, next.Name),
		RecipientRole: "owner",
	})
	return nil
}

// DeleteTransaction removes a transaction and reverses its signed
// contribution to TotalDebt.
func (s *Service) DeleteTransaction(ctx context.Context, debtorID DebtorID, txID TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, debtorID)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(debtorID)}
	}

	next := debtors[i].Clone()
	if next.IsLocked {
		return &LockedError{DebtorID: debtorID, Reason: next.LockedReason}
	}

	j := txIndexOf(next.Transactions, txID)
	if j < 0 {
		return &NotFoundError{Kind: "transaction", ID: string(txID)}
	}
	removed := next.Transactions[j]
	if removed.IsLocked {
		return ErrTransactionLocked
	}

	next.Transactions = append(next.Transactions[:j], next.Transactions[j+1:]...)
	next.TotalDebt = next.TotalDebt.Sub(removed.SignedDelta())
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("delete_transaction")

	s.dispatch(ctx, Notification{
		Kind:          NotifyTransactionDeleted,
		Title:         "Transaction deleted",
		Body:          fmt.Sprintf("%s of %s for %s was deleted", removed.Type, removed.Amount, next.Name),
		RecipientRole: "owner",
	})
	return nil
}

// =============================================================================
// LOCKING OPERATIONS
// =============================================================================

// LockDebtor freezes a debtor. Locking an already-locked debtor is a no-op
// so periodic policy evaluation never re-stamps LockedAt.
func (s *Service) LockDebtor(ctx context.Context, id DebtorID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, id)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(id)}
	}
	if debtors[i].IsLocked {
		return nil
	}

	next := debtors[i].Clone()
	at := s.clock()
	next.IsLocked = true
	next.LockedAt = &at
	next.LockedReason = reason
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("lock_debtor")
	log.Printf("[Ledger] Debtor %s locked: %s", id, reason)
	return nil
}

func (s *Service) UnlockDebtor(ctx context.Context, id DebtorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	debtors, err := s.load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(debtors, id)
	if i < 0 {
		return &NotFoundError{Kind: "debtor", ID: string(id)}
	}
	if !debtors[i].IsLocked {
		return nil
	}

	next := debtors[i].Clone()
	next.IsLocked = false
	next.LockedAt = nil
	next.LockedReason = ""
	debtors[i] = *next

	if err := s.save(ctx, debtors); err != nil {
		return err
	}
	s.observe("unlock_debtor")
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

var (
	warnThreshold = decimal.NewFromFloat(0.8)
	overThreshold = decimal.NewFromInt(1)
)

// checkLimitBreach emits a limit notification when a debt transaction moves
// utilization across the 80% or 100% boundary. Crossing, not at-or-above:
// a debtor sitting at 90% doesn't re-notify on every charge below 100%.
func (s *Service) checkLimitBreach(ctx context.Context, d *Debtor, prevTotal, newTotal Money) {
	if d.DebtLimit == nil || !d.DebtLimit.IsPositive() {
		return
	}
	limit := d.DebtLimit.Value
	prev := prevTotal.Value.Div(limit)
	cur := newTotal.Value.Div(limit)

	switch {
	case prev.LessThan(overThreshold) && cur.GreaterThanOrEqual(overThreshold):
		s.dispatch(ctx, Notification{
			Kind:          NotifyLimitExceeded,
			Title:         "Debt limit exceeded",
			Body:          fmt.Sprintf("%s owes %s, over the limit of %s", d.Name, newTotal, *d.DebtLimit),
			RecipientRole: "owner",
			RecipientID:   string(d.ID),
		})
	case prev.LessThan(warnThreshold) && cur.GreaterThanOrEqual(warnThreshold):
		s.dispatch(ctx, Notification{
			Kind:          NotifyLimitWarning,
			Title:         "Debt limit warning",
			Body:          fmt.Sprintf("%s owes %s, at 80%% of the limit of %s", d.Name, newTotal, *d.DebtLimit),
			RecipientRole: "owner",
			RecipientID:   string(d.ID),
		})
	}
}

func txDelta(amount Money, typ TransactionType) Money {
	if typ == TxPayment {
		return amount.Neg()
	}
	return amount
}

func indexOf(debtors []Debtor, id DebtorID) int {
	for i := range debtors {
		if debtors[i].ID == id {
			return i
		}
	}
	return -1
}

func txIndexOf(txs []Transaction, id TransactionID) int {
	for i := range txs {
		if txs[i].ID == id {
			return i
		}
	}
	return -1
}
