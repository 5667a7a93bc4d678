/*
Package ledger provides the core debt ledger engine.

PURPOSE:
  This package owns the debtor collection and its append-style transaction
  records. Every balance is derived from the transaction list; the rule
  engines (interest, contracts, incentives, splits, auto-lock) all read and
  write this ledger through the Service defined here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A signed monetary quantity with exact decimal arithmetic
  - Debtor: A customer record with its transaction history and derived balance
  - Transaction: A single debt (charge) or payment (credit) event
  - HistoryItem: An edit-trail entry preserving prior amount/description

DESIGN PRINCIPLES:
  1. Derived balance: TotalDebt is always the signed sum of transactions
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Snapshot mutations: every change is a pure transform over a deep copy
  4. Auditability: edits and deletes leave history entries, never silent

USAGE:
  amount := ledger.NewMoney(50_000)
  svc.AddTransaction(ctx, debtorID, ledger.TransactionInput{
      Amount:      amount,
      Type:        ledger.TxDebt,
      Description: "2 sacks of rice",
  })

SEE ALSO:
  - service.go: Mutation operations and the serializing entry point
  - errors.go: Error taxonomy shared with the rule engines
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact monetary amounts
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money     { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }
func ZeroMoney() Money                 { return Money{Value: decimal.Zero} }

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money              { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money              { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                     { return Money{Value: m.Value.Neg()} }
func (m Money) IsNegative() bool               { return m.Value.IsNegative() }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) IsPositive() bool               { return m.Value.IsPositive() }
func (m Money) GreaterThan(o Money) bool       { return m.Value.GreaterThan(o.Value) }
func (m Money) GreaterOrEqual(o Money) bool    { return m.Value.GreaterThanOrEqual(o.Value) }
func (m Money) LessThan(o Money) bool          { return m.Value.LessThan(o.Value) }
func (m Money) LessOrEqual(o Money) bool       { return m.Value.LessThanOrEqual(o.Value) }
func (m Money) Equal(o Money) bool             { return m.Value.Equal(o.Value) }
func (m Money) Float64() float64               { f, _ := m.Value.Float64(); return f }
func (m Money) String() string                 { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DebtorID string
type TransactionID string

// ActorRef is a snapshot of who performed an action. It is copied into the
// record at creation time so later changes to the actor don't rewrite history.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// =============================================================================
// TRANSACTION - A single charge or payment against a debtor
// =============================================================================

type TransactionType string

const (
	TxDebt    TransactionType = "debt"    // Charge: increases what the debtor owes
	TxPayment TransactionType = "payment" // Credit: decreases what the debtor owes
)

// Attachment is an opaque reference to an image, receipt, or voice note.
// The ledger stores the reference; rendering and storage of the payload
// belong to the caller.
type Attachment struct {
	Kind string `json:"kind"` // "image", "receipt", "voice"
	Ref  string `json:"ref"`
}

type HistoryAction string

const (
	HistoryCreated HistoryAction = "created"
	HistoryEdited  HistoryAction = "edited"
)

// HistoryItem preserves the prior amount/description across edits so the
// transaction's full lifecycle remains reconstructable.
type HistoryItem struct {
	Action          HistoryAction `json:"action"`
	At              time.Time     `json:"at"`
	PrevAmount      Money         `json:"prev_amount"`
	PrevType        TransactionType `json:"prev_type,omitempty"`
	PrevDescription string        `json:"prev_description,omitempty"`
	By              ActorRef      `json:"by,omitempty"`
}

type Transaction struct {
	ID               TransactionID   `json:"id"`
	Amount           Money           `json:"amount"` // positive magnitude; sign comes from Type
	Type             TransactionType `json:"type"`
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	Attachments      []Attachment    `json:"attachments,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	History          []HistoryItem   `json:"history,omitempty"`
	IsLocked         bool            `json:"is_locked,omitempty"`
	IsPartialPayment bool            `json:"is_partial_payment,omitempty"`
	PartialPaymentOf TransactionID   `json:"partial_payment_of,omitempty"`
	CreatedBy        ActorRef        `json:"created_by,omitempty"`
}

// SignedDelta returns the transaction's contribution to TotalDebt:
// positive for debt, negative for payment.
func (t Transaction) SignedDelta() Money {
	if t.Type == TxPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}

// =============================================================================
// DEBTOR - A customer with an outstanding balance ledger
// =============================================================================

type Debtor struct {
	ID           DebtorID      `json:"id"`
	Name         string        `json:"name"`
	Nickname     string        `json:"nickname,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	TotalDebt    Money         `json:"total_debt"` // derived; positive = owed to merchant
	Transactions []Transaction `json:"transactions"`

	IsLocked     bool       `json:"is_locked,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	LockedReason string     `json:"locked_reason,omitempty"`

	DebtLimit       *Money      `json:"debt_limit,omitempty"`
	InterestRate    *float64    `json:"interest_rate,omitempty"` // display hint; accrual uses interest.Rule
	PaymentSchedule []time.Time `json:"payment_schedule,omitempty"` // simple due dates, distinct from contracts

	CreatedAt time.Time `json:"created_at"`
}

// DerivedBalance replays the transaction list and returns the signed sum.
// TotalDebt must always equal this value; it exists as a field only so reads
// don't replay on every access.
func (d *Debtor) DerivedBalance() Money {
	balance := ZeroMoney()
	for _, tx := range d.Transactions {
		balance = balance.Add(tx.SignedDelta())
	}
	return balance
}

// LastDebtDate returns the date of the most recent debt-type transaction,
// or false if the debtor has never been charged.
func (d *Debtor) LastDebtDate() (time.Time, bool) {
	var last time.Time
	found := false
	for _, tx := range d.Transactions {
		if tx.Type != TxDebt {
			continue
		}
		if !found || tx.Date.After(last) {
			last = tx.Date
			found = true
		}
	}
	return last, found
}

// Clone returns a deep copy. Mutations operate on clones so an in-flight
// failure never leaves the shared snapshot half-modified.
func (d *Debtor) Clone() *Debtor {
	c := *d
	c.Transactions = make([]Transaction, len(d.Transactions))
	for i, tx := range d.Transactions {
		c.Transactions[i] = tx.clone()
	}
	if d.LockedAt != nil {
		at := *d.LockedAt
		c.LockedAt = &at
	}
	if d.DebtLimit != nil {
		limit := *d.DebtLimit
		c.DebtLimit = &limit
	}
	if d.InterestRate != nil {
		rate := *d.InterestRate
		c.InterestRate = &rate
	}
	c.PaymentSchedule = append([]time.Time(nil), d.PaymentSchedule...)
	return &c
}

func (t Transaction) clone() Transaction {
	c := t
	c.Attachments = append([]Attachment(nil), t.Attachments...)
	c.Tags = append([]string(nil), t.Tags...)
	c.History = append([]HistoryItem(nil), t.History...)
	return c
}
