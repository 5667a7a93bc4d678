/*
Package incentive grants one-shot discounts for paying ahead of schedule.

PURPOSE:
  Rules define a percentage or fixed discount with eligibility gates
  (minimum days early, optional minimum payment amount). Applying a rule
  records an application with the discount math frozen at application time;
  marking it paid posts the discounted amount into the ledger exactly once.

DISCOUNT MATH:
  percentage: discount = original × value/100
  fixed:      discount = value
  final = original − discount, recomputed at application time, never
  drifting afterward.

SEE ALSO:
  - ledger/service.go: Where the discounted payment is posted
*/
package incentive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/debt-engine/kv"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/shopspring/decimal"
)

type Type string

const (
	Percentage Type = "percentage"
	Fixed      Type = "fixed"
)

// Rule is an early-payment discount configuration.
type Rule struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          Type          `json:"type"`
	Value         float64       `json:"value"` // percent for Percentage, amount for Fixed
	MinDaysEarly  int           `json:"min_days_early"`
	MinDebtAmount *ledger.Money `json:"min_debt_amount,omitempty"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Application is one granted discount, recorded before payment.
type Application struct {
	ID             string          `json:"id"`
	DebtorID       ledger.DebtorID `json:"debtor_id"`
	RuleID         string          `json:"rule_id"`
	RuleName       string          `json:"rule_name"`
	OriginalAmount ledger.Money    `json:"original_amount"`
	DiscountAmount ledger.Money    `json:"discount_amount"`
	FinalAmount    ledger.Money    `json:"final_amount"`
	DaysEarly      int             `json:"days_early"`
	Paid           bool            `json:"paid"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// Calculator manages incentive rules and applications.
type Calculator struct {
	mu     sync.Mutex
	store  kv.Store
	ledger *ledger.Service
	clock  ledger.Clock
}

func NewCalculator(store kv.Store, svc *ledger.Service) *Calculator {
	return &Calculator{store: store, ledger: svc, clock: time.Now}
}

// WithClock sets the time source. Call before use.
func (c *Calculator) WithClock(clk ledger.Clock) *Calculator {
	if clk != nil {
		c.clock = clk
	}
	return c
}

func (c *Calculator) loadRules(ctx context.Context) ([]Rule, error) {
	return kv.LoadJSON[[]Rule](ctx, c.store, kv.KeyIncentiveRules)
}

func (c *Calculator) loadApplications(ctx context.Context) ([]Application, error) {
	return kv.LoadJSON[[]Application](ctx, c.store, kv.KeyIncentiveApplications)
}

// =============================================================================
// RULE OPERATIONS
// =============================================================================

type RuleInput struct {
	Name          string
	Type          Type
	Value         float64
	MinDaysEarly  int
	MinDebtAmount *ledger.Money
}

func (c *Calculator) CreateRule(ctx context.Context, in RuleInput) (Rule, error) {
	if in.Name == "" {
		return Rule{}, ledger.NewValidationError("name", "name is required")
	}
	if in.Type != Percentage && in.Type != Fixed {
		return Rule{}, ledger.NewValidationError("type", "type must be %q or %q", Percentage, Fixed)
	}
	if in.Value <= 0 {
		return Rule{}, ledger.NewValidationError("value", "value must be positive")
	}
	if in.Type == Percentage && in.Value > 100 {
		return Rule{}, ledger.NewValidationError("value", "percentage cannot exceed 100")
	}
	if in.MinDaysEarly < 0 {
		return Rule{}, ledger.NewValidationError("min_days_early", "minimum days early cannot be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rules, err := c.loadRules(ctx)
	if err != nil {
		return Rule{}, err
	}
	rule := Rule{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Type:          in.Type,
		Value:         in.Value,
		MinDaysEarly:  in.MinDaysEarly,
		MinDebtAmount: in.MinDebtAmount,
		IsActive:      true,
		CreatedAt:     c.clock(),
	}
	rules = append(rules, rule)

	if err := kv.SaveJSON(ctx, c.store, kv.KeyIncentiveRules, rules); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (c *Calculator) ListRules(ctx context.Context) ([]Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadRules(ctx)
}

// =============================================================================
// APPLICATION OPERATIONS
// =============================================================================

// Discount computes the discount and final amount for a rule. Exposed so
// callers can preview the math before applying.
func Discount(rule Rule, original ledger.Money) (discount, final ledger.Money) {
	if rule.Type == Percentage {
		discount = original.Mul(decimal.NewFromFloat(rule.Value)).Div(decimal.NewFromInt(100))
	} else {
		discount = ledger.NewMoney(rule.Value)
	}
	if discount.GreaterThan(original) {
		discount = original
	}
	return discount, original.Sub(discount)
}

// Apply validates eligibility and records an unpaid application.
func (c *Calculator) Apply(ctx context.Context, debtorID ledger.DebtorID, ruleID string, paymentAmount ledger.Money, daysEarly int) (Application, error) {
	if !paymentAmount.IsPositive() {
		return Application{}, ledger.NewValidationError("payment_amount", "payment amount must be positive")
	}
	if _, err := c.ledger.GetDebtor(ctx, debtorID); err != nil {
		return Application{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rules, err := c.loadRules(ctx)
	if err != nil {
		return Application{}, err
	}
	var rule *Rule
	for i := range rules {
		if rules[i].ID == ruleID {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return Application{}, &ledger.NotFoundError{Kind: "rule", ID: ruleID}
	}
	if !rule.IsActive {
		return Application{}, ledger.ErrRuleInactive
	}
	if daysEarly < rule.MinDaysEarly {
		return Application{}, ledger.NewValidationError("days_early",
			"payment is %d days early, rule requires at least %d", daysEarly, rule.MinDaysEarly)
	}
	if rule.MinDebtAmount != nil && paymentAmount.LessThan(*rule.MinDebtAmount) {
		return Application{}, ledger.NewValidationError("payment_amount",
			"payment %s is below the rule minimum %s", paymentAmount, *rule.MinDebtAmount)
	}

	discount, final := Discount(*rule, paymentAmount)

	apps, err := c.loadApplications(ctx)
	if err != nil {
		return Application{}, err
	}
	app := Application{
		ID:             uuid.NewString(),
		DebtorID:       debtorID,
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		OriginalAmount: paymentAmount,
		DiscountAmount: discount,
		FinalAmount:    final,
		DaysEarly:      daysEarly,
		CreatedAt:      c.clock(),
	}
	apps = append(apps, app)

	if err := kv.SaveJSON(ctx, c.store, kv.KeyIncentiveApplications, apps); err != nil {
		return Application{}, err
	}
	return app, nil
}

// MarkPaid posts the discounted amount into the ledger as a payment tagged
// with the rule name, then flips Paid. One-way: a second call fails with
// ErrAlreadyPaid and never double-posts.
func (c *Calculator) MarkPaid(ctx context.Context, applicationID string) (Application, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	apps, err := c.loadApplications(ctx)
	if err != nil {
		return Application{}, err
	}
	var app *Application
	for i := range apps {
		if apps[i].ID == applicationID {
			app = &apps[i]
			break
		}
	}
	if app == nil {
		return Application{}, &ledger.NotFoundError{Kind: "incentive", ID: applicationID}
	}
	if app.Paid {
		return Application{}, ledger.ErrAlreadyPaid
	}

	_, err = c.ledger.AddTransaction(ctx, app.DebtorID, ledger.TransactionInput{
		Amount:      app.FinalAmount,
		Type:        ledger.TxPayment,
		Description: fmt.Sprintf("Early payment with %s discount", app.RuleName),
		Tags:        []string{"incentive", app.RuleName},
		CreatedBy:   ledger.ActorRef{Name: "incentive calculator", Role: "system"},
	})
	if err != nil {
		return Application{}, err
	}

	now := c.clock()
	app.Paid = true
	app.PaidAt = &now

	if err := kv.SaveJSON(ctx, c.store, kv.KeyIncentiveApplications, apps); err != nil {
		return Application{}, err
	}
	return *app, nil
}

func (c *Calculator) ListApplications(ctx context.Context) ([]Application, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadApplications(ctx)
}
