/*
engine.go - Interest rule and binding lifecycle, plus the evaluation tick

PURPOSE:
  Owns the interest/rules and interest/bindings collections. Binding checks
  the one-active-binding-per-debtor invariant; Evaluate recomputes accrued
  interest against each debtor's current balance.

PRINCIPAL RE-READ:
  Principal is not frozen at bind time. Each tick reads the debtor's current
  TotalDebt, so payments shrink the base the next accrual computes against.

SEE ALSO:
  - types.go: Rule/Binding model
  - calc.go: Formulas
*/
package interest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/debt-engine/kv"
	"github.com/ledgerline/debt-engine/ledger"
)

// Engine manages interest rules and debtor bindings.
type Engine struct {
	mu     sync.Mutex
	store  kv.Store
	ledger *ledger.Service
	clock  ledger.Clock
}

func NewEngine(store kv.Store, svc *ledger.Service) *Engine {
	return &Engine{store: store, ledger: svc, clock: time.Now}
}

// WithClock sets the time source. Call before use.
func (e *Engine) WithClock(c ledger.Clock) *Engine {
	if c != nil {
		e.clock = c
	}
	return e
}

func (e *Engine) loadRules(ctx context.Context) ([]Rule, error) {
	return kv.LoadJSON[[]Rule](ctx, e.store, kv.KeyInterestRules)
}

func (e *Engine) loadBindings(ctx context.Context) ([]Binding, error) {
	return kv.LoadJSON[[]Binding](ctx, e.store, kv.KeyInterestBindings)
}

// =============================================================================
// RULE OPERATIONS
// =============================================================================

type RuleInput struct {
	Name           string
	Rate           float64
	Type           Type
	Frequency      Frequency
	MinAmount      *ledger.Money
	MaxAmount      *ledger.Money
	ApplyAfterDays int
}

func (e *Engine) CreateRule(ctx context.Context, in RuleInput) (Rule, error) {
	if in.Name == "" {
		return Rule{}, ledger.NewValidationError("name", "name is required")
	}
	if in.Rate <= 0 || in.Rate > 100 {
		return Rule{}, ledger.NewValidationError("rate", "rate must be between 0 and 100")
	}
	if in.Type != Simple && in.Type != Compound {
		return Rule{}, ledger.NewValidationError("type", "type must be %q or %q", Simple, Compound)
	}
	switch in.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return Rule{}, ledger.NewValidationError("frequency", "unknown frequency %q", in.Frequency)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.loadRules(ctx)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{
		ID:             uuid.NewString(),
		Name:           in.Name,
		Rate:           in.Rate,
		Type:           in.Type,
		Frequency:      in.Frequency,
		MinAmount:      in.MinAmount,
		MaxAmount:      in.MaxAmount,
		ApplyAfterDays: in.ApplyAfterDays,
		IsActive:       true,
		CreatedAt:      e.clock(),
	}
	rules = append(rules, rule)

	if err := kv.SaveJSON(ctx, e.store, kv.KeyInterestRules, rules); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func (e *Engine) ListRules(ctx context.Context) ([]Rule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadRules(ctx)
}

// SetRuleActive toggles a rule. Deactivating a rule halts accrual on its
// bindings at the next tick; existing bindings are kept.
func (e *Engine) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.loadRules(ctx)
	if err != nil {
		return err
	}
	for i := range rules {
		if rules[i].ID == ruleID {
			rules[i].IsActive = active
			return kv.SaveJSON(ctx, e.store, kv.KeyInterestRules, rules)
		}
	}
	return &ledger.NotFoundError{Kind: "rule", ID: ruleID}
}

// =============================================================================
// BINDING OPERATIONS
// =============================================================================

// Bind attaches a rule to a debtor. Fails with ErrAlreadyBound if the debtor
// already has an active binding and ErrRuleInactive if the rule is disabled.
func (e *Engine) Bind(ctx context.Context, debtorID ledger.DebtorID, ruleID string) (Binding, error) {
	debtor, err := e.ledger.GetDebtor(ctx, debtorID)
	if err != nil {
		return Binding{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.loadRules(ctx)
	if err != nil {
		return Binding{}, err
	}
	var rule *Rule
	for i := range rules {
		if rules[i].ID == ruleID {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		return Binding{}, &ledger.NotFoundError{Kind: "rule", ID: ruleID}
	}
	if !rule.IsActive {
		return Binding{}, ledger.ErrRuleInactive
	}

	bindings, err := e.loadBindings(ctx)
	if err != nil {
		return Binding{}, err
	}
	for _, b := range bindings {
		if b.DebtorID == debtorID {
			return Binding{}, ledger.ErrAlreadyBound
		}
	}

	now := e.clock()
	binding := Binding{
		ID:                uuid.NewString(),
		DebtorID:          debtorID,
		RuleID:            ruleID,
		BaseAmount:        debtor.TotalDebt,
		CurrentInterest:   ledger.ZeroMoney(),
		TotalWithInterest: debtor.TotalDebt,
		LastCalculated:    now,
		BoundAt:           now,
	}
	bindings = append(bindings, binding)

	if err := kv.SaveJSON(ctx, e.store, kv.KeyInterestBindings, bindings); err != nil {
		return Binding{}, err
	}
	return binding, nil
}

// Unbind removes the debtor's binding. Accrued interest already recorded
// stays in the binding history's last persisted state only; nothing is
// posted to the ledger by this engine.
func (e *Engine) Unbind(ctx context.Context, debtorID ledger.DebtorID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	bindings, err := e.loadBindings(ctx)
	if err != nil {
		return err
	}
	for i, b := range bindings {
		if b.DebtorID == debtorID {
			bindings = append(bindings[:i], bindings[i+1:]...)
			return kv.SaveJSON(ctx, e.store, kv.KeyInterestBindings, bindings)
		}
	}
	return &ledger.NotFoundError{Kind: "binding", ID: string(debtorID)}
}

func (e *Engine) ListBindings(ctx context.Context) ([]Binding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadBindings(ctx)
}

// =============================================================================
// EVALUATION TICK
// =============================================================================

// Result summarizes one evaluation pass.
type Result struct {
	Evaluated int
	Accrued   int
	Skipped   int
}

// Evaluate recomputes accrued interest for every binding with an active
// rule. Bindings less than one day since LastCalculated are skipped, which
// makes re-running a tick on unchanged state a no-op.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	debtors, err := e.ledger.ListDebtors(ctx)
	if err != nil {
		return res, err
	}
	byID := make(map[ledger.DebtorID]*ledger.Debtor, len(debtors))
	for i := range debtors {
		byID[debtors[i].ID] = &debtors[i]
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.loadRules(ctx)
	if err != nil {
		return res, err
	}
	ruleByID := make(map[string]*Rule, len(rules))
	for i := range rules {
		ruleByID[rules[i].ID] = &rules[i]
	}

	bindings, err := e.loadBindings(ctx)
	if err != nil {
		return res, err
	}

	changed := false
	for i := range bindings {
		b := &bindings[i]
		res.Evaluated++

		rule, ok := ruleByID[b.RuleID]
		if !ok || !rule.IsActive {
			res.Skipped++
			continue
		}
		debtor, ok := byID[b.DebtorID]
		if !ok {
			// Debtor deleted; binding tolerated as a no-op.
			res.Skipped++
			continue
		}

		daysPassed := int(now.Sub(b.LastCalculated).Hours() / 24)
		if daysPassed < 1 {
			res.Skipped++
			continue
		}
		if rule.ApplyAfterDays > 0 && int(now.Sub(b.BoundAt).Hours()/24) < rule.ApplyAfterDays {
			res.Skipped++
			continue
		}

		principal := debtor.TotalDebt
		if !principal.IsPositive() {
			// No outstanding debt: binding left untouched, no growth.
			res.Skipped++
			continue
		}
		if rule.MinAmount != nil && principal.LessThan(*rule.MinAmount) {
			res.Skipped++
			continue
		}
		if rule.MaxAmount != nil && principal.GreaterThan(*rule.MaxAmount) {
			principal = *rule.MaxAmount
		}

		totalDays := b.DaysAccrued + daysPassed
		recalculated := Calculate(principal, rule.Rate, totalDays, rule.Type, rule.Frequency)

		// Accrual is monotonic non-decreasing: a shrinking principal must
		// not pull CurrentInterest back down.
		if recalculated.LessThan(b.CurrentInterest) {
			recalculated = b.CurrentInterest
		}

		b.BaseAmount = principal
		b.CurrentInterest = recalculated
		b.TotalWithInterest = debtor.TotalDebt.Add(recalculated)
		b.DaysAccrued = totalDays
		b.LastCalculated = now
		changed = true
		res.Accrued++
	}

	if changed {
		if err := kv.SaveJSON(ctx, e.store, kv.KeyInterestBindings, bindings); err != nil {
			return res, err
		}
	}
	if res.Accrued > 0 {
		log.Printf("[Interest] Tick: %d bindings accrued, %d skipped", res.Accrued, res.Skipped)
	}
	return res, nil
}
