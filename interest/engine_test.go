package interest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/debt-engine/interest"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var engineEpoch = time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*interest.Engine, *ledger.Service) {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store).WithClock(func() time.Time { return engineEpoch })
	eng := interest.NewEngine(store, svc).WithClock(func() time.Time { return engineEpoch })
	return eng, svc
}

func newDebtorWithDebt(t *testing.T, svc *ledger.Service, amount float64) ledger.DebtorID {
	t.Helper()
	ctx := context.Background()
	id, err := svc.CreateDebtor(ctx, ledger.CreateDebtorInput{Name: "Somchai"})
	require.NoError(t, err)
	_, err = svc.AddTransaction(ctx, id, ledger.TransactionInput{
		Amount: ledger.NewMoney(amount),
		Type:   ledger.TxDebt,
	})
	require.NoError(t, err)
	return id
}

func newActiveRule(t *testing.T, eng *interest.Engine, rate float64) interest.Rule {
	t.Helper()
	rule, err := eng.CreateRule(context.Background(), interest.RuleInput{
		Name:      "standard",
		Rate:      rate,
		Type:      interest.Simple,
		Frequency: interest.Yearly,
	})
	require.NoError(t, err)
	return rule
}

// =============================================================================
// RULE MANAGEMENT
// =============================================================================

func TestEngine_CreateRule_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateRule(ctx, interest.RuleInput{Rate: 10, Type: interest.Simple, Frequency: interest.Yearly})
	assert.True(t, ledger.IsValidation(err), "missing name")

	_, err = eng.CreateRule(ctx, interest.RuleInput{Name: "r", Rate: 0, Type: interest.Simple, Frequency: interest.Yearly})
	assert.True(t, ledger.IsValidation(err), "zero rate")

	_, err = eng.CreateRule(ctx, interest.RuleInput{Name: "r", Rate: 120, Type: interest.Simple, Frequency: interest.Yearly})
	assert.True(t, ledger.IsValidation(err), "rate above 100")

	_, err = eng.CreateRule(ctx, interest.RuleInput{Name: "r", Rate: 10, Type: "hourly", Frequency: interest.Yearly})
	assert.True(t, ledger.IsValidation(err), "unknown type")
}

func TestEngine_Bind_InactiveRule_Rejected(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	require.NoError(t, eng.SetRuleActive(ctx, rule.ID, false))

	id := newDebtorWithDebt(t, svc, 10_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	assert.ErrorIs(t, err, ledger.ErrRuleInactive)
}

func TestEngine_Bind_Twice_Rejected(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 10_000)

	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	_, err = eng.Bind(ctx, id, rule.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyBound)
}

// =============================================================================
// EVALUATION
// =============================================================================

func TestEngine_Evaluate_AccruesSimpleInterest(t *testing.T) {
	// GIVEN: 1,000,000 debt bound to a 10% yearly simple rule
	// WHEN: A tick runs 365 days later
	// THEN: CurrentInterest is 100,000 and the total reflects it

	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 1_000_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, engineEpoch.AddDate(0, 0, 365))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accrued)

	bindings, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.True(t, bindings[0].CurrentInterest.Equal(ledger.NewMoney(100_000)),
		"got %s", bindings[0].CurrentInterest)
	assert.True(t, bindings[0].TotalWithInterest.Equal(ledger.NewMoney(1_100_000)))
	assert.Equal(t, 365, bindings[0].DaysAccrued)
}

func TestEngine_Evaluate_SameDayTick_IsNoOp(t *testing.T) {
	// GIVEN: A binding just evaluated
	// WHEN: Another tick runs within the same day
	// THEN: Nothing accrues, so a crashed-and-retried tick cannot double-charge

	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 1_000_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	later := engineEpoch.AddDate(0, 0, 30)
	_, err = eng.Evaluate(ctx, later)
	require.NoError(t, err)

	first, err := eng.ListBindings(ctx)
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, later.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accrued)
	assert.Equal(t, 1, res.Skipped)

	second, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	assert.True(t, second[0].CurrentInterest.Equal(first[0].CurrentInterest))
	assert.Equal(t, first[0].DaysAccrued, second[0].DaysAccrued)
}

func TestEngine_Evaluate_InterestNeverDecreases(t *testing.T) {
	// GIVEN: Interest accrued while debt was high
	// WHEN: The debtor pays most of it down and the next tick recalculates
	// THEN: CurrentInterest keeps its high-water mark

	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 1_000_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	_, err = eng.Evaluate(ctx, engineEpoch.AddDate(0, 0, 365))
	require.NoError(t, err)

	before, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	accrued := before[0].CurrentInterest

	_, err = svc.AddTransaction(ctx, id, ledger.TransactionInput{
		Amount: ledger.NewMoney(990_000),
		Type:   ledger.TxPayment,
	})
	require.NoError(t, err)

	_, err = eng.Evaluate(ctx, engineEpoch.AddDate(0, 0, 367))
	require.NoError(t, err)

	after, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	assert.True(t, after[0].CurrentInterest.GreaterOrEqual(accrued),
		"accrued interest moved from %s down to %s", accrued, after[0].CurrentInterest)
}

func TestEngine_Evaluate_ApplyAfterDays_GracePeriod(t *testing.T) {
	// GIVEN: A rule with a 30 day grace period
	// WHEN: A tick runs on day 10
	// THEN: Nothing accrues yet

	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule, err := eng.CreateRule(ctx, interest.RuleInput{
		Name:           "grace",
		Rate:           10,
		Type:           interest.Simple,
		Frequency:      interest.Yearly,
		ApplyAfterDays: 30,
	})
	require.NoError(t, err)

	id := newDebtorWithDebt(t, svc, 100_000)
	_, err = eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, engineEpoch.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accrued)
	assert.Equal(t, 1, res.Skipped)
}

func TestEngine_Evaluate_InactiveRule_Skipped(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 100_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	require.NoError(t, eng.SetRuleActive(ctx, rule.ID, false))

	res, err := eng.Evaluate(ctx, engineEpoch.AddDate(0, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accrued)
}

func TestEngine_Evaluate_SettledDebtor_NoGrowth(t *testing.T) {
	// A fully paid debtor accrues nothing, regardless of elapsed time.
	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 50_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	_, err = svc.AddTransaction(ctx, id, ledger.TransactionInput{
		Amount: ledger.NewMoney(50_000),
		Type:   ledger.TxPayment,
	})
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, engineEpoch.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accrued)

	bindings, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	assert.True(t, bindings[0].CurrentInterest.IsZero())
}

func TestEngine_Unbind_RemovesBinding(t *testing.T) {
	eng, svc := newTestEngine(t)
	ctx := context.Background()

	rule := newActiveRule(t, eng, 10)
	id := newDebtorWithDebt(t, svc, 10_000)
	_, err := eng.Bind(ctx, id, rule.ID)
	require.NoError(t, err)

	require.NoError(t, eng.Unbind(ctx, id))

	bindings, err := eng.ListBindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, bindings)

	err = eng.Unbind(ctx, id)
	assert.True(t, ledger.IsNotFound(err))
}
