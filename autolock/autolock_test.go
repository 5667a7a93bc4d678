package autolock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/debt-engine/autolock"
	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var lockEpoch = time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)

func newLockFixture(t *testing.T, cfg autolock.Config) (*autolock.Engine, *ledger.Service) {
	t.Helper()
	svc := ledger.NewService(memory.New()).WithClock(func() time.Time { return lockEpoch })
	return autolock.New(svc, cfg), svc
}

func debtorOwing(t *testing.T, svc *ledger.Service, name string, amount float64) ledger.DebtorID {
	t.Helper()
	ctx := context.Background()
	id, err := svc.CreateDebtor(ctx, ledger.CreateDebtorInput{Name: name})
	require.NoError(t, err)
	if amount != 0 {
		txType := ledger.TxDebt
		if amount < 0 {
			txType = ledger.TxPayment
			amount = -amount
		}
		_, err = svc.AddTransaction(ctx, id, ledger.TransactionInput{
			Amount: ledger.NewMoney(amount),
			Type:   txType,
		})
		require.NoError(t, err)
	}
	return id
}

// =============================================================================
// THRESHOLD TESTS
// =============================================================================

func TestAutoLock_StaleDebt_Locked(t *testing.T) {
	// GIVEN: A debtor whose last charge is 31 days old, threshold 30
	// WHEN: The evaluation tick runs
	// THEN: The debtor is locked with an explanatory reason

	eng, svc := newLockFixture(t, autolock.Config{Enabled: true, ThresholdDays: 30})
	ctx := context.Background()
	id := debtorOwing(t, svc, "Somchai", 50_000)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Locked)

	debtor, err := svc.GetDebtor(ctx, id)
	require.NoError(t, err)
	assert.True(t, debtor.IsLocked)
	assert.Contains(t, debtor.LockedReason, "auto-locked")
	assert.Contains(t, debtor.LockedReason, "31 days")
}

func TestAutoLock_FreshDebt_Untouched(t *testing.T) {
	eng, svc := newLockFixture(t, autolock.Config{Enabled: true, ThresholdDays: 30})
	ctx := context.Background()
	id := debtorOwing(t, svc, "Somchai", 50_000)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Locked)

	debtor, err := svc.GetDebtor(ctx, id)
	require.NoError(t, err)
	assert.False(t, debtor.IsLocked)
}

func TestAutoLock_AgeCountsFromLastCharge(t *testing.T) {
	// GIVEN: Old debt plus a fresh charge
	// WHEN: Evaluating past the original charge's age but not the fresh one's
	// THEN: The fresh charge resets the clock, so no lock

	eng, svc := newLockFixture(t, autolock.Config{Enabled: true, ThresholdDays: 30})
	ctx := context.Background()
	id := debtorOwing(t, svc, "Somchai", 50_000)

	// A second charge 25 days later resets the staleness clock.
	later := lockEpoch.AddDate(0, 0, 25)
	_, err := svc.AddTransaction(ctx, id, ledger.TransactionInput{
		Amount: ledger.NewMoney(5_000),
		Type:   ledger.TxDebt,
		Date:   later,
	})
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 40))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Locked, "15 days since last charge is under the threshold")
}

func TestAutoLock_AmountGate(t *testing.T) {
	// GIVEN: A threshold amount of 10,000
	// WHEN: A stale debtor owes less than that
	// THEN: The small balance is left unlocked

	eng, svc := newLockFixture(t, autolock.Config{
		Enabled:         true,
		ThresholdDays:   30,
		ThresholdAmount: ledger.NewMoney(10_000),
	})
	ctx := context.Background()
	small := debtorOwing(t, svc, "Small", 5_000)
	big := debtorOwing(t, svc, "Big", 50_000)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Locked)

	smallDebtor, err := svc.GetDebtor(ctx, small)
	require.NoError(t, err)
	assert.False(t, smallDebtor.IsLocked)

	bigDebtor, err := svc.GetDebtor(ctx, big)
	require.NoError(t, err)
	assert.True(t, bigDebtor.IsLocked)
}

func TestAutoLock_Disabled_NoOp(t *testing.T) {
	eng, svc := newLockFixture(t, autolock.Config{Enabled: false, ThresholdDays: 30})
	ctx := context.Background()
	debtorOwing(t, svc, "Somchai", 50_000)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 100))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	assert.Equal(t, 0, res.Locked)
}

func TestAutoLock_SettledDebtor_NeverLocked(t *testing.T) {
	eng, svc := newLockFixture(t, autolock.Config{Enabled: true, ThresholdDays: 30})
	ctx := context.Background()
	id := debtorOwing(t, svc, "Somchai", 50_000)

	_, err := svc.AddTransaction(ctx, id, ledger.TransactionInput{
		Amount: ledger.NewMoney(50_000),
		Type:   ledger.TxPayment,
	})
	require.NoError(t, err)

	res, err := eng.Evaluate(ctx, lockEpoch.AddDate(0, 0, 100))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Locked)
}

// =============================================================================
// IDEMPOTENCE
// =============================================================================

func TestAutoLock_Rerun_DoesNotRestampLock(t *testing.T) {
	// GIVEN: A debtor locked by a previous tick
	// WHEN: The tick runs again on unchanged state
	// THEN: Nothing is re-locked and the original reason survives

	eng, svc := newLockFixture(t, autolock.Config{Enabled: true, ThresholdDays: 30})
	ctx := context.Background()
	id := debtorOwing(t, svc, "Somchai", 50_000)

	at := lockEpoch.AddDate(0, 0, 31)
	res, err := eng.Evaluate(ctx, at)
	require.NoError(t, err)
	require.Equal(t, 1, res.Locked)

	first, err := svc.GetDebtor(ctx, id)
	require.NoError(t, err)

	res, err = eng.Evaluate(ctx, at.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Locked)

	second, err := svc.GetDebtor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.LockedReason, second.LockedReason)
	assert.True(t, first.LockedAt.Equal(*second.LockedAt))
}
