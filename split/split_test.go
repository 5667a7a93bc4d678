package split_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/debt-engine/ledger"
	"github.com/ledgerline/debt-engine/split"
	"github.com/ledgerline/debt-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestAllocator(t *testing.T) (*split.Allocator, *ledger.Service) {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store)
	return split.NewAllocator(store, svc), svc
}

func newSplitDebtor(t *testing.T, svc *ledger.Service, name string) ledger.DebtorID {
	t.Helper()
	id, err := svc.CreateDebtor(context.Background(), ledger.CreateDebtorInput{Name: name})
	require.NoError(t, err)
	return id
}

func moneyRef(v float64) *ledger.Money {
	m := ledger.NewMoney(v)
	return &m
}

func floatRef(v float64) *float64 { return &v }

// =============================================================================
// ALLOCATION MATH
// =============================================================================

func TestComputeSplit_EqualAndFixed_Conserved(t *testing.T) {
	// GIVEN: 300,000 split as [equal, equal, fixed 50,000]
	// WHEN: Resolving shares
	// THEN: [125,000, 125,000, 50,000] and the sum equals the total

	parties := []split.Party{
		{DebtorID: "a", SplitType: split.Equal},
		{DebtorID: "b", SplitType: split.Equal},
		{DebtorID: "c", SplitType: split.Fixed, Amount: moneyRef(50_000)},
	}
	resolved, err := split.ComputeSplit(ledger.NewMoney(300_000), parties)
	require.NoError(t, err)

	assert.True(t, resolved[0].Equal(ledger.NewMoney(125_000)), "got %s", resolved[0])
	assert.True(t, resolved[1].Equal(ledger.NewMoney(125_000)), "got %s", resolved[1])
	assert.True(t, resolved[2].Equal(ledger.NewMoney(50_000)), "got %s", resolved[2])

	sum := ledger.ZeroMoney()
	for _, r := range resolved {
		sum = sum.Add(r)
	}
	assert.True(t, sum.Equal(ledger.NewMoney(300_000)), "shares must conserve the total")
}

func TestComputeSplit_PercentageShares(t *testing.T) {
	parties := []split.Party{
		{DebtorID: "a", SplitType: split.Percentage, Percentage: floatRef(60)},
		{DebtorID: "b", SplitType: split.Percentage, Percentage: floatRef(40)},
	}
	resolved, err := split.ComputeSplit(ledger.NewMoney(100_000), parties)
	require.NoError(t, err)
	assert.True(t, resolved[0].Equal(ledger.NewMoney(60_000)))
	assert.True(t, resolved[1].Equal(ledger.NewMoney(40_000)))
}

func TestComputeSplit_OverAllocation_Rejected(t *testing.T) {
	// GIVEN: Fixed and percentage shares exceeding the total
	// WHEN: Resolving
	// THEN: A validation error, never a silent clamp

	parties := []split.Party{
		{DebtorID: "a", SplitType: split.Fixed, Amount: moneyRef(80_000)},
		{DebtorID: "b", SplitType: split.Percentage, Percentage: floatRef(50)},
	}
	_, err := split.ComputeSplit(ledger.NewMoney(100_000), parties)
	assert.True(t, ledger.IsValidation(err))
}

func TestComputeSplit_NoEqualParties_RemainderStaysUnallocated(t *testing.T) {
	parties := []split.Party{
		{DebtorID: "a", SplitType: split.Fixed, Amount: moneyRef(30_000)},
		{DebtorID: "b", SplitType: split.Percentage, Percentage: floatRef(20)},
	}
	resolved, err := split.ComputeSplit(ledger.NewMoney(100_000), parties)
	require.NoError(t, err)

	sum := resolved[0].Add(resolved[1])
	assert.True(t, sum.Equal(ledger.NewMoney(50_000)),
		"50,000 remainder stays unallocated, got %s", sum)
}

func TestComputeSplit_InvalidParties_Rejected(t *testing.T) {
	total := ledger.NewMoney(100_000)

	_, err := split.ComputeSplit(total, []split.Party{
		{DebtorID: "a", SplitType: split.Fixed},
	})
	assert.True(t, ledger.IsValidation(err), "fixed without amount")

	_, err = split.ComputeSplit(total, []split.Party{
		{DebtorID: "a", SplitType: split.Percentage, Percentage: floatRef(120)},
	})
	assert.True(t, ledger.IsValidation(err), "percentage above 100")

	_, err = split.ComputeSplit(total, []split.Party{
		{DebtorID: "a", SplitType: "weighted"},
	})
	assert.True(t, ledger.IsValidation(err), "unknown split type")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestAllocator_Create_ResolvesShares(t *testing.T) {
	alloc, svc := newTestAllocator(t)
	ctx := context.Background()

	a := newSplitDebtor(t, svc, "A")
	b := newSplitDebtor(t, svc, "B")

	s, err := alloc.Create(ctx, split.CreateInput{
		Name:        "shared stock order",
		TotalAmount: ledger.NewMoney(80_000),
		Parties: []split.Party{
			{DebtorID: a, SplitType: split.Equal},
			{DebtorID: b, SplitType: split.Equal},
		},
	})
	require.NoError(t, err)

	assert.False(t, s.IsSettled)
	require.Len(t, s.Parties, 2)
	assert.True(t, s.Parties[0].Resolved.Equal(ledger.NewMoney(40_000)))
	assert.True(t, s.Parties[1].Resolved.Equal(ledger.NewMoney(40_000)))
}

func TestAllocator_Create_RequiresTwoParties(t *testing.T) {
	alloc, svc := newTestAllocator(t)
	ctx := context.Background()
	a := newSplitDebtor(t, svc, "A")

	_, err := alloc.Create(ctx, split.CreateInput{
		Name:        "solo",
		TotalAmount: ledger.NewMoney(10_000),
		Parties:     []split.Party{{DebtorID: a, SplitType: split.Equal}},
	})
	assert.True(t, ledger.IsValidation(err))
}

func TestAllocator_Settle_PostsDebtPerParty(t *testing.T) {
	// GIVEN: A resolved split across two debtors
	// WHEN: Settling
	// THEN: Each debtor receives one tagged debt transaction for their share

	alloc, svc := newTestAllocator(t)
	ctx := context.Background()

	a := newSplitDebtor(t, svc, "A")
	b := newSplitDebtor(t, svc, "B")

	s, err := alloc.Create(ctx, split.CreateInput{
		Name:        "shared stock order",
		TotalAmount: ledger.NewMoney(90_000),
		Parties: []split.Party{
			{DebtorID: a, SplitType: split.Equal},
			{DebtorID: b, SplitType: split.Fixed, Amount: moneyRef(30_000)},
		},
	})
	require.NoError(t, err)

	settled, err := alloc.Settle(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)
	require.NotNil(t, settled.SettledAt)

	da, err := svc.GetDebtor(ctx, a)
	require.NoError(t, err)
	assert.True(t, da.TotalDebt.Equal(ledger.NewMoney(60_000)))
	require.Len(t, da.Transactions, 1)
	assert.Contains(t, da.Transactions[0].Tags, "split")
	assert.Contains(t, da.Transactions[0].Description, "shared stock order")

	db, err := svc.GetDebtor(ctx, b)
	require.NoError(t, err)
	assert.True(t, db.TotalDebt.Equal(ledger.NewMoney(30_000)))
}

func TestAllocator_Settle_Twice_Rejected(t *testing.T) {
	alloc, svc := newTestAllocator(t)
	ctx := context.Background()

	a := newSplitDebtor(t, svc, "A")
	b := newSplitDebtor(t, svc, "B")

	s, err := alloc.Create(ctx, split.CreateInput{
		Name:        "order",
		TotalAmount: ledger.NewMoney(20_000),
		Parties: []split.Party{
			{DebtorID: a, SplitType: split.Equal},
			{DebtorID: b, SplitType: split.Equal},
		},
	})
	require.NoError(t, err)

	_, err = alloc.Settle(ctx, s.ID)
	require.NoError(t, err)

	_, err = alloc.Settle(ctx, s.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadySettled)

	da, err := svc.GetDebtor(ctx, a)
	require.NoError(t, err)
	assert.Len(t, da.Transactions, 1, "no double-post")
}

func TestAllocator_Settle_DeletedParty_SkippedNotFatal(t *testing.T) {
	// GIVEN: A split whose second party was deleted before settlement
	// WHEN: Settling
	// THEN: The surviving party is charged and the settlement completes

	alloc, svc := newTestAllocator(t)
	ctx := context.Background()

	a := newSplitDebtor(t, svc, "A")
	b := newSplitDebtor(t, svc, "B")

	s, err := alloc.Create(ctx, split.CreateInput{
		Name:        "order",
		TotalAmount: ledger.NewMoney(40_000),
		Parties: []split.Party{
			{DebtorID: a, SplitType: split.Equal},
			{DebtorID: b, SplitType: split.Equal},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDebtor(ctx, b))

	settled, err := alloc.Settle(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, settled.IsSettled)

	da, err := svc.GetDebtor(ctx, a)
	require.NoError(t, err)
	assert.True(t, da.TotalDebt.Equal(ledger.NewMoney(20_000)))
}
