package ledger

import (
	"context"
	"testing"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAllocation(t *testing.T) {
	targets := []Target{
		{Receivable: models.Receivable{Id: "r1", RemainingBalance: d("100")}, Limit: d("100")},
		{Receivable: models.Receivable{Id: "r2", RemainingBalance: d("50")}, Limit: d("50")},
	}

	t.Run("partial second", func(t *testing.T) {
		plan := planAllocation(d("120"), targets)
		require.Len(t, plan.lines, 2)
		assert.True(t, plan.lines[0].apply.Equal(d("100")))
		assert.True(t, plan.lines[0].settles)
		assert.True(t, plan.lines[1].apply.Equal(d("20")))
		assert.True(t, plan.lines[1].after.Equal(d("30")))
		assert.False(t, plan.lines[1].settles)
		assert.True(t, plan.applied.Equal(d("120")))
		assert.True(t, plan.overflow.IsZero())
		assert.Equal(t, 1, plan.settled)
	})

	t.Run("overflow", func(t *testing.T) {
		plan := planAllocation(d("200"), targets)
		assert.True(t, plan.applied.Equal(d("150")))
		assert.True(t, plan.overflow.Equal(d("50")))
		assert.Equal(t, 2, plan.settled)
	})

	t.Run("no targets", func(t *testing.T) {
		plan := planAllocation(d("10"), nil)
		assert.Empty(t, plan.lines)
		assert.True(t, plan.applied.IsZero())
		assert.True(t, plan.overflow.Equal(d("10")))
	})

	t.Run("caps respected", func(t *testing.T) {
		capped := []Target{{Receivable: models.Receivable{Id: "r1", RemainingBalance: d("100")}, Limit: d("30")}}
		plan := planAllocation(d("50"), capped)
		require.Len(t, plan.lines, 1)
		assert.True(t, plan.lines[0].apply.Equal(d("30")))
		assert.True(t, plan.overflow.Equal(d("20")))
	})
}

func TestAllocatePayment_FIFOOrder(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	// 285.72 * 0.35 = 100.002 -> 100.00 ; 142.86 * 0.35 = 50.001 -> 50.00
	older := smelt(t, svc, "a1", "AF/ALZ/0001", "285.72")
	newer := smelt(t, svc, "a1", "AF/ALZ/0002", "142.86")
	require.True(t, older.TotalAmount.Equal(d("100")))
	require.True(t, newer.TotalAmount.Equal(d("50")))

	result := pay(t, svc, "a1", "AA/0001", "120")

	assert.Equal(t, StrategyFIFO, result.Strategy)
	assert.True(t, result.AppliedTotal.Equal(d("120")))
	assert.Nil(t, result.OverflowCredit)
	assert.Equal(t, 1, result.SettledCount)
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, older.Id, result.Allocations[0].ReceivableId)
	assert.Equal(t, newer.Id, result.Allocations[1].ReceivableId)

	r1, err := db.GetReceivable(ctx, older.Id)
	require.NoError(t, err)
	assert.True(t, r1.RemainingBalance.IsZero())
	assert.Equal(t, models.ReceivableStateSettled, r1.State)

	r2, err := db.GetReceivable(ctx, newer.Id)
	require.NoError(t, err)
	assert.True(t, r2.RemainingBalance.Equal(d("30")))
	assert.Equal(t, models.ReceivableStatePending, r2.State)

	assert.True(t, result.DebtBefore.Equal(d("150")))
	assert.True(t, result.DebtAfter.Equal(d("30")))
	assertConservation(t, db, "a1")
}

func TestAllocatePayment_OverflowToCredit(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	r := smelt(t, svc, "a1", "AF/ALZ/0001", "285.72")
	result := pay(t, svc, "a1", "AA/0001", "150")

	assert.True(t, result.AppliedTotal.Equal(d("100")))
	require.NotNil(t, result.OverflowCredit)
	credit := result.OverflowCredit
	assert.True(t, credit.OriginalAmount.Equal(d("50")))
	assert.True(t, credit.AvailableAmount.Equal(d("50")))
	assert.Equal(t, models.CreditStateAvailable, credit.State)
	assert.Equal(t, result.PaymentEventId, credit.PaymentEventId)

	stored, err := db.GetReceivable(ctx, r.Id)
	require.NoError(t, err)
	assert.Equal(t, models.ReceivableStateSettled, stored.State)

	// Conservation of the payment: applied + credit == amount
	assert.True(t, result.AppliedTotal.Add(credit.OriginalAmount).Equal(result.Amount))

	entries, err := db.ListLedgerEntries(ctx, "a1", store.ListOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.EntryCreditGenerated, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(d("50")))
	assert.Equal(t, credit.Id, entries[0].CreditBalanceId)

	assert.True(t, debtOf(t, db, "a1").IsZero())
	assertConservation(t, db, "a1")
}

func TestAllocatePayment_NoPendingReceivables(t *testing.T) {
	svc, db := setupLedger(t)
	createAlliance(t, db, "a1")

	result := pay(t, svc, "a1", "AA/0001", "75.5")
	assert.Empty(t, result.Allocations)
	assert.True(t, result.AppliedTotal.IsZero())
	require.NotNil(t, result.OverflowCredit)
	assert.True(t, result.OverflowCredit.AvailableAmount.Equal(d("75.5")))

	// Even with no debt change the alliance row is versioned.
	alliance, err := db.GetAlliance(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), alliance.Version)
	assertConservation(t, db, "a1")
}

func TestAllocatePayment_Rejections(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	createAlliance(t, db, "a2")
	smelt(t, svc, "a1", "AF/ALZ/0001", "1000")

	event, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("100")})
	require.NoError(t, err)

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, decimal.Zero, nil)
		assert.ErrorIs(t, err, store.ErrInvalidAmount)
	})

	t.Run("amount above payment", func(t *testing.T) {
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, d("100.01"), nil)
		assert.ErrorIs(t, err, store.ErrInvalidAmount)
	})

	t.Run("other alliance", func(t *testing.T) {
		_, err := svc.AllocatePayment(ctx, "a2", event.Id, d("50"), nil)
		assert.ErrorIs(t, err, store.ErrAllianceMismatch)
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, err := svc.AllocatePayment(ctx, "a1", "missing", d("50"), nil)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("allocated once", func(t *testing.T) {
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, d("100"), nil)
		require.NoError(t, err)
		_, err = svc.AllocatePayment(ctx, "a1", event.Id, d("100"), nil)
		assert.ErrorIs(t, err, store.ErrPaymentAlreadyAllocated)
	})

	assert.True(t, debtOf(t, db, "a1").Equal(d("250")))
	assertConservation(t, db, "a1")
}

func TestAllocatePayment_PartialAmountCreditsRemainder(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	r := smelt(t, svc, "a1", "AF/ALZ/0001", "1000") // 350

	event, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("200")})
	require.NoError(t, err)

	result, err := svc.AllocatePayment(ctx, "a1", event.Id, d("50"), nil)
	require.NoError(t, err)
	assert.True(t, result.AppliedTotal.Equal(d("50")))

	// The 150 g not allocated stays with the alliance as credit.
	require.NotNil(t, result.OverflowCredit)
	assert.True(t, result.OverflowCredit.OriginalAmount.Equal(d("150")))
	assert.True(t, result.AppliedTotal.Add(result.OverflowCredit.OriginalAmount).Equal(event.GrossAmount))

	stored, err := db.GetReceivable(ctx, r.Id)
	require.NoError(t, err)
	assert.True(t, stored.RemainingBalance.Equal(d("300")))

	storedEvent, err := db.GetPaymentEvent(ctx, event.Id)
	require.NoError(t, err)
	assert.NotNil(t, storedEvent.AllocatedAt)

	credits, err := db.ListAvailableCredits(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.True(t, credits[0].AvailableAmount.Equal(d("150")))

	assert.True(t, debtOf(t, db, "a1").Equal(d("300")))
	assertConservation(t, db, "a1")
}

func TestReceivePayment(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	smelt(t, svc, "a1", "AF/ALZ/0001", "285.72") // 100

	result, err := svc.ReceivePayment(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("120")}, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyFIFO, result.Strategy)
	assert.True(t, result.AppliedTotal.Equal(d("100")))
	require.NotNil(t, result.OverflowCredit)
	assert.True(t, result.OverflowCredit.AvailableAmount.Equal(d("20")))

	event, err := db.GetPaymentEvent(ctx, result.PaymentEventId)
	require.NoError(t, err)
	assert.Equal(t, "AA/0001", event.Nomenclature)
	assert.NotNil(t, event.AllocatedAt)

	pending, err := svc.ListUnallocatedPayments(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, pending)
	assertConservation(t, db, "a1")
}

func TestReceivePayment_RejectedLeavesNoEvent(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	smelt(t, svc, "a1", "AF/ALZ/0001", "285.72")

	missing := ManualStrategy{Selections: []Selection{{ReceivableId: "missing", Amount: d("10")}}}
	for i := 0; i < 3; i++ {
		_, err := svc.ReceivePayment(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("50")}, missing)
		require.ErrorIs(t, err, store.ErrNotFound)
	}

	faulty, err := NewService(&faultyStore{Store: db, failOn: 1}, testLedgerConfig())
	require.NoError(t, err)
	_, err = faulty.ReceivePayment(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0002", GrossAmount: d("50")}, nil)
	require.ErrorIs(t, err, errInjected)

	_, err = svc.ReceivePayment(ctx, RegisterPaymentParams{AllianceId: "missing", Nomenclature: "AA/0003", GrossAmount: d("50")}, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.ReceivePayment(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0004", GrossAmount: d("0")}, nil)
	require.ErrorIs(t, err, store.ErrInvalidAmount)

	events, err := db.ListUnallocatedPaymentEvents(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, events)

	credits, err := db.ListAvailableCredits(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, credits)
	assert.True(t, debtOf(t, db, "a1").Equal(d("100")))
	assertConservation(t, db, "a1")
}

func TestListUnallocatedPayments(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	first, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("10")})
	require.NoError(t, err)
	second, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0002", GrossAmount: d("20")})
	require.NoError(t, err)
	_, err = svc.AllocatePayment(ctx, "a1", first.Id, d("10"), nil)
	require.NoError(t, err)

	pending, err := svc.ListUnallocatedPayments(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.Id, pending[0].Id)

	_, err = svc.ListUnallocatedPayments(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterPaymentEvent_Validation(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	_, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/1", GrossAmount: d("-1")})
	assert.ErrorIs(t, err, store.ErrInvalidAmount)

	_, err = svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: " ", GrossAmount: d("1")})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "missing", Nomenclature: "AA/1", GrossAmount: d("1")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAllocatePayment_ManualStrategy(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	createAlliance(t, db, "a2")

	older := smelt(t, svc, "a1", "AF/ALZ/0001", "285.72") // 100
	newer := smelt(t, svc, "a1", "AF/ALZ/0002", "142.86") // 50
	foreign := smelt(t, svc, "a2", "AF/ALZ/0003", "142.86")

	event, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{AllianceId: "a1", Nomenclature: "AA/0001", GrossAmount: d("80")})
	require.NoError(t, err)

	t.Run("rejects receivable of another alliance", func(t *testing.T) {
		strategy := ManualStrategy{Selections: []Selection{{ReceivableId: foreign.Id, Amount: d("10")}}}
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, d("80"), strategy)
		assert.ErrorIs(t, err, store.ErrAllianceMismatch)
	})

	t.Run("rejects duplicate selection", func(t *testing.T) {
		strategy := ManualStrategy{Selections: []Selection{
			{ReceivableId: newer.Id, Amount: d("10")},
			{ReceivableId: newer.Id, Amount: d("10")},
		}}
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, d("80"), strategy)
		assert.ErrorIs(t, err, store.ErrInvalidArgument)
	})

	t.Run("rejects zero cap", func(t *testing.T) {
		strategy := ManualStrategy{Selections: []Selection{{ReceivableId: newer.Id, Amount: decimal.Zero}}}
		_, err := svc.AllocatePayment(ctx, "a1", event.Id, d("80"), strategy)
		assert.ErrorIs(t, err, store.ErrInvalidAmount)
	})

	// Pay the newer receivable first, capped at 40, then 25 on the older one.
	strategy := ManualStrategy{Selections: []Selection{
		{ReceivableId: newer.Id, Amount: d("40")},
		{ReceivableId: older.Id, Amount: d("25")},
	}}
	result, err := svc.AllocatePayment(ctx, "a1", event.Id, d("80"), strategy)
	require.NoError(t, err)

	assert.Equal(t, StrategyManual, result.Strategy)
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, newer.Id, result.Allocations[0].ReceivableId)
	assert.True(t, result.Allocations[0].Applied.Equal(d("40")))
	assert.Equal(t, older.Id, result.Allocations[1].ReceivableId)
	assert.True(t, result.Allocations[1].Applied.Equal(d("25")))
	require.NotNil(t, result.OverflowCredit)
	assert.True(t, result.OverflowCredit.AvailableAmount.Equal(d("15")))

	assert.True(t, debtOf(t, db, "a1").Equal(d("85")))
	assertConservation(t, db, "a1")
	assertConservation(t, db, "a2")
}

func TestPreviewAllocation_MatchesAllocation(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	smelt(t, svc, "a1", "AF/ALZ/0001", "285.72")
	smelt(t, svc, "a1", "AF/ALZ/0002", "142.86")

	before, err := db.ListLedgerEntries(ctx, "a1", store.ListOptions{})
	require.NoError(t, err)

	preview, err := svc.PreviewAllocation(ctx, "a1", d("170"), nil)
	require.NoError(t, err)
	assert.True(t, preview.AppliedTotal.Equal(d("150")))
	assert.True(t, preview.Overflow.Equal(d("20")))
	assert.Equal(t, 2, preview.SettledCount)
	require.Len(t, preview.Allocations, 2)
	assert.Empty(t, preview.Allocations[0].AllocationId)

	// Preview writes nothing.
	after, err := db.ListLedgerEntries(ctx, "a1", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.True(t, debtOf(t, db, "a1").Equal(d("150")))

	result := pay(t, svc, "a1", "AA/0001", "170")
	assert.True(t, result.AppliedTotal.Equal(preview.AppliedTotal))
	require.NotNil(t, result.OverflowCredit)
	assert.True(t, result.OverflowCredit.OriginalAmount.Equal(preview.Overflow))
	for i := range preview.Allocations {
		assert.Equal(t, preview.Allocations[i].ReceivableId, result.Allocations[i].ReceivableId)
		assert.True(t, preview.Allocations[i].Applied.Equal(result.Allocations[i].Applied))
	}

	_, err = svc.PreviewAllocation(ctx, "a1", d("0"), nil)
	assert.ErrorIs(t, err, store.ErrInvalidAmount)
	_, err = svc.PreviewAllocation(ctx, "missing", d("1"), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStrategyFor(t *testing.T) {
	s, err := StrategyFor("", nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyFIFO, s.Name())

	s, err = StrategyFor("", []Selection{{ReceivableId: "r1", Amount: d("1")}})
	require.NoError(t, err)
	assert.Equal(t, StrategyManual, s.Name())

	_, err = StrategyFor(StrategyFIFO, []Selection{{ReceivableId: "r1", Amount: d("1")}})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = StrategyFor("LIFO", nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}
