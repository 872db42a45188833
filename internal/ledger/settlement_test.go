package ledger

import (
	"context"
	"testing"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleReceivable_Idempotent(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	r := smelt(t, svc, "a1", "AF/ALZ/0001", "1000")
	pay(t, svc, "a1", "AA/0001", "200")

	result, err := svc.SettleReceivable(ctx, r.Id)
	require.NoError(t, err)
	assert.True(t, result.WrittenOff.Equal(d("150")))
	assert.True(t, result.DebtBefore.Equal(d("150")))
	assert.True(t, result.DebtAfter.IsZero())
	assert.Equal(t, models.ReceivableStateSettled, result.Receivable.State)

	entries, err := db.ListLedgerEntries(ctx, "a1", store.ListOptions{})
	require.NoError(t, err)
	countBefore := len(entries)
	assert.Equal(t, models.EntryReceivableSettled, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(d("-150")))

	_, err = svc.SettleReceivable(ctx, r.Id)
	assert.ErrorIs(t, err, store.ErrAlreadySettled)

	entries, err = db.ListLedgerEntries(ctx, "a1", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, countBefore)
	assert.True(t, debtOf(t, db, "a1").IsZero())

	_, err = svc.SettleReceivable(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assertConservation(t, db, "a1")
}

func TestSettleReceivable_FloorsDebt(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	r := smelt(t, svc, "a1", "AF/ALZ/0001", "1000") // 350

	// Simulate a drifted cache below the receivable balance.
	alliance, err := db.GetAlliance(ctx, "a1")
	require.NoError(t, err)
	require.NoError(t, db.UpdateAllianceDebt(ctx, "a1", d("100"), alliance.Version))

	result, err := svc.SettleReceivable(ctx, r.Id)
	require.NoError(t, err)
	assert.True(t, result.WrittenOff.Equal(d("350")))
	assert.True(t, result.DebtAfter.IsZero())
	assert.False(t, debtOf(t, db, "a1").IsNegative())
}
