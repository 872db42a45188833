package ledger

import (
	"context"
	"testing"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func driftDebt(t *testing.T, st store.Store, allianceId, debt string) {
	t.Helper()
	ctx := context.Background()
	alliance, err := st.GetAlliance(ctx, allianceId)
	require.NoError(t, err)
	require.NoError(t, st.UpdateAllianceDebt(ctx, allianceId, d(debt), alliance.Version))
}

func TestReconcile_CorrectsDrift(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")
	createAlliance(t, db, "a2")

	smelt(t, svc, "a1", "AF/ALZ/0001", "1000") // 350
	smelt(t, svc, "a2", "AF/ALZ/0002", "100")  // 35
	pay(t, svc, "a1", "AA/0001", "200")        // a1 -> 150

	driftDebt(t, db, "a1", "175.5")

	t.Run("dry run reports without writing", func(t *testing.T) {
		result, err := svc.Reconcile(ctx, "", true)
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.Equal(t, 2, result.Checked)
		require.Len(t, result.CorrectedAlliances, 1)
		c := result.CorrectedAlliances[0]
		assert.Equal(t, "a1", c.AllianceId)
		assert.True(t, c.Before.Equal(d("175.5")))
		assert.True(t, c.After.Equal(d("150")))
		assert.True(t, c.Difference.Equal(d("-25.5")))

		assert.True(t, debtOf(t, db, "a1").Equal(d("175.5")))
	})

	t.Run("applies correction", func(t *testing.T) {
		result, err := svc.Reconcile(ctx, "a1", false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Checked)
		require.Len(t, result.CorrectedAlliances, 1)

		assert.True(t, debtOf(t, db, "a1").Equal(d("150")))

		entries, err := db.ListLedgerEntries(ctx, "a1", store.ListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.EntryDebtReconciled, entries[0].Kind)
		assert.True(t, entries[0].Amount.Equal(d("-25.5")))
	})

	t.Run("clean run finds nothing", func(t *testing.T) {
		result, err := svc.Reconcile(ctx, "", false)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		assert.Empty(t, result.CorrectedAlliances)
	})

	_, err := svc.Reconcile(ctx, "missing", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetAllianceBalance(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()
	createAlliance(t, db, "a1")

	smelt(t, svc, "a1", "AF/ALZ/0001", "285.72") // 100
	pay(t, svc, "a1", "AA/0001", "130")          // settles, credit 30
	second := smelt(t, svc, "a1", "AF/ALZ/0002", "142.86")
	pay(t, svc, "a1", "AA/0002", "5") // second -> 45

	balance, err := svc.GetAllianceBalance(ctx, "a1", 0)
	require.NoError(t, err)
	assert.True(t, balance.DebtBalance.Equal(d("45")))
	require.Len(t, balance.PendingReceivables, 1)
	assert.Equal(t, second.Id, balance.PendingReceivables[0].Id)
	require.Len(t, balance.AvailableCredits, 1)
	assert.True(t, balance.TotalAvailableCredit.Equal(d("30")))
	assert.NotEmpty(t, balance.RecentLedgerEntries)

	limited, err := svc.GetAllianceBalance(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Len(t, limited.RecentLedgerEntries, 2)

	history, err := svc.ListLedgerEntries(ctx, "a1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	payments, err := svc.ListReceivablePayments(ctx, second.Id)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "payment", payments[0].Source)
	assert.Equal(t, "AA/0002", payments[0].Nomenclature)
	assert.True(t, payments[0].Amount.Equal(d("5")))

	_, err = svc.GetAllianceBalance(ctx, "missing", 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
