package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cobranza-ledger-go/internal/database"
	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testDatabaseConfig(path string) models.DatabaseConfig {
	return models.DatabaseConfig{
		Driver:          database.DriverMattn,
		Path:            path,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     10 * time.Second,
	}
}

func testLedgerConfig() models.LedgerConfig {
	cfg := models.DefaultLedgerConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetries = 10
	return cfg
}

func openTestStore(t *testing.T, path string) *database.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), testDatabaseConfig(path))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func setupLedger(t *testing.T) (*Service, *database.Service) {
	t.Helper()
	db := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	svc, err := NewService(db, testLedgerConfig())
	require.NoError(t, err)
	return svc, db
}

func createAlliance(t *testing.T, st store.Store, id string) {
	t.Helper()
	require.NoError(t, st.CreateAlliance(context.Background(), &models.Alliance{Id: id, Name: "Alianza " + id}))
}

// smelt records a smelting with a single bar and returns its receivable.
func smelt(t *testing.T, svc *Service, allianceId, recordNumber, gross string) *models.Receivable {
	t.Helper()
	result, err := svc.RecordSmelting(context.Background(), RecordSmeltingParams{
		AllianceId:   allianceId,
		RecordNumber: recordNumber,
		Bars:         []models.Bar{{GrossWeight: d(gross)}},
	})
	require.NoError(t, err)
	return &result.Receivable
}

// pay registers a payment event and allocates all of it with FIFO.
func pay(t *testing.T, svc *Service, allianceId, nomenclature, amount string) *models.AllocationResult {
	t.Helper()
	ctx := context.Background()
	event, err := svc.RegisterPaymentEvent(ctx, RegisterPaymentParams{
		AllianceId:   allianceId,
		Nomenclature: nomenclature,
		GrossAmount:  d(amount),
	})
	require.NoError(t, err)

	result, err := svc.AllocatePayment(ctx, allianceId, event.Id, d(amount), nil)
	require.NoError(t, err)
	return result
}

func debtOf(t *testing.T, st store.Store, allianceId string) decimal.Decimal {
	t.Helper()
	alliance, err := st.GetAlliance(context.Background(), allianceId)
	require.NoError(t, err)
	return alliance.DebtBalance
}

// assertConservation checks that the cached debt equals the sum of pending
// receivable balances, and that the ledger history replays to the same value.
func assertConservation(t *testing.T, st store.Store, allianceId string) {
	t.Helper()
	ctx := context.Background()

	alliance, err := st.GetAlliance(ctx, allianceId)
	require.NoError(t, err)

	pending, err := st.ListPendingReceivables(ctx, allianceId)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, r := range pending {
		assert.True(t, r.RemainingBalance.IsPositive(), "pending receivable %s has non-positive balance", r.Id)
		sum = sum.Add(r.RemainingBalance)
	}
	assert.True(t, alliance.DebtBalance.Equal(sum),
		"debt %s != sum of pending %s", alliance.DebtBalance.String(), sum.String())

	entries, err := st.ListLedgerEntries(ctx, allianceId, store.ListOptions{Limit: 500})
	require.NoError(t, err)
	replayed := decimal.Zero
	for _, e := range entries {
		if e.Kind == models.EntryCreditGenerated {
			assert.True(t, e.BalanceBefore.Equal(e.BalanceAfter), "credit generation changed debt")
			continue
		}
		replayed = replayed.Add(e.Amount)
		assert.True(t, e.BalanceAfter.Sub(e.BalanceBefore).Equal(e.Amount),
			"entry %s (%s): %s -> %s does not match amount %s",
			e.Id, e.Kind, e.BalanceBefore.String(), e.BalanceAfter.String(), e.Amount.String())
	}
	assert.True(t, alliance.DebtBalance.Equal(replayed),
		"debt %s != replayed ledger %s", alliance.DebtBalance.String(), replayed.String())
}

func TestNewService_Validation(t *testing.T) {
	db := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	t.Run("nil store", func(t *testing.T) {
		_, err := NewService(nil, testLedgerConfig())
		assert.Error(t, err)
	})

	t.Run("zero rate", func(t *testing.T) {
		cfg := testLedgerConfig()
		cfg.CollectionRate = decimal.Zero
		_, err := NewService(db, cfg)
		assert.Error(t, err)
	})

	t.Run("negative tolerance", func(t *testing.T) {
		cfg := testLedgerConfig()
		cfg.Tolerance = d("-0.01")
		_, err := NewService(db, cfg)
		assert.Error(t, err)
	})

	t.Run("recent limit defaults", func(t *testing.T) {
		cfg := testLedgerConfig()
		cfg.RecentEntriesLimit = 0
		svc, err := NewService(db, cfg)
		require.NoError(t, err)
		assert.Equal(t, 20, svc.Config().RecentEntriesLimit)
	})
}

func TestAllianceLocks(t *testing.T) {
	locks := newAllianceLocks()

	unlock, err := locks.lock(context.Background(), "a1")
	require.NoError(t, err)

	// A second holder must wait until the first releases.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.lock(ctx, "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Other alliances are independent.
	unlockOther, err := locks.lock(context.Background(), "a2")
	require.NoError(t, err)
	unlockOther()

	unlock()
	unlock2, err := locks.lock(context.Background(), "a1")
	require.NoError(t, err)
	unlock2()

	locks.mu.Lock()
	assert.Empty(t, locks.locks)
	locks.mu.Unlock()
}
