package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cobranza-ledger-go/internal/database"
	"cobranza-ledger-go/internal/ledger"
	"cobranza-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (http.Handler, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverMattn,
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	svc, err := ledger.NewService(db, models.DefaultLedgerConfig())
	require.NoError(t, err)

	require.NoError(t, db.CreateAlliance(context.Background(), &models.Alliance{Id: "a1", Name: "Alianza Uno"}))

	server := NewServer(svc, db)
	server.EnableMetrics()
	return server.Handler(), db
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func smeltHTTP(t *testing.T, h http.Handler, recordNumber, gross string) models.Receivable {
	t.Helper()
	w := do(t, h, http.MethodPost, "/smelting-records", map[string]interface{}{
		"alliance_id":   "a1",
		"record_number": recordNumber,
		"bars":          []map[string]string{{"gross_weight": gross}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.SmeltingResult](t, w).Receivable
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestCollectionFlow(t *testing.T) {
	h, _ := setupServer(t)

	receivable := smeltHTTP(t, h, "AF/ALZ/0001", "1000")
	assert.True(t, receivable.TotalAmount.Equal(d("350")))
	assert.Equal(t, "CVM/GGP/GPM/0001", receivable.Reference)

	w := do(t, h, http.MethodPost, "/payments/preview", map[string]interface{}{"alliance_id": "a1", "amount": "400"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[models.AllocationPreview](t, w)
	assert.True(t, preview.Overflow.Equal(d("50")))

	w = do(t, h, http.MethodPost, "/payments", map[string]interface{}{
		"alliance_id":  "a1",
		"nomenclature": "AA/0001",
		"amount":       "400",
	}, operatorHeader, "ana")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	allocation := decode[models.AllocationResult](t, w)
	assert.True(t, allocation.AppliedTotal.Equal(d("350")))
	require.NotNil(t, allocation.OverflowCredit)
	assert.Equal(t, 1, allocation.SettledCount)

	second := smeltHTTP(t, h, "AF/ALZ/0002", "285.72")
	w = do(t, h, http.MethodPost, "/credits/"+allocation.OverflowCredit.Id+"/apply", map[string]interface{}{
		"receivable_id": second.Id,
		"amount":        "30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	applied := decode[models.CreditApplicationResult](t, w)
	assert.True(t, applied.NewCreditAvailable.Equal(d("20")))
	assert.True(t, applied.NewReceivableBalance.Equal(d("70")))

	w = do(t, h, http.MethodGet, "/alliances/a1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	balance := decode[models.AllianceBalance](t, w)
	assert.True(t, balance.DebtBalance.Equal(d("70")))
	assert.True(t, balance.TotalAvailableCredit.Equal(d("20")))

	w = do(t, h, http.MethodGet, "/alliances/a1/ledger?limit=50", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]models.LedgerEntry](t, w)
	found := false
	for _, entry := range entries {
		if entry.Kind == models.EntryPaymentApplied {
			assert.Contains(t, entry.Description, "(by ana)")
			found = true
		}
	}
	assert.True(t, found)

	w = do(t, h, http.MethodGet, "/receivables/"+receivable.Id+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ReceivablePayment](t, w), 1)

	w = do(t, h, http.MethodGet, "/alliances", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Alliance](t, w), 1)

	w = do(t, h, http.MethodPost, "/reconcile", map[string]interface{}{"dry_run": true})
	require.Equal(t, http.StatusOK, w.Code)
	reconcile := decode[models.ReconcileResult](t, w)
	assert.Empty(t, reconcile.CorrectedAlliances)

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "cobranza_ledger_operations_total"))
}

func TestErrorMapping(t *testing.T) {
	h, _ := setupServer(t)
	receivable := smeltHTTP(t, h, "AF/ALZ/0001", "100")

	w := do(t, h, http.MethodPost, "/receivables/"+receivable.Id+"/settle", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/payments", map[string]interface{}{"alliance_id": "a1", "nomenclature": "AA/0001", "amount": "10"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	credit := decode[models.AllocationResult](t, w).OverflowCredit
	require.NotNil(t, credit)
	open := smeltHTTP(t, h, "AF/ALZ/0002", "1000")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
		kind   string
	}{
		{"unknown receivable", http.MethodGet, "/receivables/missing", nil, http.StatusNotFound, "not_found"},
		{"unknown alliance", http.MethodGet, "/alliances/missing/balance", nil, http.StatusNotFound, "not_found"},
		{"settle twice", http.MethodPost, "/receivables/" + receivable.Id + "/settle", nil, http.StatusConflict, "already_settled"},
		{"duplicate receivable", http.MethodPost, "/receivables", map[string]string{"smelting_record_id": open.SmeltingRecordId}, http.StatusConflict, "duplicate"},
		{"negative payment", http.MethodPost, "/payments", map[string]interface{}{"alliance_id": "a1", "nomenclature": "AA/0002", "amount": "-1"}, http.StatusUnprocessableEntity, "invalid_amount"},
		{"unknown strategy", http.MethodPost, "/payments/preview", map[string]interface{}{"alliance_id": "a1", "amount": "1", "strategy": "LIFO"}, http.StatusBadRequest, "invalid_argument"},
		{"unknown field", http.MethodPost, "/reconcile", map[string]interface{}{"everything": true}, http.StatusBadRequest, "bad_request"},
		{"bad limit", http.MethodGet, "/alliances/a1/ledger?limit=ten", nil, http.StatusBadRequest, "bad_request"},
		{"credit over available", http.MethodPost, "/credits/" + credit.Id + "/apply", map[string]interface{}{"receivable_id": open.Id, "amount": "10.5"}, http.StatusUnprocessableEntity, "amount_exceeds_available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode[errorBody](t, w).Error.Type)
		})
	}

	w = do(t, h, http.MethodPost, "/credits/"+credit.Id+"/apply", map[string]interface{}{"receivable_id": open.Id, "amount": "10.5"})
	assert.Equal(t, "0.5", decode[errorBody](t, w).Error.Shortfall)
}

func TestRejectedPaymentLeavesNoEvent(t *testing.T) {
	h, _ := setupServer(t)
	smeltHTTP(t, h, "AF/ALZ/0001", "1000")

	body := map[string]interface{}{
		"alliance_id":  "a1",
		"nomenclature": "AA/0001",
		"amount":       "50",
		"strategy":     "MANUAL",
		"selections":   []map[string]string{{"receivable_id": "missing", "amount": "10"}},
	}
	for i := 0; i < 3; i++ {
		w := do(t, h, http.MethodPost, "/payments", body)
		require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	}

	w := do(t, h, http.MethodGet, "/alliances/a1/payments/unallocated", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode[[]models.PaymentEvent](t, w))

	w = do(t, h, http.MethodGet, "/alliances/a1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	balance := decode[models.AllianceBalance](t, w)
	assert.True(t, balance.DebtBalance.Equal(d("350")))
	assert.Empty(t, balance.AvailableCredits)
}
