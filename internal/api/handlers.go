package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cobranza-ledger-go/internal/ledger"
	"cobranza-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type smeltingRequest struct {
	AllianceId   string       `json:"alliance_id"`
	RecordNumber string       `json:"record_number"`
	SmeltedAt    time.Time    `json:"smelted_at"`
	Bars         []models.Bar `json:"bars"`
}

type receivableRequest struct {
	SmeltingRecordId string `json:"smelting_record_id"`
}

// paymentRequest registers a new delivery and allocates it, or allocates an
// already registered one when PaymentEventId is set.
type paymentRequest struct {
	AllianceId     string             `json:"alliance_id"`
	PaymentEventId string             `json:"payment_event_id"`
	Nomenclature   string             `json:"nomenclature"`
	Amount         decimal.Decimal    `json:"amount"`
	ReceivedAt     time.Time          `json:"received_at"`
	Strategy       string             `json:"strategy"`
	Selections     []ledger.Selection `json:"selections"`
}

type previewRequest struct {
	AllianceId string             `json:"alliance_id"`
	Amount     decimal.Decimal    `json:"amount"`
	Strategy   string             `json:"strategy"`
	Selections []ledger.Selection `json:"selections"`
}

type creditRequest struct {
	ReceivableId string          `json:"receivable_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

type reconcileRequest struct {
	AllianceId string `json:"alliance_id"`
	DryRun     bool   `json:"dry_run"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAlliances(w http.ResponseWriter, r *http.Request) {
	alliances, err := s.ledger.ListAlliances(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alliances)
}

func (s *Server) handleAllianceBalance(w http.ResponseWriter, r *http.Request) {
	recent, err := queryInt(r, "recent", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.ledger.GetAllianceBalance(r.Context(), chi.URLParam(r, "id"), recent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleLedgerEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.ledger.ListLedgerEntries(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRecordSmelting(w http.ResponseWriter, r *http.Request) {
	var req smeltingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.ledger.RecordSmelting(r.Context(), ledger.RecordSmeltingParams{
		AllianceId:   req.AllianceId,
		RecordNumber: req.RecordNumber,
		SmeltedAt:    req.SmeltedAt,
		Bars:         req.Bars,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCreateReceivable(w http.ResponseWriter, r *http.Request) {
	var req receivableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	receivable, err := s.ledger.CreateReceivable(r.Context(), req.SmeltingRecordId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receivable)
}

func (s *Server) handleGetReceivable(w http.ResponseWriter, r *http.Request) {
	receivable, err := s.ledger.GetReceivable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receivable)
}

func (s *Server) handleSettleReceivable(w http.ResponseWriter, r *http.Request) {
	result, err := s.ledger.SettleReceivable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReceivablePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.ListReceivablePayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleUnallocatedPayments(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.ListUnallocatedPayments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAllocatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	strategy, err := ledger.StrategyFor(req.Strategy, req.Selections)
	if err != nil {
		writeError(w, err)
		return
	}

	var result *models.AllocationResult
	if req.PaymentEventId == "" {
		result, err = s.ledger.ReceivePayment(r.Context(), ledger.RegisterPaymentParams{
			AllianceId:   req.AllianceId,
			Nomenclature: req.Nomenclature,
			GrossAmount:  req.Amount,
			ReceivedAt:   req.ReceivedAt,
		}, strategy)
	} else {
		result, err = s.ledger.AllocatePayment(r.Context(), req.AllianceId, req.PaymentEventId, req.Amount, strategy)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handlePreviewAllocation(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	strategy, err := ledger.StrategyFor(req.Strategy, req.Selections)
	if err != nil {
		writeError(w, err)
		return
	}
	preview, err := s.ledger.PreviewAllocation(r.Context(), req.AllianceId, req.Amount, strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	credit, err := s.ledger.GetCreditBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, credit)
}

func (s *Server) handleApplyCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.ledger.ApplyCredit(r.Context(), chi.URLParam(r, "id"), req.ReceivableId, req.Amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	result, err := s.ledger.Reconcile(r.Context(), req.AllianceId, req.DryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadRequest, key, value)
	}
	return n, nil
}
