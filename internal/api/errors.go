package api

import (
	"errors"
	"net/http"

	"cobranza-ledger-go/internal/store"

	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Shortfall string `json:"shortfall,omitempty"`
}

// statusFor maps ledger error kinds to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, store.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, store.ErrAmountExceedsAvailable):
		return http.StatusUnprocessableEntity, "amount_exceeds_available"
	case errors.Is(err, store.ErrAmountExceedsReceivable):
		return http.StatusUnprocessableEntity, "amount_exceeds_receivable"
	case errors.Is(err, store.ErrCreditExhausted):
		return http.StatusUnprocessableEntity, "credit_exhausted"
	case errors.Is(err, store.ErrAllianceMismatch):
		return http.StatusUnprocessableEntity, "alliance_mismatch"
	case errors.Is(err, store.ErrDuplicateReceivable), errors.Is(err, store.ErrDuplicateAlliance):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, store.ErrAlreadySettled):
		return http.StatusConflict, "already_settled"
	case errors.Is(err, store.ErrPaymentAlreadyAllocated):
		return http.StatusConflict, "payment_already_allocated"
	case errors.Is(err, store.ErrTransactionConflict):
		return http.StatusConflict, "transaction_conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	detail := errorDetail{Message: err.Error(), Type: kind}

	var exceeded *store.AmountExceededError
	if errors.As(err, &exceeded) {
		detail.Shortfall = exceeded.Shortfall().String()
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.Error(err))
		detail.Message = "internal error"
	}
	writeJSON(w, status, errorBody{Error: detail})
}
