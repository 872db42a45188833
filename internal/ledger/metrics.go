package ledger

import (
	"errors"
	"time"

	"cobranza-ledger-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationsTotal counts ledger operations by name and outcome.
var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Total ledger operations by operation and outcome.",
}, []string{"operation", "outcome"})

// OperationDuration tracks end-to-end latency including retries.
var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "operation_duration_seconds",
	Help:      "Ledger operation latency in seconds, retries included.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// ConflictRetries counts transactions retried after a write conflict.
var ConflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "conflict_retries_total",
	Help:      "Total transaction retries caused by concurrent modification.",
}, []string{"operation"})

// AmountApplied sums grams applied against receivables by source.
var AmountApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "amount_applied_grams_total",
	Help:      "Total grams applied against receivables (payment, credit, settlement).",
}, []string{"source"})

// CreditGenerated sums payment overflow turned into credit balances.
var CreditGenerated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "credit_generated_grams_total",
	Help:      "Total grams of payment overflow converted into credit balances.",
})

// DebtFloorClips counts debt updates clipped at zero.
var DebtFloorClips = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "debt_floor_clips_total",
	Help:      "Total alliance debt updates that would have gone negative.",
})

// ReconcileCorrections counts alliances whose cached debt had drifted.
var ReconcileCorrections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cobranza",
	Subsystem: "ledger",
	Name:      "reconcile_drift_total",
	Help:      "Total alliances found with drifted debt, by mode (applied or dry_run).",
}, []string{"mode"})

func observe(operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	OperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrTransactionConflict):
		return "conflict"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, store.ErrAlreadySettled),
		errors.Is(err, store.ErrCreditExhausted),
		errors.Is(err, store.ErrAmountExceedsAvailable),
		errors.Is(err, store.ErrAmountExceedsReceivable),
		errors.Is(err, store.ErrDuplicateReceivable),
		errors.Is(err, store.ErrAllianceMismatch),
		errors.Is(err, store.ErrPaymentAlreadyAllocated):
		return "rejected"
	default:
		return "error"
	}
}
