package store

import (
	"context"
	"errors"
	"fmt"

	"cobranza-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations and the ledger services.
var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicateReceivable     = errors.New("receivable already exists for smelting record")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAlreadySettled          = errors.New("receivable already settled")
	ErrCreditExhausted         = errors.New("credit balance exhausted")
	ErrAmountExceedsAvailable  = errors.New("amount exceeds available credit")
	ErrAmountExceedsReceivable = errors.New("amount exceeds receivable balance")
	ErrTransactionConflict     = errors.New("transaction conflict")
	ErrAllianceMismatch        = errors.New("alliance mismatch")
	ErrPaymentAlreadyAllocated = errors.New("payment event already allocated")
	ErrDuplicateAlliance       = errors.New("alliance already exists")
	ErrInvalidArgument         = errors.New("invalid argument")
)

// AmountExceededError reports a validation failure together with the exact shortfall.
type AmountExceededError struct {
	Kind      error // ErrAmountExceedsAvailable or ErrAmountExceedsReceivable
	Requested decimal.Decimal
	Limit     decimal.Decimal
}

// Shortfall is how much the request goes over the limit.
func (e *AmountExceededError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Limit)
}

func (e *AmountExceededError) Error() string {
	return fmt.Sprintf("%s: requested %s, limit %s (over by %s)",
		e.Kind.Error(), e.Requested.StringFixed(2), e.Limit.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *AmountExceededError) Unwrap() error { return e.Kind }

// ListOptions paginates history queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// Querier holds every entity operation. It is satisfied both by the store itself
// (autocommit reads and collaborator writes) and by an open transaction.
type Querier interface {
	// --- Alliances ---
	CreateAlliance(ctx context.Context, alliance *models.Alliance) error
	GetAlliance(ctx context.Context, allianceId string) (*models.Alliance, error)
	ListAlliances(ctx context.Context) ([]models.Alliance, error)
	// UpdateAllianceDebt writes the new debt if the stored version still equals
	// expectedVersion, and bumps the version. ErrTransactionConflict otherwise.
	UpdateAllianceDebt(ctx context.Context, allianceId string, debt decimal.Decimal, expectedVersion int64) error

	// --- Smelting records ---
	InsertSmeltingRecord(ctx context.Context, record *models.SmeltingRecord) error
	GetSmeltingRecord(ctx context.Context, recordId string) (*models.SmeltingRecord, error)

	// --- Receivables ---
	InsertReceivable(ctx context.Context, receivable *models.Receivable) error
	GetReceivable(ctx context.Context, receivableId string) (*models.Receivable, error)
	GetReceivableBySmeltingRecord(ctx context.Context, recordId string) (*models.Receivable, error)
	// ListPendingReceivables returns PENDING receivables oldest first.
	ListPendingReceivables(ctx context.Context, allianceId string) ([]models.Receivable, error)
	UpdateReceivable(ctx context.Context, receivable *models.Receivable, expectedVersion int64) error

	// --- Payment events and allocations ---
	InsertPaymentEvent(ctx context.Context, event *models.PaymentEvent) error
	GetPaymentEvent(ctx context.Context, eventId string) (*models.PaymentEvent, error)
	// ListUnallocatedPaymentEvents returns registered deliveries not yet allocated, oldest first.
	ListUnallocatedPaymentEvents(ctx context.Context, allianceId string) ([]models.PaymentEvent, error)
	// MarkPaymentAllocated fails with ErrPaymentAlreadyAllocated when already marked.
	MarkPaymentAllocated(ctx context.Context, event *models.PaymentEvent) error
	InsertAllocation(ctx context.Context, allocation *models.Allocation) error
	ListAllocationsByReceivable(ctx context.Context, receivableId string) ([]models.Allocation, error)

	// --- Credit balances ---
	InsertCreditBalance(ctx context.Context, credit *models.CreditBalance) error
	GetCreditBalance(ctx context.Context, creditId string) (*models.CreditBalance, error)
	// ListAvailableCredits returns non-exhausted credits oldest first.
	ListAvailableCredits(ctx context.Context, allianceId string) ([]models.CreditBalance, error)
	UpdateCreditBalance(ctx context.Context, credit *models.CreditBalance, expectedVersion int64) error
	InsertCreditApplication(ctx context.Context, application *models.CreditApplication) error
	ListCreditApplicationsByReceivable(ctx context.Context, receivableId string) ([]models.CreditApplication, error)

	// --- Ledger entries ---
	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	// ListLedgerEntries returns entries newest first.
	ListLedgerEntries(ctx context.Context, allianceId string, opts ListOptions) ([]models.LedgerEntry, error)
}

// Tx is a Querier bound to one atomic transaction.
type Tx interface {
	Querier
}

// Store defines the contract every backend must satisfy.
type Store interface {
	Querier

	// RunInTx executes fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise; no partial state survives an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error
	Close()
}
