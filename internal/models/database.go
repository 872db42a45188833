package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceivableState is the lifecycle state of a receivable (acta de cobranza)
type ReceivableState string

const (
	ReceivableStatePending ReceivableState = "PENDING"
	ReceivableStateSettled ReceivableState = "SETTLED"
)

// CreditState is the lifecycle state of a credit balance (saldo a favor)
type CreditState string

const (
	CreditStateAvailable     CreditState = "AVAILABLE"
	CreditStatePartiallyUsed CreditState = "PARTIALLY_USED"
	CreditStateExhausted     CreditState = "EXHAUSTED"
)

// EntryKind classifies an immutable ledger entry
type EntryKind string

const (
	EntryReceivableCreated EntryKind = "RECEIVABLE_CREATED"
	EntryPaymentApplied    EntryKind = "PAYMENT_APPLIED"
	EntryCreditGenerated   EntryKind = "CREDIT_GENERATED"
	EntryCreditApplied     EntryKind = "CREDIT_APPLIED"
	EntryReceivableSettled EntryKind = "RECEIVABLE_SETTLED"
	EntryDebtReconciled    EntryKind = "DEBT_RECONCILED"
)

// Alliance represents a member mining alliance and its cached aggregate debt
type Alliance struct {
	Id          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Rif         string          `db:"rif" json:"rif,omitempty"`
	DebtBalance decimal.Decimal `db:"debt_balance" json:"debt_balance"`
	Version     int64           `db:"version" json:"version"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// SmeltingRecord represents a finalized smelting (acta de fundición)
type SmeltingRecord struct {
	Id           string    `db:"id" json:"id"`
	AllianceId   string    `db:"alliance_id" json:"alliance_id"`
	RecordNumber string    `db:"record_number" json:"record_number"`
	SmeltedAt    time.Time `db:"smelted_at" json:"smelted_at"`
	Bars         []Bar     `json:"bars"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TotalGrossWeight sums the gross weight of every bar in the record
func (r *SmeltingRecord) TotalGrossWeight() decimal.Decimal {
	total := decimal.Zero
	for _, bar := range r.Bars {
		total = total.Add(bar.GrossWeight)
	}
	return total
}

// Bar is a single physical bar produced by a smelting
type Bar struct {
	Id               string          `db:"id" json:"id"`
	SmeltingRecordId string          `db:"smelting_record_id" json:"smelting_record_id"`
	BarNumber        int             `db:"bar_number" json:"bar_number"`
	GrossWeight      decimal.Decimal `db:"gross_weight" json:"gross_weight"`
	FineWeight       decimal.Decimal `db:"fine_weight" json:"fine_weight"`
	Purity           decimal.Decimal `db:"purity" json:"purity"`
	Seal             string          `db:"seal" json:"seal,omitempty"`
}

// Receivable is an amount owed by an alliance, generated from a smelting record
type Receivable struct {
	Id               string          `db:"id" json:"id"`
	AllianceId       string          `db:"alliance_id" json:"alliance_id"`
	SmeltingRecordId string          `db:"smelting_record_id" json:"smelting_record_id"`
	Reference        string          `db:"reference" json:"reference"`
	GrossWeight      decimal.Decimal `db:"gross_weight" json:"gross_weight"`
	Rate             decimal.Decimal `db:"rate" json:"rate"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	RemainingBalance decimal.Decimal `db:"remaining_balance" json:"remaining_balance"`
	State            ReceivableState `db:"state" json:"state"`
	Version          int64           `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// IsPending reports whether the receivable still has an outstanding balance
func (r *Receivable) IsPending() bool {
	return r.State == ReceivableStatePending && r.RemainingBalance.IsPositive()
}

// PaymentEvent is a physical gold delivery (acta de arrime) used to pay down debt
type PaymentEvent struct {
	Id           string          `db:"id" json:"id"`
	AllianceId   string          `db:"alliance_id" json:"alliance_id"`
	Nomenclature string          `db:"nomenclature" json:"nomenclature"`
	GrossAmount  decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	ReceivedAt   time.Time       `db:"received_at" json:"received_at"`
	AllocatedAt  *time.Time      `db:"allocated_at" json:"allocated_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Allocation links part of a payment event to the receivable it paid down
type Allocation struct {
	Id             string          `db:"id" json:"id"`
	PaymentEventId string          `db:"payment_event_id" json:"payment_event_id"`
	ReceivableId   string          `db:"receivable_id" json:"receivable_id"`
	AmountApplied  decimal.Decimal `db:"amount_applied" json:"amount_applied"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// CreditBalance is unapplied payment overflow held for later application
type CreditBalance struct {
	Id              string          `db:"id" json:"id"`
	AllianceId      string          `db:"alliance_id" json:"alliance_id"`
	PaymentEventId  string          `db:"payment_event_id" json:"payment_event_id,omitempty"`
	OriginalAmount  decimal.Decimal `db:"original_amount" json:"original_amount"`
	AvailableAmount decimal.Decimal `db:"available_amount" json:"available_amount"`
	State           CreditState     `db:"state" json:"state"`
	Description     string          `db:"description" json:"description"`
	Version         int64           `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	LastUsedAt      *time.Time      `db:"last_used_at" json:"last_used_at,omitempty"`
}

// CreditApplication records credit moved from a credit balance into a receivable
type CreditApplication struct {
	Id              string          `db:"id" json:"id"`
	CreditBalanceId string          `db:"credit_balance_id" json:"credit_balance_id"`
	ReceivableId    string          `db:"receivable_id" json:"receivable_id"`
	AmountApplied   decimal.Decimal `db:"amount_applied" json:"amount_applied"`
	Description     string          `db:"description" json:"description"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// LedgerEntry is an append-only audit record of one balance-affecting event
type LedgerEntry struct {
	Id              string          `db:"id" json:"id"`
	AllianceId      string          `db:"alliance_id" json:"alliance_id"`
	ReceivableId    string          `db:"receivable_id" json:"receivable_id,omitempty"`
	PaymentEventId  string          `db:"payment_event_id" json:"payment_event_id,omitempty"`
	CreditBalanceId string          `db:"credit_balance_id" json:"credit_balance_id,omitempty"`
	Kind            EntryKind       `db:"kind" json:"kind"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	Description     string          `db:"description" json:"description"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
