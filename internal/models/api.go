/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationLine describes how much of a payment went to one receivable
type AllocationLine struct {
	AllocationId  string          `json:"allocation_id,omitempty"`
	ReceivableId  string          `json:"receivable_id"`
	Reference     string          `json:"reference"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	Applied       decimal.Decimal `json:"applied"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Settled       bool            `json:"settled"`
}

// AllocationResult is returned after a payment event has been allocated
type AllocationResult struct {
	AllianceId     string           `json:"alliance_id"`
	PaymentEventId string           `json:"payment_event_id"`
	Strategy       string           `json:"strategy"`
	Amount         decimal.Decimal  `json:"amount"`
	AppliedTotal   decimal.Decimal  `json:"applied_total"`
	Allocations    []AllocationLine `json:"allocations"`
	OverflowCredit *CreditBalance   `json:"overflow_credit,omitempty"`
	SettledCount   int              `json:"settled_count"`
	DebtBefore     decimal.Decimal  `json:"debt_before"`
	DebtAfter      decimal.Decimal  `json:"debt_after"`
}

// AllocationPreview is the read-only simulation of an allocation
type AllocationPreview struct {
	AllianceId   string           `json:"alliance_id"`
	Strategy     string           `json:"strategy"`
	Amount       decimal.Decimal  `json:"amount"`
	AppliedTotal decimal.Decimal  `json:"applied_total"`
	Overflow     decimal.Decimal  `json:"overflow"`
	Allocations  []AllocationLine `json:"allocations"`
	SettledCount int              `json:"settled_count"`
}

// CreditApplicationResult carries the full before/after state of a credit application
type CreditApplicationResult struct {
	Application          CreditApplication `json:"application"`
	CreditBefore         CreditBalance     `json:"credit_before"`
	CreditAfter          CreditBalance     `json:"credit_after"`
	ReceivableBefore     Receivable        `json:"receivable_before"`
	ReceivableAfter      Receivable        `json:"receivable_after"`
	NewCreditAvailable   decimal.Decimal   `json:"new_credit_available"`
	NewReceivableBalance decimal.Decimal   `json:"new_receivable_balance"`
	ReceivableSettled    bool              `json:"receivable_settled"`
	DebtBefore           decimal.Decimal   `json:"debt_before"`
	DebtAfter            decimal.Decimal   `json:"debt_after"`
}

// AllianceBalance is the current debt position of an alliance
type AllianceBalance struct {
	Alliance             Alliance        `json:"alliance"`
	DebtBalance          decimal.Decimal `json:"debt_balance"`
	PendingReceivables   []Receivable    `json:"pending_receivables"`
	AvailableCredits     []CreditBalance `json:"available_credits"`
	TotalAvailableCredit decimal.Decimal `json:"total_available_credit"`
	RecentLedgerEntries  []LedgerEntry   `json:"recent_ledger_entries"`
}

// ReceivablePayment is one payment or credit that reduced a receivable
type ReceivablePayment struct {
	Source       string          `json:"source"` // "payment" or "credit"
	SourceId     string          `json:"source_id"`
	Nomenclature string          `json:"nomenclature,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	AppliedAt    time.Time       `json:"applied_at"`
}

// DebtCorrection is a drift found by reconciliation
type DebtCorrection struct {
	AllianceId string          `json:"alliance_id"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	Difference decimal.Decimal `json:"difference"`
}

// ReconcileResult summarizes a reconciliation run
type ReconcileResult struct {
	DryRun             bool             `json:"dry_run"`
	Checked            int              `json:"checked"`
	CorrectedAlliances []DebtCorrection `json:"corrected_alliances"`
}

// SettlementResult is returned after a receivable has been force-settled
type SettlementResult struct {
	Receivable Receivable      `json:"receivable"`
	WrittenOff decimal.Decimal `json:"written_off"`
	DebtBefore decimal.Decimal `json:"debt_before"`
	DebtAfter  decimal.Decimal `json:"debt_after"`
}

// SmeltingResult is returned after a smelting record has been registered
type SmeltingResult struct {
	SmeltingRecord SmeltingRecord `json:"smelting_record"`
	Receivable     Receivable     `json:"receivable"`
}
