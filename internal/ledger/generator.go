package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordSmeltingParams describes a finalized smelting with its bars.
type RecordSmeltingParams struct {
	AllianceId   string
	RecordNumber string
	SmeltedAt    time.Time
	Bars         []models.Bar
}

// RecordSmelting stores a smelting record and generates its receivable in the
// same transaction.
func (s *Service) RecordSmelting(ctx context.Context, params RecordSmeltingParams) (result *models.SmeltingResult, err error) {
	start := time.Now()
	defer func() { observe("record_smelting", start, err) }()

	if params.AllianceId == "" {
		return nil, fmt.Errorf("%w: alliance id is required", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(params.RecordNumber) == "" {
		return nil, fmt.Errorf("%w: record number is required", store.ErrInvalidArgument)
	}
	if len(params.Bars) == 0 {
		return nil, fmt.Errorf("%w: smelting record has no bars", store.ErrInvalidAmount)
	}
	for i, bar := range params.Bars {
		if !bar.GrossWeight.IsPositive() {
			return nil, fmt.Errorf("%w: bar %d gross weight %s", store.ErrInvalidAmount, i+1, bar.GrossWeight.String())
		}
	}

	err = s.runInAllianceTx(ctx, "record_smelting", params.AllianceId, func(ctx context.Context, tx store.Tx) error {
		result = nil

		record := &models.SmeltingRecord{
			AllianceId:   params.AllianceId,
			RecordNumber: strings.TrimSpace(params.RecordNumber),
			SmeltedAt:    params.SmeltedAt,
			Bars:         append([]models.Bar(nil), params.Bars...),
		}
		if _, err := tx.GetAlliance(ctx, record.AllianceId); err != nil {
			return err
		}
		if err := tx.InsertSmeltingRecord(ctx, record); err != nil {
			return err
		}

		receivable, err := s.createReceivableTx(ctx, tx, record)
		if err != nil {
			return err
		}

		result = &models.SmeltingResult{SmeltingRecord: *record, Receivable: *receivable}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record smelting: %w", err)
	}
	return result, nil
}

// CreateReceivable generates the receivable for an existing smelting record.
func (s *Service) CreateReceivable(ctx context.Context, smeltingRecordId string) (receivable *models.Receivable, err error) {
	start := time.Now()
	defer func() { observe("create_receivable", start, err) }()

	record, err := s.store.GetSmeltingRecord(ctx, smeltingRecordId)
	if err != nil {
		return nil, fmt.Errorf("failed to create receivable: %w", err)
	}

	err = s.runInAllianceTx(ctx, "create_receivable", record.AllianceId, func(ctx context.Context, tx store.Tx) error {
		receivable = nil

		record, err := tx.GetSmeltingRecord(ctx, smeltingRecordId)
		if err != nil {
			return err
		}
		receivable, err = s.createReceivableTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create receivable: %w", err)
	}
	return receivable, nil
}

func (s *Service) createReceivableTx(ctx context.Context, tx store.Tx, record *models.SmeltingRecord) (*models.Receivable, error) {
	existing, err := tx.GetReceivableBySmeltingRecord(ctx, record.Id)
	if err == nil {
		return nil, fmt.Errorf("%w: smelting record %s already has receivable %s",
			store.ErrDuplicateReceivable, record.Id, existing.Id)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	gross := record.TotalGrossWeight()
	if !gross.IsPositive() {
		return nil, fmt.Errorf("%w: total gross weight %s", store.ErrInvalidAmount, gross.String())
	}
	total := gross.Mul(s.cfg.CollectionRate).Round(2)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: receivable amount rounds to %s", store.ErrInvalidAmount, total.StringFixed(2))
	}

	alliance, err := tx.GetAlliance(ctx, record.AllianceId)
	if err != nil {
		return nil, err
	}

	receivable := &models.Receivable{
		AllianceId:       record.AllianceId,
		SmeltingRecordId: record.Id,
		Reference:        BuildReference(s.cfg.ReferencePrefix, record.RecordNumber),
		GrossWeight:      gross,
		Rate:             s.cfg.CollectionRate,
		TotalAmount:      total,
		RemainingBalance: total,
		State:            models.ReceivableStatePending,
	}
	if err := tx.InsertReceivable(ctx, receivable); err != nil {
		return nil, err
	}

	debtBefore := alliance.DebtBalance
	debtAfter := debtBefore.Add(total)
	if err := tx.UpdateAllianceDebt(ctx, alliance.Id, debtAfter, alliance.Version); err != nil {
		return nil, err
	}

	err = tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
		AllianceId:    alliance.Id,
		ReceivableId:  receivable.Id,
		Kind:          models.EntryReceivableCreated,
		Amount:        total,
		BalanceBefore: debtBefore,
		BalanceAfter:  debtAfter,
		Description: describe(ctx, "Receivable %s generated from smelting %s (%s g x %s)",
			receivable.Reference, record.RecordNumber, gross.String(), s.cfg.CollectionRate.String()),
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Receivable created", operatorFields(ctx,
		zap.String("receivable_id", receivable.Id),
		zap.String("alliance_id", alliance.Id),
		zap.String("reference", receivable.Reference),
		zap.String("gross_weight", gross.String()),
		zap.String("amount", total.String()),
		zap.String("debt_before", debtBefore.String()),
		zap.String("debt_after", debtAfter.String()))...)

	return receivable, nil
}

// BuildReference derives the receivable reference from a smelting record
// number: the prefix followed by the number's segments from the third on.
// Numbers with fewer than three segments are appended whole.
func BuildReference(prefix, recordNumber string) string {
	recordNumber = strings.TrimSpace(recordNumber)
	suffix := recordNumber
	if parts := strings.Split(recordNumber, "/"); len(parts) >= 3 {
		suffix = strings.Join(parts[2:], "/")
	}

	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

// ReceivableAmount returns what a smelting of grossWeight would owe.
func (s *Service) ReceivableAmount(grossWeight decimal.Decimal) decimal.Decimal {
	return grossWeight.Mul(s.cfg.CollectionRate).Round(2)
}
