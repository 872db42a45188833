package ledger

import (
	"context"
	"fmt"
	"time"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettleReceivable force-closes a pending receivable, writing off whatever
// balance remains. Settling twice fails with ErrAlreadySettled and changes nothing.
func (s *Service) SettleReceivable(ctx context.Context, receivableId string) (result *models.SettlementResult, err error) {
	start := time.Now()
	defer func() { observe("settle_receivable", start, err) }()

	receivable, err := s.store.GetReceivable(ctx, receivableId)
	if err != nil {
		return nil, fmt.Errorf("failed to settle receivable: %w", err)
	}

	err = s.runInAllianceTx(ctx, "settle_receivable", receivable.AllianceId, func(ctx context.Context, tx store.Tx) error {
		result = nil

		receivable, err := tx.GetReceivable(ctx, receivableId)
		if err != nil {
			return err
		}
		if receivable.State == models.ReceivableStateSettled {
			return fmt.Errorf("%w: receivable %s", store.ErrAlreadySettled, receivable.Id)
		}

		alliance, err := tx.GetAlliance(ctx, receivable.AllianceId)
		if err != nil {
			return err
		}

		writeOff := decimal.Max(receivable.RemainingBalance, decimal.Zero)
		expectedVersion := receivable.Version
		receivable.RemainingBalance = decimal.Zero
		receivable.State = models.ReceivableStateSettled
		if err := tx.UpdateReceivable(ctx, receivable, expectedVersion); err != nil {
			return err
		}

		debtAfter := floorDebt(alliance.Id, alliance.DebtBalance, writeOff)
		if err := tx.UpdateAllianceDebt(ctx, alliance.Id, debtAfter, alliance.Version); err != nil {
			return err
		}

		err = tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			AllianceId:    alliance.Id,
			ReceivableId:  receivable.Id,
			Kind:          models.EntryReceivableSettled,
			Amount:        writeOff.Neg(),
			BalanceBefore: alliance.DebtBalance,
			BalanceAfter:  debtAfter,
			Description: describe(ctx, "Receivable %s settled, %s g written off",
				receivable.Reference, writeOff.StringFixed(2)),
		})
		if err != nil {
			return err
		}

		result = &models.SettlementResult{
			Receivable: *receivable,
			WrittenOff: writeOff,
			DebtBefore: alliance.DebtBalance,
			DebtAfter:  debtAfter,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle receivable %s: %w", receivableId, err)
	}

	AmountApplied.WithLabelValues("settlement").Add(result.WrittenOff.InexactFloat64())

	zap.L().Info("Receivable settled", operatorFields(ctx,
		zap.String("receivable_id", receivableId),
		zap.String("alliance_id", result.Receivable.AllianceId),
		zap.String("written_off", result.WrittenOff.String()),
		zap.String("debt_before", result.DebtBefore.String()),
		zap.String("debt_after", result.DebtAfter.String()))...)

	return result, nil
}
