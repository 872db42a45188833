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

// ApplyCredit moves amount from a credit balance into a receivable of the same
// alliance. Amounts up to the configured tolerance over the available credit or
// the receivable balance are accepted and clamped to the smaller of the two.
func (s *Service) ApplyCredit(ctx context.Context, creditBalanceId, receivableId string, amount decimal.Decimal, description string) (result *models.CreditApplicationResult, err error) {
	start := time.Now()
	defer func() { observe("apply_credit", start, err) }()

	credit, err := s.store.GetCreditBalance(ctx, creditBalanceId)
	if err != nil {
		return nil, fmt.Errorf("failed to apply credit: %w", err)
	}

	err = s.runInAllianceTx(ctx, "apply_credit", credit.AllianceId, func(ctx context.Context, tx store.Tx) error {
		result = nil

		credit, err := tx.GetCreditBalance(ctx, creditBalanceId)
		if err != nil {
			return err
		}
		if credit.State == models.CreditStateExhausted || !credit.AvailableAmount.IsPositive() {
			return fmt.Errorf("%w: %s", store.ErrCreditExhausted, credit.Id)
		}

		receivable, err := tx.GetReceivable(ctx, receivableId)
		if err != nil {
			return err
		}
		if !receivable.IsPending() {
			return fmt.Errorf("%w: receivable %s", store.ErrAlreadySettled, receivable.Id)
		}

		if !amount.IsPositive() {
			return fmt.Errorf("%w: credit amount %s", store.ErrInvalidAmount, amount.String())
		}
		if amount.GreaterThan(credit.AvailableAmount.Add(s.cfg.Tolerance)) {
			return &store.AmountExceededError{
				Kind:      store.ErrAmountExceedsAvailable,
				Requested: amount,
				Limit:     credit.AvailableAmount,
			}
		}
		if amount.GreaterThan(receivable.RemainingBalance.Add(s.cfg.Tolerance)) {
			return &store.AmountExceededError{
				Kind:      store.ErrAmountExceedsReceivable,
				Requested: amount,
				Limit:     receivable.RemainingBalance,
			}
		}
		if credit.AllianceId != receivable.AllianceId {
			return fmt.Errorf("%w: credit %s belongs to alliance %s, receivable %s to %s",
				store.ErrAllianceMismatch, credit.Id, credit.AllianceId, receivable.Id, receivable.AllianceId)
		}

		applied := decimal.Min(amount, credit.AvailableAmount, receivable.RemainingBalance)

		alliance, err := tx.GetAlliance(ctx, credit.AllianceId)
		if err != nil {
			return err
		}

		res := &models.CreditApplicationResult{
			CreditBefore:     *credit,
			ReceivableBefore: *receivable,
			DebtBefore:       alliance.DebtBalance,
		}

		paymentLabel := credit.Description
		if credit.PaymentEventId != "" {
			if event, err := tx.GetPaymentEvent(ctx, credit.PaymentEventId); err == nil {
				paymentLabel = event.Nomenclature
			}
		}
		applicationDescription := description
		if applicationDescription == "" {
			applicationDescription = fmt.Sprintf("Credit %s applied to receivable %s", paymentLabel, receivable.Reference)
		}

		application := &models.CreditApplication{
			CreditBalanceId: credit.Id,
			ReceivableId:    receivable.Id,
			AmountApplied:   applied,
			Description:     applicationDescription,
		}
		if err := tx.InsertCreditApplication(ctx, application); err != nil {
			return err
		}

		usedAt := time.Now().UTC()
		credit.AvailableAmount = credit.AvailableAmount.Sub(applied)
		credit.LastUsedAt = &usedAt
		if credit.AvailableAmount.IsPositive() {
			credit.State = models.CreditStatePartiallyUsed
		} else {
			credit.AvailableAmount = decimal.Zero
			credit.State = models.CreditStateExhausted
		}
		if err := tx.UpdateCreditBalance(ctx, credit, res.CreditBefore.Version); err != nil {
			return err
		}

		receivable.RemainingBalance = receivable.RemainingBalance.Sub(applied)
		if !receivable.RemainingBalance.IsPositive() {
			receivable.RemainingBalance = decimal.Zero
			receivable.State = models.ReceivableStateSettled
		}
		if err := tx.UpdateReceivable(ctx, receivable, res.ReceivableBefore.Version); err != nil {
			return err
		}

		debtAfter := floorDebt(alliance.Id, alliance.DebtBalance, applied)
		if err := tx.UpdateAllianceDebt(ctx, alliance.Id, debtAfter, alliance.Version); err != nil {
			return err
		}

		err = tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			AllianceId:      alliance.Id,
			ReceivableId:    receivable.Id,
			PaymentEventId:  credit.PaymentEventId,
			CreditBalanceId: credit.Id,
			Kind:            models.EntryCreditApplied,
			Amount:          applied.Neg(),
			BalanceBefore:   alliance.DebtBalance,
			BalanceAfter:    debtAfter,
			Description: describe(ctx, "Credit %s applied %s g to %s",
				paymentLabel, applied.StringFixed(2), receivable.Reference),
		})
		if err != nil {
			return err
		}

		res.Application = *application
		res.CreditAfter = *credit
		res.ReceivableAfter = *receivable
		res.NewCreditAvailable = credit.AvailableAmount
		res.NewReceivableBalance = receivable.RemainingBalance
		res.ReceivableSettled = receivable.State == models.ReceivableStateSettled
		res.DebtAfter = debtAfter
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply credit %s: %w", creditBalanceId, err)
	}

	AmountApplied.WithLabelValues("credit").Add(result.Application.AmountApplied.InexactFloat64())

	zap.L().Info("Credit applied", operatorFields(ctx,
		zap.String("credit_balance_id", creditBalanceId),
		zap.String("receivable_id", receivableId),
		zap.String("requested", amount.String()),
		zap.String("applied", result.Application.AmountApplied.String()),
		zap.String("credit_state", string(result.CreditAfter.State)),
		zap.String("credit_available", result.NewCreditAvailable.String()),
		zap.String("receivable_balance", result.NewReceivableBalance.String()),
		zap.String("debt_after", result.DebtAfter.String()))...)

	return result, nil
}
