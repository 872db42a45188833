package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RegisterPaymentParams describes an incoming gold delivery.
type RegisterPaymentParams struct {
	AllianceId   string
	Nomenclature string
	GrossAmount  decimal.Decimal
	ReceivedAt   time.Time
}

// RegisterPaymentEvent records a delivery so it can later be allocated once.
func (s *Service) RegisterPaymentEvent(ctx context.Context, params RegisterPaymentParams) (event *models.PaymentEvent, err error) {
	start := time.Now()
	defer func() { observe("register_payment", start, err) }()

	if !params.GrossAmount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount %s", store.ErrInvalidAmount, params.GrossAmount.String())
	}
	if strings.TrimSpace(params.Nomenclature) == "" {
		return nil, fmt.Errorf("%w: nomenclature is required", store.ErrInvalidArgument)
	}
	if _, err := s.store.GetAlliance(ctx, params.AllianceId); err != nil {
		return nil, fmt.Errorf("failed to register payment event: %w", err)
	}

	event = &models.PaymentEvent{
		AllianceId:   params.AllianceId,
		Nomenclature: strings.TrimSpace(params.Nomenclature),
		GrossAmount:  params.GrossAmount,
		ReceivedAt:   params.ReceivedAt,
	}
	if err := s.store.InsertPaymentEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to register payment event: %w", err)
	}

	zap.L().Info("Payment event registered", operatorFields(ctx,
		zap.String("payment_event_id", event.Id),
		zap.String("alliance_id", event.AllianceId),
		zap.String("nomenclature", event.Nomenclature),
		zap.String("amount", event.GrossAmount.String()))...)
	return event, nil
}

// AllocatePayment distributes amount of a registered payment event across the
// alliance's receivables chosen by strategy (FIFO when nil). The part of the
// delivery that no receivable absorbs, including any gross weight beyond
// amount, becomes a credit balance. The whole allocation is one transaction.
func (s *Service) AllocatePayment(ctx context.Context, allianceId, paymentEventId string, amount decimal.Decimal, strategy Strategy) (result *models.AllocationResult, err error) {
	start := time.Now()
	defer func() { observe("allocate_payment", start, err) }()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: allocation amount %s", store.ErrInvalidAmount, amount.String())
	}
	if strategy == nil {
		strategy = FIFOStrategy{}
	}

	err = s.runInAllianceTx(ctx, "allocate_payment", allianceId, func(ctx context.Context, tx store.Tx) error {
		result = nil

		event, err := tx.GetPaymentEvent(ctx, paymentEventId)
		if err != nil {
			return err
		}
		result, err = s.allocateTx(ctx, tx, allianceId, event, amount, strategy)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate payment %s: %w", paymentEventId, err)
	}

	s.recordAllocation(ctx, result)
	return result, nil
}

// ReceivePayment registers a delivery and allocates all of it in a single
// transaction, so a rejected allocation leaves no payment event behind.
func (s *Service) ReceivePayment(ctx context.Context, params RegisterPaymentParams, strategy Strategy) (result *models.AllocationResult, err error) {
	start := time.Now()
	defer func() { observe("receive_payment", start, err) }()

	if !params.GrossAmount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount %s", store.ErrInvalidAmount, params.GrossAmount.String())
	}
	if strings.TrimSpace(params.Nomenclature) == "" {
		return nil, fmt.Errorf("%w: nomenclature is required", store.ErrInvalidArgument)
	}
	if params.AllianceId == "" {
		return nil, fmt.Errorf("%w: alliance id is required", store.ErrInvalidArgument)
	}
	if strategy == nil {
		strategy = FIFOStrategy{}
	}

	err = s.runInAllianceTx(ctx, "receive_payment", params.AllianceId, func(ctx context.Context, tx store.Tx) error {
		result = nil

		event := &models.PaymentEvent{
			AllianceId:   params.AllianceId,
			Nomenclature: strings.TrimSpace(params.Nomenclature),
			GrossAmount:  params.GrossAmount,
			ReceivedAt:   params.ReceivedAt,
		}
		if _, err := tx.GetAlliance(ctx, event.AllianceId); err != nil {
			return err
		}
		if err := tx.InsertPaymentEvent(ctx, event); err != nil {
			return err
		}

		var err error
		result, err = s.allocateTx(ctx, tx, params.AllianceId, event, params.GrossAmount, strategy)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive payment %s: %w", params.Nomenclature, err)
	}

	s.recordAllocation(ctx, result)
	return result, nil
}

// allocateTx applies amount of event inside tx and marks the event allocated.
// Credit is generated for gross weight minus what the receivables absorbed.
func (s *Service) allocateTx(ctx context.Context, tx store.Tx, allianceId string, event *models.PaymentEvent, amount decimal.Decimal, strategy Strategy) (*models.AllocationResult, error) {
	alliance, err := tx.GetAlliance(ctx, allianceId)
	if err != nil {
		return nil, err
	}
	if event.AllianceId != allianceId {
		return nil, fmt.Errorf("%w: payment event %s belongs to alliance %s, not %s",
			store.ErrAllianceMismatch, event.Id, event.AllianceId, allianceId)
	}
	if event.AllocatedAt != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrPaymentAlreadyAllocated, event.Id)
	}
	if amount.GreaterThan(event.GrossAmount) {
		return nil, fmt.Errorf("%w: amount %s exceeds payment event gross %s",
			store.ErrInvalidAmount, amount.String(), event.GrossAmount.String())
	}

	targets, err := strategy.Targets(ctx, tx, allianceId)
	if err != nil {
		return nil, err
	}
	plan := planAllocation(amount, targets)
	credited := event.GrossAmount.Sub(plan.applied)

	res := &models.AllocationResult{
		AllianceId:     allianceId,
		PaymentEventId: event.Id,
		Strategy:       strategy.Name(),
		Amount:         amount,
		AppliedTotal:   plan.applied,
		SettledCount:   plan.settled,
		DebtBefore:     alliance.DebtBalance,
	}

	debt := alliance.DebtBalance
	for _, line := range plan.lines {
		allocation := &models.Allocation{
			PaymentEventId: event.Id,
			ReceivableId:   line.receivable.Id,
			AmountApplied:  line.apply,
		}
		if err := tx.InsertAllocation(ctx, allocation); err != nil {
			return nil, err
		}

		receivable := line.receivable
		receivable.RemainingBalance = line.after
		if line.settles {
			receivable.RemainingBalance = decimal.Zero
			receivable.State = models.ReceivableStateSettled
		}
		if err := tx.UpdateReceivable(ctx, &receivable, line.receivable.Version); err != nil {
			return nil, err
		}

		debtAfter := floorDebt(allianceId, debt, line.apply)
		err := tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			AllianceId:     allianceId,
			ReceivableId:   receivable.Id,
			PaymentEventId: event.Id,
			Kind:           models.EntryPaymentApplied,
			Amount:         line.apply.Neg(),
			BalanceBefore:  debt,
			BalanceAfter:   debtAfter,
			Description: describe(ctx, "Payment %s applied %s g to %s",
				event.Nomenclature, line.apply.StringFixed(2), receivable.Reference),
		})
		if err != nil {
			return nil, err
		}
		debt = debtAfter

		res.Allocations = append(res.Allocations, line.toAllocationLine(allocation.Id))
	}

	if credited.IsPositive() {
		credit := &models.CreditBalance{
			AllianceId:      allianceId,
			PaymentEventId:  event.Id,
			OriginalAmount:  credited,
			AvailableAmount: credited,
			State:           models.CreditStateAvailable,
			Description:     fmt.Sprintf("Overflow of payment %s", event.Nomenclature),
		}
		if err := tx.InsertCreditBalance(ctx, credit); err != nil {
			return nil, err
		}
		err := tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			AllianceId:      allianceId,
			PaymentEventId:  event.Id,
			CreditBalanceId: credit.Id,
			Kind:            models.EntryCreditGenerated,
			Amount:          credited,
			BalanceBefore:   debt,
			BalanceAfter:    debt,
			Description: describe(ctx, "Credit of %s g generated from payment %s",
				credited.StringFixed(2), event.Nomenclature),
		})
		if err != nil {
			return nil, err
		}
		res.OverflowCredit = credit
	}

	if err := tx.MarkPaymentAllocated(ctx, event); err != nil {
		return nil, err
	}
	if err := tx.UpdateAllianceDebt(ctx, allianceId, debt, alliance.Version); err != nil {
		return nil, err
	}

	res.DebtAfter = debt
	return res, nil
}

func (s *Service) recordAllocation(ctx context.Context, result *models.AllocationResult) {
	AmountApplied.WithLabelValues("payment").Add(result.AppliedTotal.InexactFloat64())
	if result.OverflowCredit != nil {
		CreditGenerated.Add(result.OverflowCredit.OriginalAmount.InexactFloat64())
	}

	zap.L().Info("Payment allocated", operatorFields(ctx,
		zap.String("alliance_id", result.AllianceId),
		zap.String("payment_event_id", result.PaymentEventId),
		zap.String("strategy", result.Strategy),
		zap.String("amount", result.Amount.String()),
		zap.String("applied", result.AppliedTotal.String()),
		zap.Int("allocations", len(result.Allocations)),
		zap.Int("settled", result.SettledCount),
		zap.Bool("overflow_credit", result.OverflowCredit != nil),
		zap.String("debt_before", result.DebtBefore.String()),
		zap.String("debt_after", result.DebtAfter.String()))...)
}

// PreviewAllocation simulates AllocatePayment without writing anything.
func (s *Service) PreviewAllocation(ctx context.Context, allianceId string, amount decimal.Decimal, strategy Strategy) (preview *models.AllocationPreview, err error) {
	start := time.Now()
	defer func() { observe("preview_allocation", start, err) }()

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: allocation amount %s", store.ErrInvalidAmount, amount.String())
	}
	if strategy == nil {
		strategy = FIFOStrategy{}
	}

	if _, err := s.store.GetAlliance(ctx, allianceId); err != nil {
		return nil, fmt.Errorf("failed to preview allocation: %w", err)
	}
	targets, err := strategy.Targets(ctx, s.store, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to preview allocation: %w", err)
	}
	plan := planAllocation(amount, targets)

	preview = &models.AllocationPreview{
		AllianceId:   allianceId,
		Strategy:     strategy.Name(),
		Amount:       amount,
		AppliedTotal: plan.applied,
		Overflow:     plan.overflow,
		SettledCount: plan.settled,
		Allocations:  make([]models.AllocationLine, 0, len(plan.lines)),
	}
	for _, line := range plan.lines {
		preview.Allocations = append(preview.Allocations, line.toAllocationLine(""))
	}
	return preview, nil
}
