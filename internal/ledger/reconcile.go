package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reconcile recomputes the cached debt of one alliance (or all when allianceId
// is empty) from its pending receivables. Drifted debts are overwritten and
// recorded as DEBT_RECONCILED entries unless dryRun is set. Each alliance is
// reconciled in its own transaction; failures are collected and returned
// together after every alliance has been checked.
func (s *Service) Reconcile(ctx context.Context, allianceId string, dryRun bool) (result *models.ReconcileResult, err error) {
	start := time.Now()
	defer func() { observe("reconcile", start, err) }()

	var allianceIds []string
	if allianceId != "" {
		if _, err := s.store.GetAlliance(ctx, allianceId); err != nil {
			return nil, fmt.Errorf("failed to reconcile: %w", err)
		}
		allianceIds = []string{allianceId}
	} else {
		alliances, err := s.store.ListAlliances(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile: %w", err)
		}
		for _, a := range alliances {
			allianceIds = append(allianceIds, a.Id)
		}
	}

	zap.L().Info("Reconciling alliance debts",
		zap.Int("alliances", len(allianceIds)),
		zap.Bool("dry_run", dryRun))

	result = &models.ReconcileResult{DryRun: dryRun, CorrectedAlliances: []models.DebtCorrection{}}
	var errs []error
	for _, id := range allianceIds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		correction, err := s.reconcileAlliance(ctx, id, dryRun)
		if err != nil {
			zap.L().Error("Alliance reconciliation failed", zap.String("alliance_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("alliance %s: %w", id, err))
			continue
		}
		result.Checked++
		if correction != nil {
			result.CorrectedAlliances = append(result.CorrectedAlliances, *correction)
		}
	}

	zap.L().Info("Reconciliation finished",
		zap.Int("checked", result.Checked),
		zap.Int("drifted", len(result.CorrectedAlliances)),
		zap.Int("failed", len(errs)),
		zap.Bool("dry_run", dryRun))

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

func (s *Service) reconcileAlliance(ctx context.Context, allianceId string, dryRun bool) (*models.DebtCorrection, error) {
	var correction *models.DebtCorrection

	err := s.runInAllianceTx(ctx, "reconcile", allianceId, func(ctx context.Context, tx store.Tx) error {
		correction = nil

		alliance, err := tx.GetAlliance(ctx, allianceId)
		if err != nil {
			return err
		}
		pending, err := tx.ListPendingReceivables(ctx, allianceId)
		if err != nil {
			return err
		}

		calculated := decimal.Zero
		for _, r := range pending {
			calculated = calculated.Add(r.RemainingBalance)
		}

		if alliance.DebtBalance.Equal(calculated) {
			return nil
		}

		correction = &models.DebtCorrection{
			AllianceId: allianceId,
			Before:     alliance.DebtBalance,
			After:      calculated,
			Difference: calculated.Sub(alliance.DebtBalance),
		}
		zap.L().Warn("Alliance debt drift detected",
			zap.String("alliance_id", allianceId),
			zap.String("cached_debt", alliance.DebtBalance.String()),
			zap.String("calculated_debt", calculated.String()),
			zap.String("difference", correction.Difference.String()),
			zap.Bool("dry_run", dryRun))

		if dryRun {
			return nil
		}

		if err := tx.UpdateAllianceDebt(ctx, allianceId, calculated, alliance.Version); err != nil {
			return err
		}
		return tx.AppendLedgerEntry(ctx, &models.LedgerEntry{
			AllianceId:    allianceId,
			Kind:          models.EntryDebtReconciled,
			Amount:        correction.Difference,
			BalanceBefore: alliance.DebtBalance,
			BalanceAfter:  calculated,
			Description: describe(ctx, "Debt reconciled from %d pending receivables",
				len(pending)),
		})
	})
	if err != nil {
		return nil, err
	}

	if correction != nil {
		mode := "applied"
		if dryRun {
			mode = "dry_run"
		}
		ReconcileCorrections.WithLabelValues(mode).Inc()
	}
	return correction, nil
}
