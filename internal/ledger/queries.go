package ledger

import (
	"context"
	"fmt"
	"sort"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

const maxRecentEntries = 100

// GetAllianceBalance returns the alliance's debt, pending receivables (oldest
// first), available credits (oldest first) and its most recent ledger entries.
func (s *Service) GetAllianceBalance(ctx context.Context, allianceId string, recentLimit int) (*models.AllianceBalance, error) {
	if recentLimit <= 0 {
		recentLimit = s.cfg.RecentEntriesLimit
	}
	if recentLimit > maxRecentEntries {
		recentLimit = maxRecentEntries
	}

	alliance, err := s.store.GetAlliance(ctx, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance balance: %w", err)
	}
	pending, err := s.store.ListPendingReceivables(ctx, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance balance: %w", err)
	}
	credits, err := s.store.ListAvailableCredits(ctx, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance balance: %w", err)
	}
	entries, err := s.store.ListLedgerEntries(ctx, allianceId, store.ListOptions{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance balance: %w", err)
	}

	totalCredit := decimal.Zero
	for _, c := range credits {
		totalCredit = totalCredit.Add(c.AvailableAmount)
	}

	return &models.AllianceBalance{
		Alliance:             *alliance,
		DebtBalance:          alliance.DebtBalance,
		PendingReceivables:   nonNil(pending),
		AvailableCredits:     nonNil(credits),
		TotalAvailableCredit: totalCredit,
		RecentLedgerEntries:  nonNil(entries),
	}, nil
}

// ListLedgerEntries pages through an alliance's history, newest first.
func (s *Service) ListLedgerEntries(ctx context.Context, allianceId string, limit, offset int) ([]models.LedgerEntry, error) {
	if _, err := s.store.GetAlliance(ctx, allianceId); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	entries, err := s.store.ListLedgerEntries(ctx, allianceId, store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return nonNil(entries), nil
}

// ListUnallocatedPayments returns the alliance's registered deliveries that
// still wait for an allocation.
func (s *Service) ListUnallocatedPayments(ctx context.Context, allianceId string) ([]models.PaymentEvent, error) {
	if _, err := s.store.GetAlliance(ctx, allianceId); err != nil {
		return nil, fmt.Errorf("failed to list unallocated payments: %w", err)
	}
	events, err := s.store.ListUnallocatedPaymentEvents(ctx, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to list unallocated payments: %w", err)
	}
	return nonNil(events), nil
}

// ListReceivablePayments returns every payment allocation and credit
// application that reduced a receivable, in the order they were applied.
func (s *Service) ListReceivablePayments(ctx context.Context, receivableId string) ([]models.ReceivablePayment, error) {
	if _, err := s.store.GetReceivable(ctx, receivableId); err != nil {
		return nil, fmt.Errorf("failed to list receivable payments: %w", err)
	}

	allocations, err := s.store.ListAllocationsByReceivable(ctx, receivableId)
	if err != nil {
		return nil, fmt.Errorf("failed to list receivable payments: %w", err)
	}
	applications, err := s.store.ListCreditApplicationsByReceivable(ctx, receivableId)
	if err != nil {
		return nil, fmt.Errorf("failed to list receivable payments: %w", err)
	}

	nomenclatures := make(map[string]string)
	payments := make([]models.ReceivablePayment, 0, len(allocations)+len(applications))
	for _, a := range allocations {
		nomenclature, ok := nomenclatures[a.PaymentEventId]
		if !ok {
			event, err := s.store.GetPaymentEvent(ctx, a.PaymentEventId)
			if err != nil {
				return nil, fmt.Errorf("failed to list receivable payments: %w", err)
			}
			nomenclature = event.Nomenclature
			nomenclatures[a.PaymentEventId] = nomenclature
		}
		payments = append(payments, models.ReceivablePayment{
			Source:       "payment",
			SourceId:     a.PaymentEventId,
			Nomenclature: nomenclature,
			Amount:       a.AmountApplied,
			AppliedAt:    a.CreatedAt,
		})
	}
	for _, app := range applications {
		payments = append(payments, models.ReceivablePayment{
			Source:       "credit",
			SourceId:     app.CreditBalanceId,
			Nomenclature: app.Description,
			Amount:       app.AmountApplied,
			AppliedAt:    app.CreatedAt,
		})
	}

	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].AppliedAt.Before(payments[j].AppliedAt)
	})
	return payments, nil
}

// ListAlliances returns every alliance with its cached debt.
func (s *Service) ListAlliances(ctx context.Context) ([]models.Alliance, error) {
	alliances, err := s.store.ListAlliances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alliances: %w", err)
	}
	return nonNil(alliances), nil
}

func (s *Service) GetReceivable(ctx context.Context, receivableId string) (*models.Receivable, error) {
	return s.store.GetReceivable(ctx, receivableId)
}

func (s *Service) GetCreditBalance(ctx context.Context, creditBalanceId string) (*models.CreditBalance, error) {
	return s.store.GetCreditBalance(ctx, creditBalanceId)
}

// nonNil keeps JSON output as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
