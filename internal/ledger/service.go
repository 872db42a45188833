// Package ledger implements the debt ledger and credit allocation engine:
// receivable generation, payment allocation, credit application, settlement
// and reconciliation over a store.Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Service runs every balance mutation in a single store transaction, serialized
// per alliance.
type Service struct {
	store store.Store
	cfg   models.LedgerConfig
	locks *allianceLocks
}

func NewService(st store.Store, cfg models.LedgerConfig) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("ledger store cannot be nil")
	}
	if !cfg.CollectionRate.IsPositive() {
		return nil, fmt.Errorf("collection rate must be positive, got %s", cfg.CollectionRate.String())
	}
	if cfg.Tolerance.IsNegative() {
		return nil, fmt.Errorf("tolerance cannot be negative, got %s", cfg.Tolerance.String())
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RecentEntriesLimit <= 0 {
		cfg.RecentEntriesLimit = models.DefaultLedgerConfig().RecentEntriesLimit
	}

	zap.L().Info("Ledger service initialized",
		zap.String("collection_rate", cfg.CollectionRate.String()),
		zap.String("tolerance", cfg.Tolerance.String()),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Service{
		store: st,
		cfg:   cfg,
		locks: newAllianceLocks(),
	}, nil
}

// Config returns the ledger parameters in use.
func (s *Service) Config() models.LedgerConfig {
	return s.cfg
}

// runInAllianceTx serializes fn with every other mutation of the same alliance
// and retries the whole transaction on write conflicts.
func (s *Service) runInAllianceTx(ctx context.Context, operation, allianceId string, fn func(ctx context.Context, tx store.Tx) error) error {
	unlock, err := s.locks.lock(ctx, allianceId)
	if err != nil {
		return fmt.Errorf("waiting for alliance %s: %w", allianceId, err)
	}
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			ConflictRetries.WithLabelValues(operation).Inc()
			backoff := time.Duration(attempt) * s.cfg.RetryBackoff
			zap.L().Warn("Retrying ledger transaction after conflict",
				zap.String("operation", operation),
				zap.String("alliance_id", allianceId),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = s.store.RunInTx(ctx, fn)
		if !errors.Is(lastErr, store.ErrTransactionConflict) {
			return lastErr
		}
	}
	return lastErr
}

// allianceLocks hands out one weighted semaphore per alliance id. Entries are
// dropped once nobody holds or waits for them.
type allianceLocks struct {
	mu    sync.Mutex
	locks map[string]*allianceLock
}

type allianceLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newAllianceLocks() *allianceLocks {
	return &allianceLocks{locks: make(map[string]*allianceLock)}
}

func (l *allianceLocks) lock(ctx context.Context, allianceId string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[allianceId]
	if !ok {
		entry = &allianceLock{sem: semaphore.NewWeighted(1)}
		l.locks[allianceId] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.release(allianceId, entry)
		return nil, err
	}

	return func() {
		entry.sem.Release(1)
		l.release(allianceId, entry)
	}, nil
}

func (l *allianceLocks) release(allianceId string, entry *allianceLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, allianceId)
	}
}

// floorDebt subtracts amount from debt without going below zero. Clipping is
// logged and counted, never silent.
func floorDebt(allianceId string, debt, amount decimal.Decimal) decimal.Decimal {
	after := debt.Sub(amount)
	if after.IsNegative() {
		DebtFloorClips.Inc()
		zap.L().Warn("Alliance debt would go negative, flooring at zero",
			zap.String("alliance_id", allianceId),
			zap.String("debt", debt.String()),
			zap.String("amount", amount.String()),
			zap.String("clipped", after.Neg().String()))
		return decimal.Zero
	}
	return after
}

// operatorFields adds request/operator fields carried in ctx to log lines.
func operatorFields(ctx context.Context, fields ...zap.Field) []zap.Field {
	if oc := models.GetOperatorContext(ctx); oc != nil {
		if oc.RequestId != "" {
			fields = append(fields, zap.String("request_id", oc.RequestId))
		}
		if oc.Operator != "" {
			fields = append(fields, zap.String("operator", oc.Operator))
		}
		if oc.Source != "" {
			fields = append(fields, zap.String("source", oc.Source))
		}
	}
	return fields
}

// describe appends the operator name to a ledger entry description when known.
func describe(ctx context.Context, format string, args ...any) string {
	description := fmt.Sprintf(format, args...)
	if oc := models.GetOperatorContext(ctx); oc != nil && oc.Operator != "" {
		description += " (by " + oc.Operator + ")"
	}
	return description
}
