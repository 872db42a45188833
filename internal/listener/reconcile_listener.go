// Package listener runs background jobs next to the HTTP adapter.
package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cobranza-ledger-go/internal/models"

	"go.uber.org/zap"
)

// Reconciler is the part of the ledger the listener drives.
type Reconciler interface {
	Reconcile(ctx context.Context, allianceId string, dryRun bool) (*models.ReconcileResult, error)
}

type ReconcileListenerConfig struct {
	Ledger          Reconciler
	PollingInterval time.Duration
	DryRun          bool
}

// ReconcileListener periodically recomputes every alliance debt from its
// pending receivables and corrects drifted caches.
type ReconcileListener struct {
	ledger          Reconciler
	pollingInterval time.Duration
	dryRun          bool

	mutex   sync.RWMutex
	lastRun time.Time
	lastErr error
	runs    int

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewReconcileListener(cfg ReconcileListenerConfig) *ReconcileListener {
	return &ReconcileListener{
		ledger:          cfg.Ledger,
		pollingInterval: cfg.PollingInterval,
		dryRun:          cfg.DryRun,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start runs one reconciliation immediately and then keeps polling until Stop
// is called or ctx ends.
func (l *ReconcileListener) Start(ctx context.Context) error {
	if l.pollingInterval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %v", l.pollingInterval)
	}

	zap.L().Info("Starting reconcile listener",
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Bool("dry_run", l.dryRun))

	go l.pollLoop(ctx)
	return nil
}

// Stop gracefully stops the listener and waits for the running pass.
func (l *ReconcileListener) Stop() {
	l.stopOnce.Do(func() {
		zap.L().Info("Stopping reconcile listener")
		close(l.stopChan)
	})
	<-l.doneChan
	zap.L().Info("Reconcile listener stopped")
}

// Status reports when the last pass ran and how it ended.
func (l *ReconcileListener) Status() (lastRun time.Time, runs int, lastErr error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.lastRun, l.runs, l.lastErr
}

func (l *ReconcileListener) pollLoop(ctx context.Context) {
	defer close(l.doneChan)

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	l.reconcileAll(ctx)

	for {
		select {
		case <-ticker.C:
			l.reconcileAll(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *ReconcileListener) reconcileAll(ctx context.Context) {
	ctx = models.WithOperatorContext(ctx, &models.OperatorContext{Operator: "reconciler", Source: "listener"})

	result, err := l.ledger.Reconcile(ctx, "", l.dryRun)

	l.mutex.Lock()
	l.lastRun = time.Now().UTC()
	l.lastErr = err
	l.runs++
	l.mutex.Unlock()

	if err != nil {
		zap.L().Error("Scheduled reconciliation failed", zap.Error(err))
		return
	}
	if len(result.CorrectedAlliances) > 0 {
		zap.L().Warn("Scheduled reconciliation found drift",
			zap.Int("checked", result.Checked),
			zap.Int("corrected", len(result.CorrectedAlliances)),
			zap.Bool("dry_run", result.DryRun))
		return
	}
	zap.L().Debug("Scheduled reconciliation clean", zap.Int("checked", result.Checked))
}
