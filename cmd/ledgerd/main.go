package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"

	"cobranza-ledger-go/internal/api"
	"cobranza-ledger-go/internal/common"
	"cobranza-ledger-go/internal/config"
	"cobranza-ledger-go/internal/listener"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	syncDirectory := flag.Bool("sync", true, "Register alliances from ALLIANCES_FILE on startup when the file exists")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting cobranza ledger daemon", zap.String("addr", cfg.Server.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *syncDirectory {
		entries, err := common.LoadAllianceDirectory(cfg.AlliancesFile)
		if err != nil {
			zap.L().Warn("Alliance directory not loaded", zap.String("file", cfg.AlliancesFile), zap.Error(err))
		} else {
			created, err := common.SyncAlliances(ctx, services.DbService, entries)
			if err != nil {
				zap.L().Fatal("Failed to sync alliance directory", zap.Error(err))
			}
			zap.L().Info("Alliance directory synced",
				zap.Int("entries", len(entries)),
				zap.Int("created", created))
		}
	}

	server := api.NewServer(services.Ledger, services.DbService)
	if cfg.Server.MetricsEnabled {
		server.EnableMetrics()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Server.ReconcileInterval > 0 {
		reconciler := listener.NewReconcileListener(listener.ReconcileListenerConfig{
			Ledger:          services.Ledger,
			PollingInterval: cfg.Server.ReconcileInterval,
			DryRun:          cfg.Server.ReconcileDryRun,
		})
		if err := reconciler.Start(gctx); err != nil {
			zap.L().Fatal("Failed to start reconcile listener", zap.Error(err))
		}
		g.Go(func() error {
			<-gctx.Done()
			reconciler.Stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("Ledger daemon stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Ledger daemon stopped gracefully")
}
