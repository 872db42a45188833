package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cobranza-ledger-go/internal/common"
	"cobranza-ledger-go/internal/config"
	"cobranza-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	services *common.Services
	cfg      *models.Config
	operator string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the cooperative debt ledger",
	Long: `ledgerctl records smeltings and gold deliveries, allocates payments to
receivables, applies credit balances and reconciles alliance debts against the
same database the ledger daemon uses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		services, err = common.InitializeServices(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		cmd.SetContext(models.WithOperatorContext(cmd.Context(), &models.OperatorContext{
			Operator: operator,
			Source:   "cli",
		}))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if services != nil {
			services.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&operator, "operator", os.Getenv("USER"), "Operator name recorded in ledger entry descriptions")
}

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		zap.L().Debug("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(flag, value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return amount, nil
}
