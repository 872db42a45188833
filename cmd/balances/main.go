/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cobranza-ledger-go/internal/common"
	"cobranza-ledger-go/internal/config"
	"cobranza-ledger-go/internal/database"
	"cobranza-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type debtStats struct {
	totalAlliances     int
	alliancesWithDebt  int
	pendingReceivables int
	totalDebt          decimal.Decimal
	totalCredit        decimal.Decimal
}

func printAlliance(report *common.Report, alliance models.Alliance, receivables []models.Receivable, credit decimal.Decimal) {
	report.Section(fmt.Sprintf("Alliance: %s (%s)", alliance.Name, alliance.Id),
		fmt.Sprintf("Debt: %s (v%d)", common.Grams(alliance.DebtBalance), alliance.Version),
		fmt.Sprintf("Available credit: %s", common.Grams(credit)),
		fmt.Sprintf("Pending receivables: %d", len(receivables)))
	for i, receivable := range receivables {
		report.ReceivableRow(receivable, i == len(receivables)-1)
	}
}

func processAlliance(ctx context.Context, report *common.Report, alliance models.Alliance, dbService *database.Service) (int, decimal.Decimal, error) {
	receivables, err := dbService.ListPendingReceivables(ctx, alliance.Id)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to get receivables: %w", err)
	}

	credits, err := dbService.ListAvailableCredits(ctx, alliance.Id)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to get credits: %w", err)
	}
	credit := decimal.Zero
	for _, c := range credits {
		credit = credit.Add(c.AvailableAmount)
	}

	if len(receivables) == 0 && credit.IsZero() {
		return 0, credit, nil
	}

	printAlliance(report, alliance, receivables, credit)

	return len(receivables), credit, nil
}

func processAlliancesAndGenerateReport(ctx context.Context, report *common.Report, alliances []models.Alliance, dbService *database.Service, logger *zap.Logger) debtStats {
	stats := debtStats{totalDebt: decimal.Zero, totalCredit: decimal.Zero}

	for _, alliance := range alliances {
		stats.totalAlliances++

		receivableCount, credit, err := processAlliance(ctx, report, alliance, dbService)
		if err != nil {
			logger.Error("Failed to process alliance",
				zap.String("alliance_id", alliance.Id),
				zap.String("alliance_name", alliance.Name),
				zap.Error(err))
			continue
		}

		if alliance.DebtBalance.IsPositive() {
			stats.alliancesWithDebt++
		}
		stats.pendingReceivables += receivableCount
		stats.totalDebt = stats.totalDebt.Add(alliance.DebtBalance)
		stats.totalCredit = stats.totalCredit.Add(credit)
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	allianceFlag := flag.String("alliance", "", "Filter by specific alliance id (optional)")
	flag.Parse()

	logger.Info("Starting debt report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only report, no ledger service needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	alliances, err := common.ResolveAlliances(ctx, dbService, *allianceFlag, logger)
	if err != nil {
		logger.Fatal("Failed to resolve alliances", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.DefaultWidth)
	report.Header("ALLIANCE DEBT REPORT")

	stats := processAlliancesAndGenerateReport(ctx, report, alliances, dbService, logger)

	summary := fmt.Sprintf("SUMMARY: %d of %d alliances owe %s g across %d receivables (%s g in credit)",
		stats.alliancesWithDebt, stats.totalAlliances, stats.totalDebt.StringFixed(2),
		stats.pendingReceivables, stats.totalCredit.StringFixed(2))
	report.Footer(summary)

	logger.Info("Debt report completed",
		zap.Int("alliances_queried", stats.totalAlliances),
		zap.Int("alliances_with_debt", stats.alliancesWithDebt),
		zap.String("total_debt", stats.totalDebt.String()))
}
