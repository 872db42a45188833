package main

import (
	"fmt"
	"os"

	"cobranza-ledger-go/internal/common"
	"cobranza-ledger-go/internal/models"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(reconcileCmd)

	balanceCmd.Flags().Int("recent", 0, "Number of recent ledger entries to show (default: LEDGER_RECENT_ENTRIES)")
	balanceCmd.Flags().Bool("json", false, "Print the raw balance as JSON")
	ledgerCmd.Flags().Int("limit", 50, "Maximum number of entries")
	ledgerCmd.Flags().Int("offset", 0, "Entries to skip, newest first")
	reconcileCmd.Flags().Bool("dry-run", false, "Report drift without correcting it")
}

var balanceCmd = &cobra.Command{
	Use:   "balance ALLIANCE_ID",
	Short: "Show the debt position of an alliance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")
		asJSON, _ := cmd.Flags().GetBool("json")

		balance, err := services.Ledger.GetAllianceBalance(cmd.Context(), args[0], recent)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(balance)
		}
		printAllianceBalance(balance)
		return nil
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger ALLIANCE_ID",
	Short: "Page through the ledger entries of an alliance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		entries, err := services.Ledger.ListLedgerEntries(cmd.Context(), args[0], limit, offset)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [ALLIANCE_ID]",
	Short: "Recompute alliance debts from pending receivables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		allianceId := ""
		if len(args) == 1 {
			allianceId = args[0]
		}

		result, err := services.Ledger.Reconcile(cmd.Context(), allianceId, dryRun)
		if err != nil {
			return err
		}

		title := "RECONCILIATION"
		if result.DryRun {
			title += " (DRY RUN)"
		}
		report := common.NewReport(os.Stdout, common.DefaultWidth)
		report.Header(title)
		for i, c := range result.CorrectedAlliances {
			report.CorrectionRow(c, i == len(result.CorrectedAlliances)-1)
		}
		report.Footer(fmt.Sprintf("%d alliances checked, %d with drift",
			result.Checked, len(result.CorrectedAlliances)))
		return nil
	},
}

func printAllianceBalance(balance *models.AllianceBalance) {
	report := common.NewReport(os.Stdout, common.WideWidth)
	report.Header(fmt.Sprintf("ALLIANCE %s - %s", balance.Alliance.Id, balance.Alliance.Name))
	fmt.Printf("Debt: %s    Available credit: %s\n",
		common.Grams(balance.DebtBalance), common.Grams(balance.TotalAvailableCredit))

	report.Section(fmt.Sprintf("Pending receivables: %d", len(balance.PendingReceivables)))
	for i, r := range balance.PendingReceivables {
		report.ReceivableRow(r, i == len(balance.PendingReceivables)-1)
	}

	report.Section(fmt.Sprintf("Credit balances: %d", len(balance.AvailableCredits)))
	for i, c := range balance.AvailableCredits {
		report.CreditRow(c, i == len(balance.AvailableCredits)-1)
	}

	report.Section(fmt.Sprintf("Recent ledger entries: %d", len(balance.RecentLedgerEntries)))
	for i, e := range balance.RecentLedgerEntries {
		report.EntryRow(e, i == len(balance.RecentLedgerEntries)-1)
	}
	report.Rule()
}
