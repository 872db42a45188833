package main

import (
	"fmt"
	"os"

	"cobranza-ledger-go/internal/common"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(allianceCmd)
	allianceCmd.AddCommand(allianceSyncCmd)
	allianceCmd.AddCommand(allianceListCmd)

	allianceSyncCmd.Flags().StringP("file", "f", "", "Alliance directory file (default: ALLIANCES_FILE)")
}

var allianceCmd = &cobra.Command{
	Use:   "alliance",
	Short: "Manage the alliance directory",
}

var allianceSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register alliances listed in the directory file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			file = cfg.AlliancesFile
		}

		entries, err := common.LoadAllianceDirectory(file)
		if err != nil {
			return err
		}
		created, err := common.SyncAlliances(cmd.Context(), services.DbService, entries)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d alliances in %s, %d newly registered\n", len(entries), file, created)
		return nil
	},
}

var allianceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alliances and their cached debt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		alliances, err := services.Ledger.ListAlliances(cmd.Context())
		if err != nil {
			return err
		}

		report := common.NewReport(os.Stdout, common.DefaultWidth)
		report.Header("ALLIANCES")
		for i, alliance := range alliances {
			report.AllianceRow(alliance, i == len(alliances)-1)
		}
		report.Footer(fmt.Sprintf("%d alliances", len(alliances)))
		return nil
	},
}
