package main

import (
	"fmt"
	"time"

	"cobranza-ledger-go/internal/ledger"
	"cobranza-ledger-go/internal/models"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(smeltingCmd)
	smeltingCmd.AddCommand(smeltingRecordCmd)

	smeltingRecordCmd.Flags().String("alliance", "", "Alliance id")
	smeltingRecordCmd.Flags().String("number", "", "Smelting record number, e.g. AF/ALZ/0001")
	smeltingRecordCmd.Flags().StringSlice("bar", nil, "Gross weight of one bar in grams (repeatable)")
	smeltingRecordCmd.Flags().String("smelted-at", "", "Smelting time in RFC 3339 (default: now)")
	_ = smeltingRecordCmd.MarkFlagRequired("alliance")
	_ = smeltingRecordCmd.MarkFlagRequired("number")
	_ = smeltingRecordCmd.MarkFlagRequired("bar")
}

var smeltingCmd = &cobra.Command{
	Use:   "smelting",
	Short: "Register finalized smeltings",
}

var smeltingRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a smelting and generate its receivable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		allianceId, _ := cmd.Flags().GetString("alliance")
		number, _ := cmd.Flags().GetString("number")
		weights, _ := cmd.Flags().GetStringSlice("bar")
		smeltedAtFlag, _ := cmd.Flags().GetString("smelted-at")

		var smeltedAt time.Time
		if smeltedAtFlag != "" {
			var err error
			if smeltedAt, err = time.Parse(time.RFC3339, smeltedAtFlag); err != nil {
				return fmt.Errorf("invalid --smelted-at %q: %w", smeltedAtFlag, err)
			}
		}

		bars := make([]models.Bar, 0, len(weights))
		for i, weight := range weights {
			gross, err := parseAmount("bar", weight)
			if err != nil {
				return err
			}
			bars = append(bars, models.Bar{BarNumber: i + 1, GrossWeight: gross})
		}

		result, err := services.Ledger.RecordSmelting(cmd.Context(), ledger.RecordSmeltingParams{
			AllianceId:   allianceId,
			RecordNumber: number,
			SmeltedAt:    smeltedAt,
			Bars:         bars,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}
