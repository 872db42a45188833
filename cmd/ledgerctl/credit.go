package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(creditCmd)
	creditCmd.AddCommand(creditApplyCmd)

	creditApplyCmd.Flags().String("receivable", "", "Receivable id to pay down")
	creditApplyCmd.Flags().String("amount", "", "Grams of credit to apply")
	creditApplyCmd.Flags().String("description", "", "Free-text note stored with the application")
	_ = creditApplyCmd.MarkFlagRequired("receivable")
	_ = creditApplyCmd.MarkFlagRequired("amount")
}

var creditCmd = &cobra.Command{
	Use:   "credit",
	Short: "Work with credit balances",
}

var creditApplyCmd = &cobra.Command{
	Use:   "apply CREDIT_BALANCE_ID",
	Short: "Apply part of a credit balance to a pending receivable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		receivableId, _ := cmd.Flags().GetString("receivable")
		amountFlag, _ := cmd.Flags().GetString("amount")
		description, _ := cmd.Flags().GetString("description")

		amount, err := parseAmount("amount", amountFlag)
		if err != nil {
			return err
		}
		result, err := services.Ledger.ApplyCredit(cmd.Context(), args[0], receivableId, amount, description)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}
