package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(receivableCmd)
	receivableCmd.AddCommand(receivableCreateCmd)
	receivableCmd.AddCommand(receivableSettleCmd)
	receivableCmd.AddCommand(receivablePaymentsCmd)
}

var receivableCmd = &cobra.Command{
	Use:   "receivable",
	Short: "Work with receivables",
}

var receivableCreateCmd = &cobra.Command{
	Use:   "create SMELTING_RECORD_ID",
	Short: "Generate the receivable of an existing smelting record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		receivable, err := services.Ledger.CreateReceivable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(receivable)
	},
}

var receivableSettleCmd = &cobra.Command{
	Use:   "settle RECEIVABLE_ID",
	Short: "Force-settle a receivable, writing off its remaining balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := services.Ledger.SettleReceivable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var receivablePaymentsCmd = &cobra.Command{
	Use:   "payments RECEIVABLE_ID",
	Short: "List payments and credits applied to a receivable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payments, err := services.Ledger.ListReceivablePayments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(payments)
	},
}
