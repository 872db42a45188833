package main

import (
	"fmt"
	"strings"
	"time"

	"cobranza-ledger-go/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(paymentCmd)
	paymentCmd.AddCommand(paymentRegisterCmd)
	paymentCmd.AddCommand(paymentAllocateCmd)
	paymentCmd.AddCommand(paymentPreviewCmd)
	paymentCmd.AddCommand(paymentPendingCmd)

	paymentRegisterCmd.Flags().String("alliance", "", "Alliance id")
	paymentRegisterCmd.Flags().String("nomenclature", "", "Delivery nomenclature, e.g. AA/0001")
	paymentRegisterCmd.Flags().String("amount", "", "Delivered grams")
	paymentRegisterCmd.Flags().String("received-at", "", "Reception time in RFC 3339 (default: now)")
	paymentRegisterCmd.Flags().Bool("allocate", false, "Allocate the whole delivery right away (FIFO)")
	_ = paymentRegisterCmd.MarkFlagRequired("alliance")
	_ = paymentRegisterCmd.MarkFlagRequired("nomenclature")
	_ = paymentRegisterCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{paymentAllocateCmd, paymentPreviewCmd} {
		c.Flags().String("alliance", "", "Alliance id")
		c.Flags().String("amount", "", "Grams to allocate")
		c.Flags().String("strategy", "", "FIFO or MANUAL (default: FIFO, MANUAL when --select is given)")
		c.Flags().StringSlice("select", nil, "Manual selection RECEIVABLE_ID=AMOUNT (repeatable, applied in order)")
		_ = c.MarkFlagRequired("alliance")
		_ = c.MarkFlagRequired("amount")
	}
}

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Register and allocate gold deliveries",
}

var paymentRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a gold delivery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		allianceId, _ := cmd.Flags().GetString("alliance")
		nomenclature, _ := cmd.Flags().GetString("nomenclature")
		amountFlag, _ := cmd.Flags().GetString("amount")
		receivedAtFlag, _ := cmd.Flags().GetString("received-at")
		allocate, _ := cmd.Flags().GetBool("allocate")

		amount, err := parseAmount("amount", amountFlag)
		if err != nil {
			return err
		}
		var receivedAt time.Time
		if receivedAtFlag != "" {
			if receivedAt, err = time.Parse(time.RFC3339, receivedAtFlag); err != nil {
				return fmt.Errorf("invalid --received-at %q: %w", receivedAtFlag, err)
			}
		}

		params := ledger.RegisterPaymentParams{
			AllianceId:   allianceId,
			Nomenclature: nomenclature,
			GrossAmount:  amount,
			ReceivedAt:   receivedAt,
		}
		if !allocate {
			event, err := services.Ledger.RegisterPaymentEvent(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printJSON(event)
		}

		result, err := services.Ledger.ReceivePayment(cmd.Context(), params, nil)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var paymentAllocateCmd = &cobra.Command{
	Use:   "allocate PAYMENT_EVENT_ID",
	Short: "Allocate a registered delivery to receivables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		allianceId, amount, strategy, err := allocationFlags(cmd)
		if err != nil {
			return err
		}
		result, err := services.Ledger.AllocatePayment(cmd.Context(), allianceId, args[0], amount, strategy)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var paymentPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show how an amount would be allocated without writing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		allianceId, amount, strategy, err := allocationFlags(cmd)
		if err != nil {
			return err
		}
		preview, err := services.Ledger.PreviewAllocation(cmd.Context(), allianceId, amount, strategy)
		if err != nil {
			return err
		}
		return printJSON(preview)
	},
}

var paymentPendingCmd = &cobra.Command{
	Use:   "pending ALLIANCE_ID",
	Short: "List registered deliveries that were never allocated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := services.Ledger.ListUnallocatedPayments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(events)
	},
}

func allocationFlags(cmd *cobra.Command) (string, decimal.Decimal, ledger.Strategy, error) {
	allianceId, _ := cmd.Flags().GetString("alliance")
	amountFlag, _ := cmd.Flags().GetString("amount")
	strategyName, _ := cmd.Flags().GetString("strategy")
	selectFlags, _ := cmd.Flags().GetStringSlice("select")

	amount, err := parseAmount("amount", amountFlag)
	if err != nil {
		return "", amount, nil, err
	}

	selections := make([]ledger.Selection, 0, len(selectFlags))
	for _, raw := range selectFlags {
		id, value, ok := strings.Cut(raw, "=")
		if !ok || id == "" {
			return "", amount, nil, fmt.Errorf("invalid --select %q, want RECEIVABLE_ID=AMOUNT", raw)
		}
		capAmount, err := parseAmount("select", value)
		if err != nil {
			return "", amount, nil, err
		}
		selections = append(selections, ledger.Selection{ReceivableId: id, Amount: capAmount})
	}

	strategy, err := ledger.StrategyFor(strings.ToUpper(strategyName), selections)
	if err != nil {
		return "", amount, nil, err
	}
	return allianceId, amount, strategy, nil
}
