package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"checkout/internal/client"
)

func (a *app) orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order [product] [amount] [email]",
		Short: "Create an order and its payment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			order, err := a.client.CreateOrder(cmd.Context(), args[0], amount, args[2])
			if err != nil {
				return err
			}

			fmt.Printf("Order:    %s\n", order.OrderID)
			fmt.Printf("Payment:  %s\n", order.PaymentID)
			fmt.Printf("Amount:   %s TRY\n", order.Amount.StringFixed(2))
			fmt.Printf("Status:   %s\n", order.Status)
			return nil
		},
	}
	return cmd
}

func (a *app) payCmd() *cobra.Command {
	var card client.Card

	cmd := &cobra.Command{
		Use:   "pay [paymentId]",
		Short: "Authorize a payment with a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := a.client.Authorize(cmd.Context(), args[0], card)
			if err != nil {
				return err
			}
			printAuthorization(outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&card.Number, "number", "", "Card number")
	cmd.Flags().StringVar(&card.Holder, "holder", "", "Card holder")
	cmd.Flags().StringVar(&card.ExpiryMonth, "month", "", "Expiry month")
	cmd.Flags().StringVar(&card.ExpiryYear, "year", "", "Expiry year")
	cmd.Flags().StringVar(&card.CVV, "cvv", "", "CVV")
	for _, name := range []string{"number", "holder", "month", "year", "cvv"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [paymentId] [code]",
		Short: "Submit the one-time code for a challenged payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := a.client.VerifyChallenge(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printChallenge(outcome)
			return nil
		},
	}
}

func (a *app) cancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [paymentId]",
		Short: "Cancel a payment that has not completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")

			p, err := a.client.Cancel(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			fmt.Printf("Payment %s is %s\n", p.ID, p.Status)
			return nil
		},
	}

	cmd.Flags().String("reason", "", "Cancellation reason")

	return cmd
}

func (a *app) refundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refund [paymentId]",
		Short: "Refund a captured payment, fully or in part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			raw, _ := cmd.Flags().GetString("amount")

			var amount *decimal.Decimal
			if raw != "" {
				d, err := decimal.NewFromString(raw)
				if err != nil {
					return fmt.Errorf("invalid amount %q", raw)
				}
				amount = &d
			}

			p, err := a.client.Refund(cmd.Context(), args[0], amount, reason)
			if err != nil {
				return err
			}
			refunded := decimal.Zero
			if p.RefundedAmount != nil {
				refunded = *p.RefundedAmount
			}
			fmt.Printf("Payment %s is %s (%s of %s %s refunded)\n",
				p.ID, p.Status, refunded.StringFixed(2), p.Amount.StringFixed(2), p.Currency)
			return nil
		},
	}

	cmd.Flags().String("amount", "", "Amount to refund (default: everything not yet refunded)")
	cmd.Flags().String("reason", "", "Refund reason")

	return cmd
}

func (a *app) attemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attempts [paymentId]",
		Short: "List the recorded attempts of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attempts, err := a.client.Attempts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				fmt.Println("No attempts")
				return nil
			}
			for _, at := range attempts {
				printAttempt(at)
			}
			return nil
		},
	}
}

func (a *app) paymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments [paymentId]",
		Short: "List payments, or show one with its attempts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				p, err := a.client.GetPayment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPayment(*p)
				for _, at := range p.Attempts {
					printAttempt(at)
				}
				return nil
			}

			payments, err := a.client.ListPayments(cmd.Context())
			if err != nil {
				return err
			}
			if len(payments) == 0 {
				fmt.Println("No payments")
				return nil
			}
			for _, p := range payments {
				printPayment(p)
			}
			return nil
		},
	}
}

func (a *app) receiptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt [paymentId]",
		Short: "Print the receipt of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.client.Receipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Print(text)
			if !strings.HasSuffix(text, "\n") {
				fmt.Println()
			}
			return nil
		},
	}
}

func printPayment(p client.Payment) {
	fmt.Printf("%s  %-10s %10s %s  %-12s %s\n",
		p.ID, p.Status, p.Amount.StringFixed(2), p.Currency, p.ProviderName, p.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printAttempt(at client.Attempt) {
	fmt.Printf("  %-10s %-12s %-8s %5dms %s\n", at.Operation, at.Provider, at.Status, at.LatencyMs, at.ErrorCode)
}

func printAuthorization(outcome client.AuthorizationOutcome) {
	switch o := outcome.(type) {
	case client.ChallengeRequired:
		fmt.Printf("Verification required by %s\n", o.BankName)
	case client.Declined:
		fmt.Printf("Declined: %s\n", o.Message)
	case client.Settled:
		fmt.Printf("Captured: %s\n", o.ProviderReference)
	}
}

func printChallenge(outcome client.ChallengeOutcome) {
	switch o := outcome.(type) {
	case client.Settled:
		fmt.Printf("Captured: %s\n", o.ProviderReference)
	case client.Rejected:
		if o.CanRetry() {
			fmt.Printf("Rejected (%s): %s, %d attempts left\n", o.Code, o.Message, o.RemainingAttempts)
			return
		}
		fmt.Printf("Rejected (%s): %s, payment is %s\n", o.Code, o.Message, o.Status)
	}
}
