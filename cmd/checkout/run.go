package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"checkout/internal/apperr"
	"checkout/internal/checkout"
	"checkout/internal/client"
)

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk through a full checkout with a test card",
		RunE: func(cmd *cobra.Command, args []string) error {
			product, _ := cmd.Flags().GetString("product")
			rawAmount, _ := cmd.Flags().GetString("amount")
			email, _ := cmd.Flags().GetString("email")
			cardNumber, _ := cmd.Flags().GetString("card")

			amount, err := decimal.NewFromString(rawAmount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", rawAmount)
			}

			ctx := cmd.Context()

			card, err := a.pickCard(cmd, cardNumber)
			if err != nil {
				return err
			}

			flow := checkout.NewFlow(a.client, checkout.NewSession(), a.cfg.RedirectDelay, func(c checkout.Context) {
				fmt.Printf("Returning to shop for order %s\n", c.OrderID)
			})

			c, err := flow.Start(ctx, product, amount, email)
			if err != nil {
				return err
			}
			fmt.Printf("Payment %s for %s (%s TRY)\n", c.PaymentID, c.ProductName, c.Amount.StringFixed(2))

			outcome, err := flow.Pay(ctx, card.Card())
			if err != nil {
				return err
			}
			printAuthorization(outcome)

			if _, ok := outcome.(client.ChallengeRequired); ok {
				if err := a.challenge(cmd, flow); err != nil {
					_ = flow.Abandon(context.WithoutCancel(ctx))
					return err
				}
			}

			if r := flow.Redirect(); r != nil {
				<-r.Done()
			}

			text, err := a.client.Receipt(ctx, c.PaymentID)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Print(text)
			return nil
		},
	}

	cmd.Flags().String("product", "Laptop", "Product name")
	cmd.Flags().String("amount", "1500.00", "Amount in TRY")
	cmd.Flags().String("email", "buyer@example.com", "Buyer email")
	cmd.Flags().String("card", "", "Test card number (defaults to the first approving card)")

	return cmd
}

func (a *app) pickCard(cmd *cobra.Command, number string) (client.TestCard, error) {
	cards, err := a.client.ListTestCards(cmd.Context())
	if err != nil {
		return client.TestCard{}, err
	}
	for _, c := range cards {
		if number == "" && !c.WillFail || number != "" && c.FullNumber == number {
			return c, nil
		}
	}
	return client.TestCard{}, fmt.Errorf("no test card matches %q", number)
}

// challenge prompts for codes until the flow records an outcome.
func (a *app) challenge(cmd *cobra.Command, flow *checkout.Flow) error {
	in := bufio.NewScanner(cmd.InOrStdin())

	for {
		fmt.Fprint(cmd.OutOrStdout(), "Enter the 6-digit code: ")
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return err
			}
			return errors.New("no code entered")
		}

		outcome, err := flow.Verify(cmd.Context(), strings.TrimSpace(in.Text()))
		if err != nil {
			if errors.Is(err, apperr.ErrValidation) {
				fmt.Println(err)
				continue
			}
			return err
		}

		printChallenge(outcome)
		if r, ok := outcome.(client.Rejected); ok && r.CanRetry() {
			continue
		}
		return nil
	}
}
