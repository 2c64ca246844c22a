package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) cardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cards",
		Short: "List the test cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cards, err := a.client.ListTestCards(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cards {
				outcome := "approve"
				if c.WillFail {
					outcome = "decline"
				}
				fmt.Printf("%-20s %-14s %s%%  %s\n", c.FullNumber, c.BankName, c.Commission.StringFixed(2), outcome)
			}
			return nil
		},
	}
}

func (a *app) logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show captured API exchanges",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stats, _ := cmd.Flags().GetBool("stats"); stats {
				s, err := a.client.APILogStats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Requests:  %d (%d ok, %d errors, %.1f%%)\n", s.TotalRequests, s.SuccessCount, s.ErrorCount, s.SuccessRate)
				fmt.Printf("Latency:   avg %.1fms  p50 %dms  p95 %dms  p99 %dms\n", s.AvgLatencyMs, s.P50LatencyMs, s.P95LatencyMs, s.P99LatencyMs)
				return nil
			}

			paymentID, _ := cmd.Flags().GetString("payment")
			logs, err := a.client.ListAPILogs(cmd.Context(), paymentID)
			if err != nil {
				return err
			}
			for _, l := range logs {
				fmt.Printf("%s %-6s %-40s %d %5dms %s\n",
					l.CreatedAt.Format("15:04:05"), l.Method, l.Endpoint, l.ResponseStatus, l.LatencyMs, l.CorrelationID)
			}
			return nil
		},
	}

	cmd.Flags().String("payment", "", "Only show exchanges for this payment")
	cmd.Flags().Bool("stats", false, "Show aggregate statistics instead")

	return cmd
}

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the payment dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.client.Metrics(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println("Payments")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  Total:      %d\n", m.TotalPayments)
			fmt.Printf("  Captured:   %d\n", m.TotalSuccessful)
			fmt.Printf("  Failed:     %d\n", m.TotalFailed)
			fmt.Printf("  Cancelled:  %d\n", m.TotalCancelled)
			fmt.Printf("  Pending:    %d\n", m.TotalPending)
			fmt.Printf("  Success:    %.1f%%\n", m.SuccessRate)

			fmt.Println("\nRevenue")
			fmt.Printf("  Gross:      %s TRY\n", m.TotalRevenue.StringFixed(2))
			fmt.Printf("  Commission: %s TRY\n", m.TotalCommission.StringFixed(2))
			fmt.Printf("  Net:        %s TRY\n", m.NetRevenue.StringFixed(2))
			fmt.Printf("  Refunded:   %s TRY\n", m.TotalRefunded.StringFixed(2))
			fmt.Printf("  Last 24h:   %d payments, %s TRY\n", m.PaymentsLast24h, m.VolumeLast24h.StringFixed(2))

			if len(m.Providers) > 0 {
				names := make([]string, 0, len(m.Providers))
				for name := range m.Providers {
					names = append(names, name)
				}
				sort.Strings(names)

				fmt.Println("\nProviders")
				for _, name := range names {
					p := m.Providers[name]
					fmt.Printf("  %-14s %3d attempts  %5.1f%%  avg %.0fms\n", name, p.TotalAttempts, p.SuccessRate, p.AvgLatencyMs)
				}
			}
			return nil
		},
	}
}
