// Command checkout is a terminal buyer for the payment server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"checkout/internal/client"
	"checkout/internal/config"
)

var Version = "dev"

// app is shared by the subcommands once the root command has loaded config.
type app struct {
	cfg    *config.ClientConfig
	client *client.Client
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "checkout",
		Short:         "Drive payments against the checkout server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("url"); url != "" {
				cfg.BaseURL = url
			}
			a.cfg = cfg
			a.client = client.New(*cfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().String("url", "", "Server base URL (overrides CHECKOUT_BASE_URL)")

	rootCmd.AddCommand(a.cardsCmd())
	rootCmd.AddCommand(a.orderCmd())
	rootCmd.AddCommand(a.payCmd())
	rootCmd.AddCommand(a.verifyCmd())
	rootCmd.AddCommand(a.cancelCmd())
	rootCmd.AddCommand(a.refundCmd())
	rootCmd.AddCommand(a.attemptsCmd())
	rootCmd.AddCommand(a.paymentsCmd())
	rootCmd.AddCommand(a.receiptCmd())
	rootCmd.AddCommand(a.logsCmd())
	rootCmd.AddCommand(a.metricsCmd())
	rootCmd.AddCommand(a.runCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
