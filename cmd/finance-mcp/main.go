package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"financeangle/internal/cli"
	"financeangle/internal/gateway"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newRootCommand runs the stdio transport when no subcommand is given.
func newRootCommand() *cobra.Command {
	var baseURL string

	stdio := newStdioCommand(&baseURL)
	rootCmd := &cobra.Command{
		Use:     "finance-mcp",
		Short:   "Finance Angle tool gateway",
		Version: gateway.ServerVersion,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		RunE:         stdio.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Finance Angle backend URL (overrides FINANCE_ANGLE_BASE_URL)")

	rootCmd.AddCommand(stdio, newHTTPCommand(&baseURL))
	return rootCmd
}
