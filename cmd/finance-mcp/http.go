package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"financeangle/internal/config"
	"financeangle/internal/transport"
)

func newHTTPCommand(baseURL *string) *cobra.Command {
	var rateLimit int

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve JSON-RPC over HTTP POST /",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dispatcher, logger, err := setup(config.TransportHTTP, *baseURL, os.Stdout)
			if err != nil {
				return err
			}

			srv := transport.NewHTTPServer(":"+cfg.HTTPPort, dispatcher, transport.HTTPOptions{
				MaxFrameBytes:      cfg.MaxFrameBytes,
				RateLimitPerMinute: rateLimit,
				Logger:             logger,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("HTTP transport listening", "port", cfg.HTTPPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("Shutting down HTTP transport")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 600, "Requests per minute allowed per client IP")
	return cmd
}
