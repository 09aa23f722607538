package main

import (
	"os"

	"github.com/spf13/cobra"

	"financeangle/internal/config"
	"financeangle/internal/transport"
)

func newStdioCommand(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve Content-Length framed JSON-RPC on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries frames, so logs must go to stderr.
			cfg, dispatcher, logger, err := setup(config.TransportStdio, *baseURL, os.Stderr)
			if err != nil {
				return err
			}
			srv := transport.NewStdioServer(dispatcher, os.Stdin, os.Stdout, cfg.MaxFrameBytes, logger)
			return srv.Serve(cmd.Context())
		},
	}
}
