package main

import (
	"io"
	"strings"

	"financeangle/internal/cli"
	"financeangle/internal/config"
	"financeangle/internal/gateway"
	"financeangle/internal/log"
)

// setup loads the gateway configuration for transport and builds the shared
// dispatcher. Logs go to logOut.
func setup(transport, baseURL string, logOut io.Writer) (*config.GatewayConfig, *gateway.Dispatcher, *log.Logger, error) {
	cfg, err := config.LoadGateway(transport)
	if err != nil {
		return nil, nil, nil, err
	}
	if u := strings.TrimSpace(baseURL); u != "" {
		cfg.BaseURL = strings.TrimRight(u, "/")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger := cli.SetupLogger(log.ComponentGateway, cfg.LogLevel, logOut)

	backend := gateway.NewBackend(gateway.BackendConfig{
		BaseURL:        cfg.BaseURL,
		RequestTimeout: cfg.BackendTimeout,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	registry, err := gateway.DefaultRegistry(backend)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("Gateway configured",
		"transport", transport,
		log.FieldBackendURL, cfg.BaseURL,
		"tools", registry.Len())
	return cfg, gateway.NewDispatcher(registry, logger), logger, nil
}
