package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/server"
)

func newServeCmd() *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP fetch service",
		Long: `Starts the HTTP service:

  GET /         fetch pages (url, selector, timeout, waitUntil, raw, adblock)
  GET /health   browser, permit and cache status
  GET /metrics  Prometheus metrics

SIGINT or SIGTERM drains in-flight requests and closes the browser.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != "" {
				cfg.Server.Port = port
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			deps, err := buildDeps(ctx, cfg, logger)
			if err != nil {
				logger.Error("Failed to initialize dependencies", zap.Error(err))
				return err
			}

			srv, err := server.NewServer(cfg, deps)
			if err != nil {
				_ = deps.Close()
				return err
			}

			if err := srv.Run(ctx); err != nil {
				logger.Error("Server error", zap.Error(err))
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides HOST)")
	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	return cmd
}
