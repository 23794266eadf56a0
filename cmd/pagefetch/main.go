package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/server"
)

var (
	// Global flags
	devMode  bool
	logLevel string

	// buildDeps is swapped in tests
	buildDeps = server.NewDependencies
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pagefetch",
		Short: "Fetch rendered pages through a shared headless browser",
		Long: `pagefetch loads pages in a shared headless browser and returns their
HTML once a CSS or XPath selector is present, or the raw upstream response.

Concurrent pages are bounded, transient failures retried with backoff and
results cached for a short TTL.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&devMode, "dev", false, "Development mode (console logs, strict invariants)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newFetchCmd())
	return root
}

// loadConfig reads the environment and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if devMode {
		cfg.Logging.Development = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
