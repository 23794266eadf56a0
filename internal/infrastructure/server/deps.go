package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/cache"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pagefetch/internal/providers/browser"
	"github.com/GriffinCanCode/pagefetch/internal/providers/http/client"
	"github.com/GriffinCanCode/pagefetch/internal/providers/scraper"
	"github.com/GriffinCanCode/pagefetch/internal/shared/utils"
)

// listDownloadRPS caps filter list requests; lists usually share one host
const listDownloadRPS = 4

// Browser is the process-wide browser session
type Browser interface {
	fetch.Session
	Started() bool
	Close() error
}

// Dependencies holds the components shared by the HTTP server and the CLI
type Dependencies struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
	Browser Browser
	Fetcher *fetch.Fetcher
}

// NewDependencies wires the fetch engine to a real browser session.
// Filter lists are downloaded before returning; failures are logged and the
// built-in block list still applies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := monitoring.NewMetrics()

	blocker := browser.NewBlocker(logger)
	if len(cfg.Adblock.Lists) > 0 {
		opts := client.DefaultOptions()
		opts.Timeout = cfg.Adblock.FetchTimeout

		downloader := client.NewClient(opts)
		downloader.SetRateLimit(listDownloadRPS)

		loadCtx, cancel := context.WithTimeout(ctx, cfg.Adblock.FetchTimeout)
		added, err := blocker.LoadLists(loadCtx, downloader, cfg.Adblock.Lists)
		cancel()
		if err != nil {
			logger.Warn("Some filter lists failed to load", zap.Error(err))
		}
		logger.Info("Content blocker ready",
			zap.Int("hosts", blocker.Len()),
			zap.Int("from_lists", added),
		)
	}

	session := browser.NewSession(browser.Config{
		Bin:       cfg.Browser.Bin,
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
		Stealth:   cfg.Browser.Stealth,
		Proxy:     cfg.Browser.Proxy,
	}, blocker, logger).WithMetrics(metrics)

	fetcher, err := NewFetcher(cfg, session, metrics, logger)
	if err != nil {
		return nil, err
	}

	return &Dependencies{
		Logger:  logger,
		Metrics: metrics,
		Browser: session,
		Fetcher: fetcher,
	}, nil
}

// NewFetcher builds the fetch engine over session using cfg
func NewFetcher(cfg *config.Config, session fetch.Session, metrics *monitoring.Metrics, logger *logging.Logger) (*fetch.Fetcher, error) {
	algorithm, err := utils.ParseHashAlgorithm(cfg.Cache.KeyHash)
	if err != nil {
		return nil, fmt.Errorf("cache key hash: %w", err)
	}

	limiterOpts := []resilience.LimiterOption{
		resilience.WithStrict(cfg.Logging.Development),
		resilience.WithLogger(logger),
	}
	if metrics != nil {
		limiterOpts = append(limiterOpts, resilience.WithObserver(metrics.SetPermitsInUse))
	}
	limiter := resilience.NewLimiter(cfg.Fetch.MaxConcurrentPages, limiterOpts...)

	var responses *cache.Cache[fetch.Result]
	if cfg.Cache.Enabled {
		responses = cache.New[fetch.Result](cfg.Cache.TTL, cfg.Cache.MaxEntries)
	}

	fetcher, err := fetch.NewFetcher(fetch.Config{
		Session:       session,
		Limiter:       limiter,
		Cache:         responses,
		Fingerprinter: cache.NewFingerprinter(utils.NewHasher(algorithm)),
		Matcher:       scraper.NewMatcher(),
		Retry:         resilience.Retry{MaxAttempts: cfg.Fetch.MaxRetries},
		PollInterval:  cfg.Fetch.PollInterval,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	if metrics != nil {
		fetcher.WithMetrics(metrics)
	}
	return fetcher, nil
}

// Close releases the browser session
func (d *Dependencies) Close() error {
	if d.Browser == nil {
		return nil
	}
	return d.Browser.Close()
}
