package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/cache"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/resilience"
)

// Config wires a Fetcher to its collaborators
type Config struct {
	Session       Session
	Limiter       *resilience.Limiter
	Cache         *cache.Cache[Result]
	Fingerprinter *cache.Fingerprinter
	Matcher       Matcher
	Retry         resilience.Retry
	PollInterval  time.Duration
	Logger        *logging.Logger
}

// Fetcher runs fetches against a shared browser session
type Fetcher struct {
	session       Session
	limiter       *resilience.Limiter
	cache         *cache.Cache[Result]
	fingerprinter *cache.Fingerprinter
	matcher       Matcher
	racer         *Racer
	retry         resilience.Retry
	logger        *logging.Logger
	metrics       *monitoring.Metrics
}

// NewFetcher creates a fetcher. Session, Limiter and Matcher are required;
// Cache may be nil to disable caching.
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("limiter required")
	}
	if cfg.Matcher == nil {
		return nil, fmt.Errorf("matcher required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	fingerprinter := cfg.Fingerprinter
	if fingerprinter == nil {
		fingerprinter = cache.NewFingerprinter(nil)
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = resilience.DefaultMaxAttempts
	}
	retry.Retryable = IsRetryable

	return &Fetcher{
		session:       cfg.Session,
		limiter:       cfg.Limiter,
		cache:         cfg.Cache,
		fingerprinter: fingerprinter,
		matcher:       cfg.Matcher,
		racer:         NewRacer(cfg.Matcher, cfg.PollInterval, logger),
		retry:         retry,
		logger:        logger,
	}, nil
}

// WithMetrics adds metrics tracking to the fetcher
func (f *Fetcher) WithMetrics(metrics *monitoring.Metrics) *Fetcher {
	f.metrics = metrics
	return f
}

// Validate checks a batch before any network activity
func Validate(b Batch) error {
	switch {
	case len(b.URLs) == 0:
		return ValidationError("url parameter is required")
	case b.Raw && len(b.URLs) > 1:
		return ValidationError("raw mode accepts a single url")
	case b.Raw && b.Selector != "":
		return ValidationError("raw mode does not accept a selector")
	case !b.Raw && b.Selector == "":
		return ValidationError("selector parameter is required")
	}
	for _, u := range b.URLs {
		if u == "" {
			return ValidationError("url must not be empty")
		}
	}
	if _, err := ParseWaitUntil(string(b.Options.WaitUntil)); err != nil {
		return ValidationError("%v", err)
	}
	if b.Options.Timeout < 0 {
		return ValidationError("timeout must not be negative")
	}
	return nil
}

// Validate runs the package-level checks and then compiles the selector, so
// a malformed selector fails fast instead of polling until the deadline.
func (f *Fetcher) Validate(b Batch) error {
	if err := Validate(b); err != nil {
		return err
	}
	return f.validateSelector(b.Selector)
}

func (f *Fetcher) validateSelector(selector string) error {
	if selector == "" {
		return nil
	}
	if err := f.matcher.Validate(selector); err != nil {
		return ValidationError("%v", err)
	}
	return nil
}

// FetchAll validates b and fetches every URL concurrently. Results are
// returned in request order; FromCache is set only when every URL was
// served from the cache.
func (f *Fetcher) FetchAll(ctx context.Context, b Batch) (BatchOutcome, error) {
	if err := f.Validate(b); err != nil {
		return BatchOutcome{}, err
	}

	outcomes := make([]Outcome, len(b.URLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range b.URLs {
		g.Go(func() error {
			out, err := f.Fetch(gctx, Request{
				URL:      u,
				Selector: b.Selector,
				Options:  b.Options,
				Raw:      b.Raw,
			})
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchOutcome{}, err
	}

	result := BatchOutcome{
		Results:   make([]Result, len(outcomes)),
		FromCache: true,
	}
	for i, out := range outcomes {
		result.Results[i] = out.Result
		result.FromCache = result.FromCache && out.FromCache
	}
	return result, nil
}

// Fetch serves req from the cache or runs it through the retry policy.
// Once started, an attempt runs until it succeeds, times out or exhausts its
// retries; cancelling ctx does not abort it.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Outcome, error) {
	req.Options = req.Options.withDefaults()
	logger := f.logger.With(zap.String("url", req.URL))

	if err := f.validateSelector(req.Selector); err != nil {
		return Outcome{}, err
	}

	key, err := f.fingerprinter.Fingerprint(req.URL, req.fingerprintOptions())
	if err != nil {
		return Outcome{}, fmt.Errorf("fingerprint request: %w", err)
	}

	if f.cache != nil {
		if res, ok := f.cache.Get(key); ok {
			f.recordCache(true)
			logger.Debug("served from cache")
			return Outcome{Result: res, FromCache: true, Strategy: StrategyCache}, nil
		}
		f.recordCache(false)
	}

	ctx = context.WithoutCancel(ctx)

	retry := f.retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("fetch attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if f.metrics != nil {
			f.metrics.RecordRetry(delay)
		}
	}

	var (
		result   Result
		strategy Strategy
		attempts int
	)
	err = retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		res, strat, err := f.attempt(ctx, req, logger.With(zap.Int("attempt", attempt)))
		if err != nil {
			return err
		}
		result, strategy = res, strat
		return nil
	})
	if err != nil {
		logger.Error("fetch failed",
			zap.Int("attempts", attempts),
			zap.Error(err))
		return Outcome{}, err
	}

	if f.cache != nil {
		f.cache.Set(key, result)
		if f.metrics != nil {
			f.metrics.SetCacheEntries(f.cache.Len())
		}
	}

	return Outcome{Result: result, Attempts: attempts, Strategy: strategy}, nil
}

// attempt holds one permit and one page for the duration of a single race
func (f *Fetcher) attempt(ctx context.Context, req Request, logger *logging.Logger) (res Result, strat Strategy, err error) {
	timer := monitoring.NewTimer(f.metrics)
	defer func() {
		timer.Stop(outcomeLabel(err))
	}()

	permit, err := f.limiter.Acquire(ctx)
	if err != nil {
		return Result{}, "", BrowserError(req.URL, err)
	}
	defer permit.Release()

	page, err := f.session.OpenPage(ctx, PageOptions{Adblock: req.Options.Adblock})
	if err != nil {
		return Result{}, "", BrowserError(req.URL, err)
	}
	if f.metrics != nil {
		f.metrics.IncPagesOpen()
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Debug("page close failed", zap.String("page", page.ID()), zap.Error(cerr))
		}
		if f.metrics != nil {
			f.metrics.DecPagesOpen()
		}
	}()

	logger.Debug("page opened", zap.String("page", page.ID()))

	res, strat, err = f.racer.Run(ctx, page, req)
	if err != nil {
		return Result{}, "", err
	}

	if f.metrics != nil {
		f.metrics.RecordRaceWinner(string(strat))
	}
	logger.Info("fetch attempt succeeded", zap.String("strategy", string(strat)))
	return res, strat, nil
}

func (f *Fetcher) recordCache(hit bool) {
	if f.metrics != nil {
		f.metrics.RecordCacheLookup(hit)
	}
}

// CacheLen returns the number of cached responses
func (f *Fetcher) CacheLen() int {
	if f.cache == nil {
		return 0
	}
	return f.cache.Len()
}

// InUse returns the number of permits currently held
func (f *Fetcher) InUse() int {
	return f.limiter.InUse()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSelectorTimeout):
		return "selector_timeout"
	case errors.Is(err, ErrPageClosed):
		return "page_closed"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "browser_io"
	}
}
