package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pagefetch/internal/providers/scraper"
)

// Racer decides when a page is ready and captures its content
type Racer struct {
	matcher      Matcher
	pollInterval time.Duration
	logger       *logging.Logger
}

// NewRacer creates a racer. A non-positive poll interval selects DefaultPollInterval.
func NewRacer(matcher Matcher, pollInterval time.Duration, logger *logging.Logger) *Racer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Racer{
		matcher:      matcher,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

type winner struct {
	result   Result
	strategy Strategy
}

// navigation lets the interception strategy give up once polling has stopped
// for good, either because the page failed to load or because it closed
type navigation struct {
	done chan struct{}
	err  error
}

func (n *navigation) fail(err error) {
	n.err = err
	close(n.done)
}

// Run drives page to readiness for req within req.Options.Timeout
func (r *Racer) Run(ctx context.Context, page Page, req Request) (Result, Strategy, error) {
	opts := req.Options.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	switch {
	case req.Raw:
		return r.raw(ctx, page, req.URL, opts)
	case req.Selector == "":
		return r.settle(ctx, page, req.URL, opts)
	}

	// Subscribe before navigating so the document response cannot slip past.
	responses := make(chan *Response, 1)
	stop := page.OnResponse(ctx, func(resp *Response) {
		if !isTargetDocument(resp, req.URL) {
			return
		}
		select {
		case responses <- resp:
		default:
		}
	})
	defer stop()

	nav := &navigation{done: make(chan struct{})}
	w, err := resilience.FirstSuccess(ctx,
		r.intercept(responses, nav, req.URL, req.Selector),
		r.poll(page, nav, req.URL, req.Selector, opts.WaitUntil),
	)
	if err == nil {
		return w.result, w.strategy, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{}, "", SelectorTimeoutError(req.URL, req.Selector)
	}
	return Result{}, "", BrowserError(req.URL, err)
}

// intercept checks the navigated document's response body for the selector
func (r *Racer) intercept(responses <-chan *Response, nav *navigation, target, selector string) resilience.Task[winner] {
	return func(ctx context.Context) (winner, error) {
		var resp *Response
		select {
		case resp = <-responses:
		case <-nav.done:
			select {
			case resp = <-responses:
			default:
				return winner{}, nav.err
			}
		case <-ctx.Done():
			return winner{}, ctx.Err()
		}

		body, err := resp.Body(ctx)
		if err != nil {
			return winner{}, BrowserError(target, err)
		}

		html, found, err := r.matcher.Match(body, resp.ContentType, selector)
		if err != nil {
			return winner{}, &Error{Kind: ErrBrowserIO, URL: target, Selector: selector, Err: err}
		}
		if !found {
			r.logger.Debug("selector absent from document response",
				zap.String("url", target),
				zap.String("selector", selector))
			return winner{}, &Error{Kind: ErrSelectorTimeout, URL: target, Selector: selector, Err: errors.New("selector not in initial document")}
		}

		return winner{
			result:   Result{URL: target, HTML: html},
			strategy: StrategyInterception,
		}, nil
	}
}

// poll navigates and then checks the live DOM every poll interval
func (r *Racer) poll(page Page, nav *navigation, target, selector string, waitUntil WaitUntil) resilience.Task[winner] {
	return func(ctx context.Context) (winner, error) {
		if err := page.Navigate(ctx, target, waitUntil); err != nil {
			err = BrowserError(target, err)
			nav.fail(err)
			return winner{}, err
		}

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			found, err := page.Has(ctx, selector)
			switch {
			case err != nil && errors.Is(err, ErrPageClosed):
				err = BrowserError(target, err)
				nav.fail(err)
				return winner{}, err
			case err != nil:
				r.logger.Debug("selector check failed",
					zap.String("url", target),
					zap.String("selector", selector),
					zap.Error(err))
			case found:
				html, err := page.HTML(ctx)
				if err != nil {
					err = BrowserError(target, err)
					nav.fail(err)
					return winner{}, err
				}
				return winner{
					result:   Result{URL: target, HTML: html},
					strategy: StrategyPolling,
				}, nil
			}

			select {
			case <-ctx.Done():
				return winner{}, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// settle navigates and returns the page content without a readiness check
func (r *Racer) settle(ctx context.Context, page Page, target string, opts Options) (Result, Strategy, error) {
	if err := page.Navigate(ctx, target, opts.WaitUntil); err != nil {
		return Result{}, "", BrowserError(target, err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return Result{}, "", BrowserError(target, err)
	}
	return Result{URL: target, HTML: html}, StrategyNavigation, nil
}

// raw navigates and returns the captured main document response
func (r *Racer) raw(ctx context.Context, page Page, target string, opts Options) (Result, Strategy, error) {
	if err := page.Navigate(ctx, target, opts.WaitUntil); err != nil {
		return Result{}, "", BrowserError(target, err)
	}

	resp := page.MainResponse()
	if resp == nil {
		return Result{}, "", NoResponseError(target)
	}

	body, err := resp.Body(ctx)
	if err != nil {
		return Result{}, "", BrowserError(target, err)
	}

	return Result{
		URL: target,
		Raw: &RawResponse{
			Body:        body,
			ContentType: resp.ContentType,
			Status:      resp.Status,
		},
	}, StrategyRaw, nil
}

func isTargetDocument(resp *Response, target string) bool {
	if resp == nil || resp.ResourceType != ResourceDocument {
		return false
	}
	if !scraper.IsHTML(resp.ContentType) {
		return false
	}
	return SameURL(resp.URL, target)
}

// SameURL compares URLs after normalizing the parts browsers rewrite:
// scheme and host case, and an empty path.
func SameURL(a, b string) bool {
	if a == b {
		return true
	}
	return normalizeURL(a) == normalizeURL(b)
}

func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""
	return u.String()
}
