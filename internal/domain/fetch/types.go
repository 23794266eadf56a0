package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WaitUntil names the navigation milestone a page must reach before it counts as settled
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle0     WaitUntil = "networkidle0"
	WaitNetworkIdle2     WaitUntil = "networkidle2"
)

// ParseWaitUntil validates a waitUntil value. Empty selects WaitLoad.
func ParseWaitUntil(s string) (WaitUntil, error) {
	switch w := WaitUntil(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WaitLoad, nil
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle0, WaitNetworkIdle2:
		return w, nil
	default:
		return "", fmt.Errorf("unsupported waitUntil %q", s)
	}
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
)

// Options tune a single fetch
type Options struct {
	Timeout   time.Duration
	WaitUntil WaitUntil
	Adblock   bool
}

// DefaultOptions returns the options used when a caller supplies none
func DefaultOptions() Options {
	return Options{
		Timeout:   DefaultTimeout,
		WaitUntil: WaitLoad,
		Adblock:   true,
	}
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.WaitUntil == "" {
		o.WaitUntil = WaitLoad
	}
	return o
}

// Request describes one URL to fetch
type Request struct {
	URL      string
	Selector string
	Options  Options
	Raw      bool
}

// fingerprintOptions is the option set that identifies a request in the cache
func (r Request) fingerprintOptions() map[string]any {
	return map[string]any{
		"selector":  r.Selector,
		"raw":       r.Raw,
		"timeout":   r.Options.Timeout.Milliseconds(),
		"waitUntil": string(r.Options.WaitUntil),
		"adblock":   r.Options.Adblock,
	}
}

// Batch describes one API call, possibly covering several URLs
type Batch struct {
	URLs     []string
	Selector string
	Options  Options
	Raw      bool
}

// RawResponse is the upstream document response captured by the browser
type RawResponse struct {
	Body        []byte
	ContentType string
	Status      int
}

// Result holds exactly one of HTML or Raw
type Result struct {
	URL  string
	HTML string
	Raw  *RawResponse
}

// IsRaw reports whether the result carries a raw response
func (r Result) IsRaw() bool {
	return r.Raw != nil
}

// Strategy identifies how an attempt produced its result
type Strategy string

const (
	StrategyInterception Strategy = "interception"
	StrategyPolling      Strategy = "polling"
	StrategyNavigation   Strategy = "navigation"
	StrategyRaw          Strategy = "raw"
	StrategyCache        Strategy = "cache"
)

// Outcome is the result of a single-URL fetch
type Outcome struct {
	Result    Result
	FromCache bool
	Attempts  int
	Strategy  Strategy
}

// BatchOutcome is the result of a Batch, in request order
type BatchOutcome struct {
	Results   []Result
	FromCache bool
}

// ResourceDocument is the resource type of top-level HTML documents
const ResourceDocument = "Document"

// Response is a network response observed by a page
type Response struct {
	URL          string
	ResourceType string
	ContentType  string
	Status       int
	MainFrame    bool

	// Body loads the response body. It may only be called once the
	// response has finished loading, which is when it is delivered.
	Body func(ctx context.Context) ([]byte, error)
}

// PageOptions configure a newly opened page
type PageOptions struct {
	Adblock bool
}

// Session opens pages on a shared browser
type Session interface {
	OpenPage(ctx context.Context, opts PageOptions) (Page, error)
}

// Page is a single browser tab owned by one fetch attempt
type Page interface {
	ID() string

	// Navigate loads url and blocks until waitUntil is reached
	Navigate(ctx context.Context, url string, waitUntil WaitUntil) error

	// OnResponse delivers every finished response to fn until ctx is
	// done or stop is called. stop blocks until delivery has ended.
	OnResponse(ctx context.Context, fn func(*Response)) (stop func())

	// Has reports whether selector matches an element in the live DOM
	Has(ctx context.Context, selector string) (bool, error)

	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)

	// MainResponse returns the response to the most recent top-level
	// navigation, or nil if none was captured
	MainResponse() *Response

	Close() error
}

// Matcher checks an intercepted document for a selector
type Matcher interface {
	Match(body []byte, contentType, selector string) (html string, found bool, err error)
	// Validate reports whether selector can be evaluated at all
	Validate(selector string) error
}
