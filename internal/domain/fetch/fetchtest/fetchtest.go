// Package fetchtest provides an in-memory browser session for fetch tests.
package fetchtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/providers/scraper"
	"github.com/GriffinCanCode/pagefetch/internal/shared/id"
)

// Site scripts how a URL behaves when a fake page navigates to it
type Site struct {
	// Document is the body of the top-level document response
	Document    string
	ContentType string
	Status      int

	// DOM is the rendered document seen by Has and HTML. Defaults to Document.
	DOM string

	// AppearAfter delays the selector's appearance in the live DOM
	AppearAfter time.Duration

	// NavigateDelay is how long navigation takes to settle
	NavigateDelay time.Duration

	// NoResponse suppresses the document response entirely
	NoResponse bool

	// FailTimes makes the first n navigations fail with FailErr
	FailTimes int
	FailErr   error
}

// Session is a fake fetch.Session
type Session struct {
	mu          sync.Mutex
	sites       map[string]Site
	navigations map[string]int

	opened  atomic.Int64
	open    atomic.Int64
	maxOpen atomic.Int64

	// OpenErr, when set, fails every OpenPage call
	OpenErr error
}

// NewSession creates a session serving the given sites
func NewSession(sites map[string]Site) *Session {
	if sites == nil {
		sites = map[string]Site{}
	}
	return &Session{
		sites:       sites,
		navigations: make(map[string]int),
	}
}

// SetSite adds or replaces a site
func (s *Session) SetSite(url string, site Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[url] = site
}

// OpenPage implements fetch.Session
func (s *Session) OpenPage(ctx context.Context, opts fetch.PageOptions) (fetch.Page, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened.Add(1)
	n := s.open.Add(1)
	for {
		cur := s.maxOpen.Load()
		if n <= cur || s.maxOpen.CompareAndSwap(cur, n) {
			break
		}
	}
	return &Page{
		id:          id.NewPageID().String(),
		session:     s,
		opts:        opts,
		subscribers: make(map[int]func(*fetch.Response)),
	}, nil
}

// Opened returns the number of pages ever opened
func (s *Session) Opened() int { return int(s.opened.Load()) }

// Open returns the number of pages currently open
func (s *Session) Open() int { return int(s.open.Load()) }

// MaxOpen returns the highest number of simultaneously open pages
func (s *Session) MaxOpen() int { return int(s.maxOpen.Load()) }

// Navigations returns how many times url was navigated to
func (s *Session) Navigations(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigations[url]
}

func (s *Session) visit(url string) (Site, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[url]
	s.navigations[url]++
	return site, s.navigations[url], ok
}

// Page is a fake fetch.Page
type Page struct {
	id      string
	session *Session
	opts    fetch.PageOptions

	mu          sync.Mutex
	site        *Site
	navigatedAt time.Time
	main        *fetch.Response
	closed      bool
	nextSub     int
	subscribers map[int]func(*fetch.Response)
}

// ErrUnknownSite is returned when navigating to a URL without a Site
var ErrUnknownSite = errors.New("fetchtest: unknown site")

func (p *Page) ID() string { return p.id }

// Adblock reports whether the page was opened with the content blocker
func (p *Page) Adblock() bool { return p.opts.Adblock }

func (p *Page) Navigate(ctx context.Context, url string, waitUntil fetch.WaitUntil) error {
	if p.isClosed() {
		return fetch.PageClosedError(url, errors.New("navigate on closed page"))
	}

	site, n, ok := p.session.visit(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSite, url)
	}
	if n <= site.FailTimes {
		if site.FailErr != nil {
			return site.FailErr
		}
		return fmt.Errorf("net::ERR_CONNECTION_RESET at %s", url)
	}

	if site.DOM == "" {
		site.DOM = site.Document
	}
	status := site.Status
	if status == 0 {
		status = 200
	}

	var resp *fetch.Response
	if !site.NoResponse {
		body := []byte(site.Document)
		resp = &fetch.Response{
			URL:          url,
			ResourceType: fetch.ResourceDocument,
			ContentType:  site.ContentType,
			Status:       status,
			MainFrame:    true,
			Body: func(context.Context) ([]byte, error) {
				return body, nil
			},
		}
	}

	p.mu.Lock()
	p.site = &site
	p.navigatedAt = time.Now()
	p.main = resp
	subs := make([]func(*fetch.Response), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	if resp != nil {
		for _, fn := range subs {
			fn(resp)
		}
	}

	if site.NavigateDelay > 0 {
		timer := time.NewTimer(site.NavigateDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (p *Page) OnResponse(ctx context.Context, fn func(*fetch.Response)) func() {
	p.mu.Lock()
	key := p.nextSub
	p.nextSub++
	p.subscribers[key] = fn
	p.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subscribers, key)
			p.mu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	return stop
}

// Subscribers returns the number of live OnResponse subscriptions
func (p *Page) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	if p.isClosed() {
		return false, fetch.PageClosedError("", errors.New("page closed"))
	}

	p.mu.Lock()
	site, at := p.site, p.navigatedAt
	p.mu.Unlock()

	if site == nil || time.Since(at) < site.AppearAfter {
		return false, nil
	}
	return scraper.NewMatcher().Contains(site.DOM, selector)
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.isClosed() {
		return "", fetch.PageClosedError("", errors.New("page closed"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.site == nil {
		return "<html><head></head><body></body></html>", nil
	}
	return p.site.DOM, nil
}

func (p *Page) MainResponse() *fetch.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.session.open.Add(-1)
	return nil
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
