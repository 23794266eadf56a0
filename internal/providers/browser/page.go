package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/providers/scraper"
	"github.com/GriffinCanCode/pagefetch/internal/shared/id"
)

const (
	idleWindow       = 500 * time.Millisecond
	idleCheckEvery   = 50 * time.Millisecond
	networkIdle0Max  = 0
	networkIdle2Max  = 2
	xpathPrefixLabel = "xpath="
)

type subscriber struct {
	ctx context.Context
	fn  func(*fetch.Response)
}

// Page is a rod page implementing fetch.Page
type Page struct {
	id     string
	page   *rod.Page
	logger *logging.Logger

	// ctx bounds the page's event loops; cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	pending  map[proto.NetworkRequestID]*proto.NetworkResponseReceived
	inflight map[proto.NetworkRequestID]struct{}
	lastBusy time.Time
	main     *fetch.Response

	subMu   sync.Mutex
	subs    map[int]subscriber
	nextSub int

	closed atomic.Bool
}

func newPage(rp *rod.Page, logger *logging.Logger) (*Page, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Page{
		id:       id.NewPageID().String(),
		page:     rp,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[proto.NetworkRequestID]*proto.NetworkResponseReceived),
		inflight: make(map[proto.NetworkRequestID]struct{}),
		lastBusy: time.Now(),
		subs:     make(map[int]subscriber),
	}
	p.logger = logger.With(zap.String("page", p.id))

	if err := (proto.NetworkEnable{}).Call(rp); err != nil {
		cancel()
		return nil, fmt.Errorf("enable network domain: %w", err)
	}

	wait := rp.Context(ctx).EachEvent(
		p.onRequest,
		p.onResponse,
		p.onFinished,
		p.onFailed,
	)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		wait()
	}()

	return p, nil
}

func (p *Page) ID() string { return p.id }

// Navigate loads url and waits for the requested milestone
func (p *Page) Navigate(ctx context.Context, url string, waitUntil fetch.WaitUntil) error {
	if p.closed.Load() {
		return fetch.PageClosedError(url, errors.New("navigate on closed page"))
	}

	p.mu.Lock()
	p.main = nil
	p.mu.Unlock()

	rp := p.page.Context(ctx)

	var waitDOM func()
	if waitUntil == fetch.WaitDOMContentLoaded {
		waitDOM = rp.WaitEvent(&proto.PageDomContentEventFired{})
	}

	if err := rp.Navigate(url); err != nil {
		return classify(url, err)
	}

	var err error
	switch waitUntil {
	case fetch.WaitDOMContentLoaded:
		waitDOM()
		err = ctx.Err()
	case fetch.WaitNetworkIdle0:
		err = p.waitNetworkIdle(ctx, networkIdle0Max)
	case fetch.WaitNetworkIdle2:
		err = p.waitNetworkIdle(ctx, networkIdle2Max)
	default:
		err = rp.WaitLoad()
	}
	if err != nil {
		return classify(url, err)
	}
	return nil
}

// waitNetworkIdle returns once at most max requests have been in flight for idleWindow
func (p *Page) waitNetworkIdle(ctx context.Context, max int) error {
	ticker := time.NewTicker(idleCheckEvery)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		busy := len(p.inflight) > max
		if busy {
			p.lastBusy = time.Now()
		}
		quietFor := time.Since(p.lastBusy)
		p.mu.Unlock()

		if !busy && quietFor >= idleWindow {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return fetch.PageClosedError("", errors.New("page closed while waiting for network idle"))
		case <-ticker.C:
		}
	}
}

// OnResponse subscribes fn to finished responses until ctx ends or stop is called
func (p *Page) OnResponse(ctx context.Context, fn func(*fetch.Response)) func() {
	p.subMu.Lock()
	key := p.nextSub
	p.nextSub++
	p.subs[key] = subscriber{ctx: ctx, fn: fn}
	p.subMu.Unlock()

	return func() {
		// Delivery holds subMu, so removal waits for an in-progress delivery.
		p.subMu.Lock()
		delete(p.subs, key)
		p.subMu.Unlock()
	}
}

// Has checks the live DOM for selector
func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	rp := p.page.Context(ctx)

	var (
		found bool
		err   error
	)
	if scraper.IsXPath(selector) {
		found, _, err = rp.HasX(strings.TrimPrefix(selector, xpathPrefixLabel))
	} else {
		found, _, err = rp.Has(selector)
	}
	if err != nil {
		return false, classify("", err)
	}
	return found, nil
}

// HTML returns the serialized document
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", classify("", err)
	}
	return html, nil
}

// MainResponse returns the latest top-level document response
func (p *Page) MainResponse() *fetch.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.main
}

// Close stops event processing and closes the tab
func (p *Page) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	err := p.page.Close()
	p.wg.Wait()
	if err != nil {
		return classify("", err)
	}
	return nil
}

func (p *Page) onRequest(ev *proto.NetworkRequestWillBeSent) {
	p.mu.Lock()
	p.inflight[ev.RequestID] = struct{}{}
	p.lastBusy = time.Now()
	p.mu.Unlock()
}

func (p *Page) onResponse(ev *proto.NetworkResponseReceived) {
	p.mu.Lock()
	p.pending[ev.RequestID] = ev
	p.mu.Unlock()
}

func (p *Page) onFailed(ev *proto.NetworkLoadingFailed) {
	p.mu.Lock()
	delete(p.inflight, ev.RequestID)
	delete(p.pending, ev.RequestID)
	p.mu.Unlock()

	if ev.BlockedReason != "" || ev.ErrorText != "" {
		p.logger.Debug("request failed",
			zap.String("request", string(ev.RequestID)),
			zap.String("error", ev.ErrorText))
	}
}

func (p *Page) onFinished(ev *proto.NetworkLoadingFinished) {
	p.mu.Lock()
	delete(p.inflight, ev.RequestID)
	received, ok := p.pending[ev.RequestID]
	delete(p.pending, ev.RequestID)
	p.mu.Unlock()

	if !ok || received.Response == nil {
		return
	}

	resp := p.toResponse(received)
	if resp.MainFrame && resp.ResourceType == fetch.ResourceDocument {
		p.mu.Lock()
		p.main = resp
		p.mu.Unlock()
	}

	p.subMu.Lock()
	defer p.subMu.Unlock()
	for key, sub := range p.subs {
		if sub.ctx.Err() != nil {
			delete(p.subs, key)
			continue
		}
		sub.fn(resp)
	}
}

func (p *Page) toResponse(ev *proto.NetworkResponseReceived) *fetch.Response {
	requestID := ev.RequestID
	page := p.page

	return &fetch.Response{
		URL:          ev.Response.URL,
		ResourceType: string(ev.Type),
		ContentType:  contentType(ev.Response),
		Status:       ev.Response.Status,
		MainFrame:    ev.FrameID == page.FrameID,
		Body: func(ctx context.Context) ([]byte, error) {
			res, err := proto.NetworkGetResponseBody{RequestID: requestID}.Call(page.Context(ctx))
			if err != nil {
				return nil, classify(ev.Response.URL, err)
			}
			if res.Base64Encoded {
				return base64.StdEncoding.DecodeString(res.Body)
			}
			return []byte(res.Body), nil
		},
	}
}

func contentType(resp *proto.NetworkResponse) string {
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "content-type") {
			return v.Str()
		}
	}
	return resp.MIMEType
}

// classify maps driver errors onto fetch error kinds
func classify(url string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) && isClosedMessage(cdpErr.Message) {
		return fetch.PageClosedError(url, err)
	}
	if isClosedMessage(err.Error()) {
		return fetch.PageClosedError(url, err)
	}
	return fetch.BrowserError(url, err)
}

func isClosedMessage(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "session closed") ||
		strings.Contains(msg, "no target with given id") ||
		strings.Contains(msg, "session with given id not found")
}
