package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch/fetchtest"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/config"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/monitoring"
)

type fakeBrowser struct {
	*fetchtest.Session
	closes atomic.Int32
}

func (b *fakeBrowser) Started() bool { return true }

func (b *fakeBrowser) Close() error {
	b.closes.Add(1)
	return nil
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeBrowser) {
	t.Helper()

	cfg := config.Default()
	cfg.Logging.Development = true
	cfg.Fetch.PollInterval = 10 * time.Millisecond
	cfg.Server.ShutdownTimeout = time.Second
	if mutate != nil {
		mutate(cfg)
	}

	browser := &fakeBrowser{Session: fetchtest.NewSession(map[string]fetchtest.Site{
		"https://a.test/": {Document: `<html><body><p class="x">hi</p></body></html>`},
	})}
	metrics := monitoring.NewMetrics()

	fetcher, err := NewFetcher(cfg, browser, metrics, logging.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(cfg, &Dependencies{
		Logger:  logging.NewNop(),
		Metrics: metrics,
		Browser: browser,
		Fetcher: fetcher,
	})
	require.NoError(t, err)
	return srv, browser
}

func TestNewServerRequiresFetcher(t *testing.T) {
	_, err := NewServer(config.Default(), &Dependencies{})
	assert.Error(t, err)

	_, err = NewServer(config.Default(), nil)
	assert.Error(t, err)
}

func TestNewFetcherRejectsUnknownHash(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.KeyHash = "md5"

	_, err := NewFetcher(cfg, fetchtest.NewSession(nil), monitoring.NewMetrics(), nil)
	assert.Error(t, err)
}

func TestHandlerServesFetch(t *testing.T) {
	srv, browser := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/?url=https://a.test/&selector=.x", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, browser.Opened())
}

func TestHandlerCompressesLargeResponses(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestRateLimitWiring(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv, browser := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.NoError(t, srv.Close())
	assert.EqualValues(t, 1, browser.closes.Load(), "browser must be closed exactly once")
}
