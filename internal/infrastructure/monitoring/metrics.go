package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Fetch metrics
	FetchAttempts   *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	RaceWinners     *prometheus.CounterVec
	Retries         prometheus.Counter
	RetryDelay      prometheus.Histogram
	PermitsInUse    prometheus.Gauge
	PagesOpen       prometheus.Gauge
	BlockedRequests prometheus.Counter

	// Cache metrics
	CacheLookups *prometheus.CounterVec
	CacheEntries prometheus.Gauge

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests int64
	TotalErrors   int64
	Attempts      int64
	Failures      int64
	CacheHits     int64
	CacheMisses   int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagefetch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagefetch_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Fetch metrics
		FetchAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_fetch_attempts_total",
				Help: "Total number of fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagefetch_fetch_attempt_duration_seconds",
				Help:    "Fetch attempt duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),
		RaceWinners: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_race_winners_total",
				Help: "Successful attempts by the strategy that produced them",
			},
			[]string{"strategy"},
		),
		Retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagefetch_retries_total",
				Help: "Total number of retried attempts",
			},
		),
		RetryDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagefetch_retry_delay_seconds",
				Help:    "Backoff delay before a retry in seconds",
				Buckets: []float64{1, 2, 4, 5},
			},
		),
		PermitsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagefetch_permits_in_use",
				Help: "Number of concurrency permits currently held",
			},
		),
		PagesOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagefetch_pages_open",
				Help: "Number of browser pages currently open",
			},
		),
		BlockedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pagefetch_blocked_requests_total",
				Help: "Total number of subresource requests blocked by the content blocker",
			},
		),

		// Cache metrics
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefetch_cache_lookups_total",
				Help: "Cache lookups by result",
			},
			[]string{"result"},
		),
		CacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagefetch_cache_entries",
				Help: "Number of entries in the response cache",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pagefetch_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordFetchAttempt records one attempt and how it ended
func (m *Metrics) RecordFetchAttempt(outcome string, duration time.Duration) {
	m.FetchAttempts.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Attempts++
	if outcome != "success" {
		m.snapshot.Failures++
	}
	m.mu.Unlock()
}

// RecordRaceWinner records the strategy that completed a successful attempt
func (m *Metrics) RecordRaceWinner(strategy string) {
	m.RaceWinners.WithLabelValues(strategy).Inc()
}

// RecordRetry records a retry scheduled after delay
func (m *Metrics) RecordRetry(delay time.Duration) {
	m.Retries.Inc()
	m.RetryDelay.Observe(delay.Seconds())
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()

	m.mu.Lock()
	if hit {
		m.snapshot.CacheHits++
	} else {
		m.snapshot.CacheMisses++
	}
	m.mu.Unlock()
}

// SetCacheEntries sets the number of cached responses
func (m *Metrics) SetCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}

// SetPermitsInUse sets the number of held permits
func (m *Metrics) SetPermitsInUse(count int64) {
	m.PermitsInUse.Set(float64(count))
}

// IncPagesOpen increments open pages
func (m *Metrics) IncPagesOpen() {
	m.PagesOpen.Inc()
}

// DecPagesOpen decrements open pages
func (m *Metrics) DecPagesOpen() {
	m.PagesOpen.Dec()
}

// IncBlockedRequests counts a request refused by the content blocker
func (m *Metrics) IncBlockedRequests() {
	m.BlockedRequests.Inc()
}

// Snapshot returns current values for the JSON health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Uptime returns how long the collector has existed
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
