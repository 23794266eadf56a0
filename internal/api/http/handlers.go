package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/api/middleware"
	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/monitoring"
)

const (
	statusSoftFailure = http.StatusOK
	statusBadRequest  = http.StatusBadRequest

	headerFromCache = "X-From-Cache"
)

// Fetcher is the orchestration surface the handlers need
type Fetcher interface {
	FetchAll(ctx context.Context, b fetch.Batch) (fetch.BatchOutcome, error)
	CacheLen() int
	InUse() int
}

// SessionStatus reports browser state for health checks
type SessionStatus interface {
	Started() bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	fetcher Fetcher
	session SessionStatus
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewHandlers creates a new handler set. session and metrics may be nil.
func NewHandlers(fetcher Fetcher, session SessionStatus, metrics *monitoring.Metrics, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		fetcher: fetcher,
		session: session,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes mounts the handlers on router
func RegisterRoutes(router gin.IRoutes, h *Handlers) {
	router.GET("/", h.Fetch)
	router.GET("/health", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

type envelope struct {
	Success   bool     `json:"success"`
	FromCache *bool    `json:"fromCache,omitempty"`
	Data      []string `json:"data,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Fetch handles GET /
func (h *Handlers) Fetch(c *gin.Context) {
	logger := middleware.Logger(c, h.logger)

	batch, perr := parseBatch(c)
	if perr != nil {
		logger.Info("rejected fetch request", zap.String("reason", perr.message), zap.Int("status", perr.status))
		c.JSON(perr.status, envelope{Success: false, Error: perr.message})
		return
	}

	out, err := h.fetcher.FetchAll(c.Request.Context(), batch)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fetch.ErrValidation) {
			status = http.StatusBadRequest
		}
		logger.Error("fetch request failed",
			zap.Strings("urls", batch.URLs),
			zap.String("selector", batch.Selector),
			zap.Error(err))
		c.JSON(status, envelope{Success: false, Error: err.Error()})
		return
	}

	if batch.Raw {
		h.writeRaw(c, out)
		return
	}

	data := make([]string, len(out.Results))
	for i, res := range out.Results {
		data[i] = res.HTML
	}
	fromCache := out.FromCache
	c.JSON(http.StatusOK, envelope{Success: true, FromCache: &fromCache, Data: data})
}

func (h *Handlers) writeRaw(c *gin.Context, out fetch.BatchOutcome) {
	if len(out.Results) != 1 || out.Results[0].Raw == nil {
		c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: "no raw response captured"})
		return
	}
	raw := out.Results[0].Raw

	contentType := raw.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(raw.Body).String()
	}
	status := raw.Status
	if status == 0 {
		status = http.StatusOK
	}

	c.Header(headerFromCache, strconv.FormatBool(out.FromCache))
	c.Data(status, contentType, raw.Body)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	started := false
	if h.session != nil {
		started = h.session.Started()
	}

	body := gin.H{
		"status":       "healthy",
		"browser":      gin.H{"started": started},
		"permitsInUse": h.fetcher.InUse(),
		"cacheEntries": h.fetcher.CacheLen(),
	}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		body["uptimeSeconds"] = int64(h.metrics.Uptime().Seconds())
		body["requests"] = snap.TotalRequests
		body["attempts"] = snap.Attempts
		body["failedAttempts"] = snap.Failures
		body["cacheHits"] = snap.CacheHits
		body["cacheMisses"] = snap.CacheMisses
	}
	c.JSON(http.StatusOK, body)
}
