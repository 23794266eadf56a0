package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/pagefetch/internal/shared/id"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey = "pagefetch.request_id"
	loggerKey    = "pagefetch.logger"

	maxInboundIDLength = 128
)

// RequestID assigns every request an ID, echoes it in the response and
// stores a logger carrying it on the context. A well-formed inbound
// X-Request-ID is propagated instead of generating a new one.
func RequestID(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNop()
	}

	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if !acceptableID(reqID) {
			reqID = id.NewRequestID().String()
		}

		c.Set(requestIDKey, reqID)
		c.Set(loggerKey, logger.With(zap.String("request_id", reqID)))
		c.Header(RequestIDHeader, reqID)

		c.Next()
	}
}

// GetRequestID returns the ID assigned by RequestID, or "" when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger returns the request-scoped logger, falling back to fallback.
func Logger(c *gin.Context, fallback *logging.Logger) *logging.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*logging.Logger); ok {
			return l
		}
	}
	if fallback == nil {
		return logging.NewNop()
	}
	return fallback
}

func acceptableID(s string) bool {
	if s == "" || len(s) > maxInboundIDLength {
		return false
	}
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
