package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/pagefetch/internal/domain/fetch"
)

// paramError is a request problem together with the status it is reported with
type paramError struct {
	status  int
	message string
}

func (e *paramError) Error() string { return e.message }

// isFalse reports whether a flag value is exactly "false" or "0"
func isFalse(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, "false") || v == "0"
}

// parseBatch reads the fetch query parameters. Problems are checked in the
// order clients see them: url, raw conflicts, selector, then option syntax.
func parseBatch(c *gin.Context) (fetch.Batch, *paramError) {
	var urls []string
	for _, u := range c.QueryArray("url") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	selector := strings.TrimSpace(c.Query("selector"))

	rawValue, rawSet := c.GetQuery("raw")
	raw := rawSet && !isFalse(rawValue)

	if len(urls) == 0 {
		return fetch.Batch{}, &paramError{status: statusSoftFailure, message: "url parameter is required"}
	}
	if raw && selector != "" {
		return fetch.Batch{}, &paramError{status: statusBadRequest, message: "selector cannot be used with raw"}
	}
	if raw && len(urls) > 1 {
		return fetch.Batch{}, &paramError{status: statusBadRequest, message: "raw accepts a single url"}
	}
	if !raw && selector == "" {
		return fetch.Batch{}, &paramError{status: statusSoftFailure, message: "selector parameter is required"}
	}

	opts := fetch.DefaultOptions()

	if v, ok := c.GetQuery("timeout"); ok {
		d, err := parseTimeout(v)
		if err != nil {
			return fetch.Batch{}, &paramError{status: statusBadRequest, message: err.Error()}
		}
		opts.Timeout = d
	}

	if v, ok := c.GetQuery("waitUntil"); ok {
		w, err := fetch.ParseWaitUntil(v)
		if err != nil {
			return fetch.Batch{}, &paramError{status: statusBadRequest, message: err.Error()}
		}
		opts.WaitUntil = w
	}

	if v, ok := c.GetQuery("adblock"); ok && isFalse(v) {
		opts.Adblock = false
	}

	return fetch.Batch{
		URLs:     urls,
		Selector: selector,
		Options:  opts,
		Raw:      raw,
	}, nil
}

func parseTimeout(v string) (time.Duration, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("timeout must be a positive number of milliseconds, got %q", v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
