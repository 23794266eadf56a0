package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds, matched with errors.Is
var (
	ErrValidation      = errors.New("validation failed")
	ErrSelectorTimeout = errors.New("selector timeout")
	ErrPageClosed      = errors.New("page closed")
	ErrNoResponse      = errors.New("no response captured")
	ErrBrowserIO       = errors.New("browser i/o")
)

// Error is a fetch failure tied to a URL
type Error struct {
	Kind     error
	URL      string
	Selector string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrSelectorTimeout:
		return fmt.Sprintf("timed out waiting for selector %q on %s", e.Selector, e.URL)
	case ErrNoResponse:
		return fmt.Sprintf("no response captured for %s", e.URL)
	case ErrValidation:
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Error()
	}

	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.URL != "" {
		b.WriteString(" (")
		b.WriteString(e.URL)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError reports a malformed request
func ValidationError(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

// SelectorTimeoutError reports a selector that never appeared before the deadline
func SelectorTimeoutError(url, selector string) error {
	return &Error{Kind: ErrSelectorTimeout, URL: url, Selector: selector, Err: context.DeadlineExceeded}
}

// NoResponseError reports a raw fetch that captured no document response
func NoResponseError(url string) error {
	return &Error{Kind: ErrNoResponse, URL: url}
}

// PageClosedError reports a page that went away mid-operation
func PageClosedError(url string, err error) error {
	return &Error{Kind: ErrPageClosed, URL: url, Err: err}
}

// BrowserError wraps a driver failure. Errors that already carry a kind are
// returned unchanged.
func BrowserError(url string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		if fe.URL == "" && url != "" {
			clone := *fe
			clone.URL = url
			return &clone
		}
		return err
	}
	if errors.Is(err, ErrPageClosed) {
		return PageClosedError(url, err)
	}
	return &Error{Kind: ErrBrowserIO, URL: url, Err: err}
}

// IsRetryable reports whether an attempt that failed with err may be retried
func IsRetryable(err error) bool {
	return err != nil && !errors.Is(err, ErrValidation)
}
