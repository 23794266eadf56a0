package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrowserErrorClassification(t *testing.T) {
	plain := errors.New("socket hang up")
	err := BrowserError("https://a.test", plain)
	assert.True(t, errors.Is(err, ErrBrowserIO))
	assert.True(t, errors.Is(err, plain))

	closed := BrowserError("https://a.test", PageClosedError("", errors.New("target closed")))
	assert.True(t, errors.Is(closed, ErrPageClosed))
	assert.False(t, errors.Is(closed, ErrBrowserIO))

	var fe *Error
	assert.True(t, errors.As(closed, &fe))
	assert.Equal(t, "https://a.test", fe.URL)

	assert.Nil(t, BrowserError("https://a.test", nil))
}

func TestSelectorTimeoutError(t *testing.T) {
	err := SelectorTimeoutError("https://a.test", ".item")
	assert.True(t, errors.Is(err, ErrSelectorTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, `timed out waiting for selector ".item" on https://a.test`, err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ValidationError("bad")))
	assert.True(t, IsRetryable(SelectorTimeoutError("u", "s")))
	assert.True(t, IsRetryable(NoResponseError("u")))
	assert.True(t, IsRetryable(errors.New("boom")))
}

func TestParseWaitUntil(t *testing.T) {
	w, err := ParseWaitUntil("")
	assert.NoError(t, err)
	assert.Equal(t, WaitLoad, w)

	w, err = ParseWaitUntil("NetworkIdle2")
	assert.NoError(t, err)
	assert.Equal(t, WaitNetworkIdle2, w)

	_, err = ParseWaitUntil("idle")
	assert.Error(t, err)
}
