package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxRetries = 0
	opts.Timeout = 2 * time.Second
	return opts
}

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pagefetch/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("||ads.example^\n"))
	}))
	defer server.Close()

	c := NewClient(testOptions())
	body, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "||ads.example^\n", string(body))
}

func TestClientGetErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(testOptions())
	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClientRateLimiting(t *testing.T) {
	t.Run("context cancellation prevents request", func(t *testing.T) {
		c := NewClient(testOptions())
		c.SetRateLimit(1)

		// Drain the single token
		_, err := c.Request(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req, err := c.Request(ctx)
		assert.Error(t, err)
		assert.Nil(t, req)
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		c := NewClient(testOptions())
		c.SetRateLimit(0)

		for i := 0; i < 10; i++ {
			_, err := c.Request(context.Background())
			require.NoError(t, err)
		}
	})
}
