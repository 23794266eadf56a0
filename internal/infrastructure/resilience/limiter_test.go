package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	const (
		capacity = 3
		callers  = 20
	)
	limiter := NewLimiter(capacity)

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Do(context.Background(), func(ctx context.Context) error {
				n := active.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.Equal(t, int64(capacity), peak.Load(), "expected the gate to be saturated at some point")
	assert.Equal(t, 0, limiter.InUse())
}

func TestLimiterFIFO(t *testing.T) {
	limiter := NewLimiter(1)
	held, err := limiter.Acquire(context.Background())
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			permit, err := limiter.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			permit.Release()
		}(i)
		// Let each waiter enqueue before the next arrives.
		require.Eventually(t, func() bool { return limiter.Waiting() == i+1 }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
	}

	held.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLimiterReleasesOnError(t *testing.T) {
	limiter := NewLimiter(1)
	boom := errors.New("boom")

	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		assert.Equal(t, 1, limiter.InUse())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, limiter.InUse())
}

func TestLimiterReleasesOnPanic(t *testing.T) {
	limiter := NewLimiter(1)

	assert.Panics(t, func() {
		_ = limiter.Do(context.Background(), func(ctx context.Context) error {
			panic("fault in critical section")
		})
	})
	assert.Equal(t, 0, limiter.InUse())

	permit, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	permit.Release()
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	limiter := NewLimiter(1)
	held, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, limiter.Waiting())
}

func TestPermitDoubleRelease(t *testing.T) {
	t.Run("lenient mode ignores the second release", func(t *testing.T) {
		limiter := NewLimiter(2)
		first, err := limiter.Acquire(context.Background())
		require.NoError(t, err)
		second, err := limiter.Acquire(context.Background())
		require.NoError(t, err)

		first.Release()
		first.Release()

		assert.Equal(t, 1, limiter.InUse())
		second.Release()
		assert.Equal(t, 0, limiter.InUse())
	})

	t.Run("strict mode panics", func(t *testing.T) {
		limiter := NewLimiter(1, WithStrict(true))
		permit, err := limiter.Acquire(context.Background())
		require.NoError(t, err)

		permit.Release()
		assert.Panics(t, permit.Release)
		assert.Equal(t, 0, limiter.InUse())
	})
}

func TestLimiterObserver(t *testing.T) {
	var seen []int64
	limiter := NewLimiter(2, WithObserver(func(inUse int64) { seen = append(seen, inUse) }))

	a, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	b, err := limiter.Acquire(context.Background())
	require.NoError(t, err)
	a.Release()
	b.Release()

	assert.Equal(t, []int64{1, 2, 1, 0}, seen)
	assert.Equal(t, 2, limiter.Capacity())
}

func TestLimiterObserverSettlesAtZero(t *testing.T) {
	var (
		mu   sync.Mutex
		last int64 = -1
	)
	limiter := NewLimiter(4, WithObserver(func(inUse int64) {
		mu.Lock()
		last = inUse
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := limiter.Do(context.Background(), func(ctx context.Context) error {
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, last, "last reported count must match the idle limiter")
	assert.Zero(t, limiter.InUse())
}
