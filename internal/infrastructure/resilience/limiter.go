package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/pagefetch/internal/infrastructure/logging"
)

// Limiter is a counting permit gate. Waiters are granted permits in arrival
// order (the semaphore queue is FIFO), so a later caller never overtakes an
// earlier one.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	waiting  atomic.Int64

	// strict turns invariant violations (over-release) into panics.
	strict  bool
	logger  *logging.Logger
	observe func(inUse int64)
	// observeMu serializes observer calls so the last report is current.
	observeMu sync.Mutex
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithStrict panics on over-release instead of logging it.
func WithStrict(strict bool) LimiterOption {
	return func(l *Limiter) { l.strict = strict }
}

// WithLogger sets the logger used to report invariant violations.
func WithLogger(logger *logging.Logger) LimiterOption {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers a callback invoked with the permits in use after
// every acquire and release.
func WithObserver(fn func(inUse int64)) LimiterOption {
	return func(l *Limiter) { l.observe = fn }
}

// NewLimiter creates a limiter with the given number of permits.
func NewLimiter(capacity int, opts ...LimiterOption) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	l := &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Permit entitles its holder to one unit of concurrency. It must be released
// exactly once.
type Permit struct {
	limiter  *Limiter
	released atomic.Bool
}

// Acquire blocks until a permit is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	l.waiting.Add(1)
	err := l.sem.Acquire(ctx, 1)
	l.waiting.Add(-1)
	if err != nil {
		return nil, fmt.Errorf("acquire permit: %w", err)
	}

	l.inUse.Add(1)
	l.notify()
	return &Permit{limiter: l}, nil
}

// Do runs fn while holding a permit. The permit is released on every exit
// path, panics included.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	permit, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer permit.Release()

	return fn(ctx)
}

// Release returns the permit to its limiter. A second call is an invariant
// violation and does not free another slot.
func (p *Permit) Release() {
	if p == nil || p.limiter == nil {
		return
	}
	if !p.released.CompareAndSwap(false, true) {
		p.limiter.violation("permit released twice")
		return
	}
	p.limiter.release()
}

func (l *Limiter) release() {
	for {
		current := l.inUse.Load()
		if current <= 0 {
			l.violation("permit released beyond capacity")
			return
		}
		if l.inUse.CompareAndSwap(current, current-1) {
			break
		}
	}

	l.notify()
	l.sem.Release(1)
}

func (l *Limiter) violation(msg string) {
	if l.strict {
		panic("resilience: " + msg)
	}
	l.logger.Error("Limiter invariant violated",
		zap.String("reason", msg),
		zap.Int64("in_use", l.inUse.Load()),
		zap.Int64("capacity", l.capacity),
	)
}

// notify reports the permits in use. The count is read under observeMu, so
// whichever report runs last reflects every change made before it.
func (l *Limiter) notify() {
	if l.observe == nil {
		return
	}
	l.observeMu.Lock()
	defer l.observeMu.Unlock()
	l.observe(l.inUse.Load())
}

// Capacity returns the total number of permits.
func (l *Limiter) Capacity() int {
	return int(l.capacity)
}

// InUse returns the number of permits currently held.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Waiting returns the number of callers blocked in Acquire.
func (l *Limiter) Waiting() int {
	return int(l.waiting.Load())
}
