package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
	Delays() (min, max time.Duration)
}

// Feedback lets callers report outcomes so an adaptive limiter can widen or
// narrow its delay range.
type Feedback interface {
	RecordSuccess()
	RecordError()
}

// SimpleRateLimiter sleeps a fresh uniform delay from [min, max] on every
// Wait. Concurrent callers sleep independently.
type SimpleRateLimiter struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rng      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepContext,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	delay := r.NextDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	return r.sleep(ctx, delay)
}

// NextDelay draws the delay the next Wait would sleep.
func (r *SimpleRateLimiter) NextDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calculateDelay()
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if max < min {
		max = min
	}
	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	return r.minDelay + time.Duration(r.rng.Int63n(int64(delta)+1))
}

// AdaptiveRateLimiter backs off after repeated errors and slowly returns
// towards its base range after sustained success.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	baseMin       time.Duration
	baseMax       time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

var _ Feedback = (*AdaptiveRateLimiter)(nil)

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	base := NewSimpleRateLimiter(minDelay, maxDelay)
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: base,
		baseMin:           base.minDelay,
		baseMax:           base.maxDelay,
		maxErrorCount:     3,
		backoffFactor:     1.5,
	}
}

func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		a.minDelay = max(time.Duration(float64(a.minDelay)*0.9), a.baseMin)
		a.maxDelay = max(time.Duration(float64(a.maxDelay)*0.9), a.baseMax)
		a.successCount = 0
	}
}

func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin < time.Second {
			newMin = time.Second
		}
		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax < newMin {
			newMax = newMin
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
