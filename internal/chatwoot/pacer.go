package chatwoot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// slowdownFactor grows the inter-request delay after a 429.
	slowdownFactor = 1.5

	// speedupFactor shrinks the delay after a successful call.
	speedupFactor = 0.95
)

// Pacer spaces outgoing requests by an inter-request delay. When adaptive,
// the delay grows on rate-limit responses and shrinks on successes, always
// staying within [min, max]. It is shared by all concurrent callers of a
// client, so the delay is read-modify-written under a mutex.
type Pacer struct {
	mu       sync.Mutex
	delay    time.Duration
	min      time.Duration
	max      time.Duration
	adaptive bool
	limiter  *rate.Limiter
}

// NewPacer creates a pacer with the given starting delay. The delay is
// clamped into [min, max]. A max of 0 means the initial delay is also the
// ceiling.
func NewPacer(delay, min, max time.Duration, adaptive bool) *Pacer {
	if min < 0 {
		min = 0
	}
	if max <= 0 {
		max = delay
	}
	if max < min {
		max = min
	}
	p := &Pacer{
		min:      min,
		max:      max,
		adaptive: adaptive,
	}
	p.delay = p.clamp(delay)
	p.limiter = rate.NewLimiter(delayToLimit(p.delay), 1)
	return p
}

// Wait blocks until the next request slot is available or the context is
// cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Slow widens the delay after a rate-limit response. No-op unless adaptive.
func (p *Pacer) Slow() {
	p.adjust(slowdownFactor)
}

// Ease narrows the delay after a successful call. No-op unless adaptive.
func (p *Pacer) Ease() {
	p.adjust(speedupFactor)
}

// Delay returns the current inter-request delay.
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}

func (p *Pacer) adjust(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.adaptive {
		return
	}
	p.delay = p.clamp(time.Duration(float64(p.delay) * factor))
	p.limiter.SetLimit(delayToLimit(p.delay))
}

func (p *Pacer) clamp(d time.Duration) time.Duration {
	if d < p.min {
		return p.min
	}
	if d > p.max {
		return p.max
	}
	return d
}

// delayToLimit converts an inter-request delay to a rate limit.
// A zero delay means unlimited.
func delayToLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
