package chatwoot

import "time"

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// realClock implements Clock using the standard time package.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// maxBackoffShift bounds the exponent so the shift cannot overflow.
const maxBackoffShift = 16

// Backoff computes retry delays as a pure function of the attempt number,
// decoupled from the loop that does the sleeping.
type Backoff struct {
	// Base is the delay before the second attempt.
	Base time.Duration

	// Cap bounds the delay. 0 means uncapped.
	Cap time.Duration
}

// Delay returns the backoff before retry number attempt (1-based):
// Base * 2^(attempt-1), bounded by Cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := b.Base << shift
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}
