package classifier

import (
	"sync"
	"time"
)

// breakerState mirrors the textbook closed/open/half-open circuit breaker states.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// circuitBreaker is a mutex-guarded struct in the same style as the teacher's
// RateLimiter: no new dependency, just a lock and some counters. It opens after a
// configurable number of consecutive failures and stays open for a fixed duration
// before allowing a single half-open probe (spec §4.4).
type circuitBreaker struct {
	mu              sync.Mutex
	state           breakerState
	threshold       int
	resetFor        time.Duration
	consecutiveFail int
	openedAt        time.Time
	now             func() time.Time
}

func newCircuitBreaker(threshold int, resetFor time.Duration, now func() time.Time) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{
		state:     stateClosed,
		threshold: threshold,
		resetFor:  resetFor,
		now:       now,
	}
}

// Allow reports whether a call should be attempted. When the breaker is open past its
// reset window it transitions to half-open and allows exactly one probe through.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= b.resetFor {
			b.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		return false // the single probe is already in flight
	default:
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure counter.
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	b.state = stateClosed
}

// RecordFailure increments the consecutive-failure count and opens the breaker once the
// threshold is reached. A failed half-open probe re-opens immediately.
func (b *circuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		return
	}

	b.consecutiveFail++
	if b.consecutiveFail >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.now()
	}
}
