package classifier

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newCircuitBreaker(3, 30*time.Second, clock)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow() true before threshold, iteration %d", i)
		}
		b.RecordFailure()
	}
	if !b.Allow() {
		t.Fatal("expected Allow() true on the 3rd attempt (threshold not yet reached)")
	}
	b.RecordFailure()

	if b.Allow() {
		t.Fatal("expected breaker to be open after 3 consecutive failures")
	}
}

func TestCircuitBreakerHalfOpenAfterReset(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newCircuitBreaker(1, 30*time.Second, clock)

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected breaker open immediately after threshold failure")
	}

	now = now.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("expected breaker to allow a half-open probe after reset window")
	}
}

func TestCircuitBreakerRecordSuccessCloses(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newCircuitBreaker(2, 30*time.Second, clock)

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	b.Allow() // transitions to half-open
	b.RecordSuccess()

	if !b.Allow() {
		t.Fatal("expected breaker closed after success")
	}

	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("expected a single failure post-reset not to reopen a breaker with threshold 2")
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := newCircuitBreaker(1, 30*time.Second, clock)

	b.RecordFailure()
	now = now.Add(31 * time.Second)
	b.Allow() // half-open probe
	b.RecordFailure()

	if b.Allow() {
		t.Fatal("expected breaker to stay open after a failed half-open probe")
	}
}
