package ops

import (
	"sync"
	"time"
)

// CircuitBreaker keeps the tracker from hammering an unhealthy audit store.
// While open, events are dropped without a persistence attempt; after the
// cooldown the next attempt goes through to probe the store.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration

	failures  int // consecutive
	openUntil time.Time
	isOpen    bool
}

// NewCircuitBreaker creates a breaker that opens after threshold consecutive
// failures and stays open for cooldown. Non-positive arguments fall back to
// 5 failures and one minute.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a persistence attempt may proceed. The first call
// after the cooldown closes the breaker and lets the attempt probe the store.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isOpen {
		return true
	}
	if time.Now().After(cb.openUntil) {
		cb.isOpen = false
		cb.failures = 0
		return true
	}
	return false
}

// RecordSuccess closes the breaker and clears the failure run.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.isOpen = false
}

// RecordFailure counts a failed persistence attempt, opening the breaker at
// the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.failures >= cb.threshold {
		cb.isOpen = true
		cb.openUntil = time.Now().Add(cb.cooldown)
	}
}

// IsOpen reports whether events are currently being dropped.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpen
}
