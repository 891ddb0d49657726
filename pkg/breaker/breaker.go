// Package breaker implements a generic process-wide circuit breaker: a
// counter of consecutive failures that trips open for a cool-down period,
// rejecting calls without doing the underlying work. Both the LLM client
// and the Execution Guard hold their own instance with their own thresholds.
package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State is the current state of a CircuitBreaker.
type State int

const (
	// Closed means the circuit is operational and calls flow through.
	Closed State = iota
	// Open means the circuit has tripped due to failures and calls are rejected.
	Open
	// HalfOpen means the circuit is letting a single probe call through to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the threshold and cool-down for a CircuitBreaker.
type Config struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before allowing a probe call.
	ResetAfter time.Duration
	// Name identifies the breaker in error messages (e.g. "llm", "execution").
	Name string
}

// CircuitBreaker trips open after N consecutive failures and resets after a
// cool-down period. Safe for concurrent use; callers must serialize
// Allow/RecordSuccess/RecordFailure around the guarded operation themselves
// only if they need read-your-write consistency across the triple — the
// breaker's own mutex already makes each call atomic.
type CircuitBreaker struct {
	mu               sync.RWMutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            State
	name             string
}

// New creates a CircuitBreaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	name := cfg.Name
	if name == "" {
		name = "breaker"
	}
	return &CircuitBreaker{
		threshold:  cfg.Threshold,
		resetAfter: cfg.ResetAfter,
		state:      Closed,
		name:       name,
	}
}

// Allow reports whether a call may proceed, transitioning Open->HalfOpen
// once the cool-down has elapsed.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true, nil
	case Open:
		if time.Since(cb.lastFailure) > cb.resetAfter {
			cb.state = HalfOpen
			return true, nil
		}
		return false, fmt.Errorf("%s: circuit breaker open (failed %d times, last failure %v ago)",
			cb.name, cb.consecutiveFails, time.Since(cb.lastFailure).Round(time.Second))
	case HalfOpen:
		return false, fmt.Errorf("%s: circuit breaker half-open, probe in flight", cb.name)
	default:
		return false, fmt.Errorf("%s: circuit breaker in unknown state", cb.name)
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = Closed
}

// RecordFailure increments the failure count and trips the circuit once the
// threshold is reached; a failed probe in half-open reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = time.Now()

	if cb.state == HalfOpen {
		cb.state = Open
		return
	}

	if cb.consecutiveFails >= cb.threshold {
		cb.state = Open
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the current run of consecutive failures.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFails
}

// Reset forces the breaker back to closed. Exposed for tests per the
// requirement that process-global state not leak across test cases.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = Closed
}
