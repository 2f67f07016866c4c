package llm

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CircuitState is the breaker's current position.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks requests after repeated failures.
	CircuitOpen
	// CircuitHalfOpen lets a single probe request test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the failure threshold and recovery probe.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// ResetAfter is how long the circuit stays open before probing again.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and
// probes again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker guards LLM calls so a dead provider fails fast instead of
// stalling every analyst question for a full provider timeout. Verified
// query matching keeps working while the circuit is open.
type CircuitBreaker struct {
	mu               sync.RWMutex
	clock            clockwork.Clock
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
}

// NewCircuitBreaker creates a closed breaker on the wall clock.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return newCircuitBreaker(config, clockwork.NewRealClock())
}

func newCircuitBreaker(config CircuitBreakerConfig, clock clockwork.Clock) *CircuitBreaker {
	return &CircuitBreaker{
		clock:      clock,
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
	}
}

// Allow reports whether a request may proceed. An open circuit transitions
// to half-open once ResetAfter has elapsed, admitting a single probe.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		since := cb.clock.Since(cb.lastFailure)
		if since > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("circuit breaker open: LLM provider appears to be down (failed %d times, last failure %v ago)",
			cb.consecutiveFails, since.Round(time.Second))
	case CircuitHalfOpen:
		// A probe is already in flight.
		return false, fmt.Errorf("circuit breaker half-open: testing if LLM provider has recovered")
	default:
		return false, fmt.Errorf("circuit breaker in unknown state: %v", cb.state)
	}
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure, tripping the circuit at the threshold.
// A failed half-open probe reopens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.clock.Now()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
		return
	}

	if cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.consecutiveFails
}

// Reset forces the circuit closed. Intended for manual intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}
