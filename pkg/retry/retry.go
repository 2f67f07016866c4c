// Package retry provides exponential backoff with jitter for transient
// failures: warehouse connections that are still coming up, Postgres
// serialization conflicts during bulk seeding, and LLM endpoint hiccups.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	JitterFactor     float64 // 0.0-1.0, +/- fraction of the delay
	MaxSameErrorType int     // consecutive same-type errors before escalating to permanent
}

// DefaultConfig suits database operations: 3 retries starting at 100ms,
// doubling and capped at 5s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// backoff sleeps for the current delay (with jitter) and returns the next
// delay, or ctx.Err() if the context ends first.
func (c *Config) backoff(ctx context.Context, delay time.Duration) (time.Duration, error) {
	jittered := delay
	if c.JitterFactor > 0 {
		jitter := float64(delay) * c.JitterFactor * (rand.Float64()*2 - 1)
		jittered = time.Duration(float64(delay) + jitter)
	}

	select {
	case <-time.After(jittered):
	case <-ctx.Done():
		return delay, ctx.Err()
	}

	next := time.Duration(float64(delay) * c.Multiplier)
	if next > c.MaxDelay {
		next = c.MaxDelay
	}
	return next, nil
}

// Do executes fn with exponential backoff, retrying every failure. It
// returns nil on success or the last error once retries are exhausted.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value, such as pool
// constructors. The zero value of T is returned alongside the final error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			delay, err = cfg.backoff(ctx, delay)
			if err != nil {
				return result, err
			}
		}
	}

	return result, lastErr
}

// RetryableError lets an error declare its own retryability. LLM client
// errors implement it so HTTP 401 fails fast while 503 keeps retrying.
type RetryableError interface {
	error
	IsRetryable() bool
}

// retryablePatterns are substrings of errors worth retrying: connection
// churn, Postgres transient SQLSTATEs, and throttled or flapping LLM
// endpoints. Everything else is treated as permanent.
var retryablePatterns = []string{
	// network and connection errors
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"network is unreachable",
	"i/o timeout",
	// postgres transient SQLSTATEs
	"40001", // serialization_failure
	"40p01", // deadlock_detected
	"53300", // too_many_connections
	"57p03", // cannot_connect_now (server starting up)
	"deadlock",
	"too many connections",
	"the database system is starting up",
	// HTTP status codes and throttling messages from LLM providers
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"service unavailable",
	"too many requests",
	"overloaded",
}

// IsRetryable reports whether an error is transient. Errors implementing
// RetryableError answer for themselves; others are pattern-matched so
// auth failures and bad SQL never burn retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// The interface is checked on the error itself, not the unwrap
	// chain: a caller that wraps a retryable error into a plain one
	// falls through to pattern matching.
	if r, ok := err.(RetryableError); ok {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// classifyErrorType buckets an error so repeated identical failures can be
// detected and escalated instead of retried forever.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	errStr := strings.ToLower(err.Error())

	for _, code := range []string{"503", "502", "504", "500", "429", "404", "403", "401", "400"} {
		if strings.Contains(errStr, code) {
			return code
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "broken pipe"):
		return "broken_pipe"
	case strings.Contains(errStr, "deadlock"), strings.Contains(errStr, "40001"):
		return "contention"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	}

	return "unknown"
}

// DoIfRetryable retries only transient errors; permanent failures return
// immediately. When MaxSameErrorType consecutive attempts fail with the
// same error class, the failure is escalated to permanent so a dead
// endpoint does not absorb the whole retry budget.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		currentErrorType := classifyErrorType(err)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, err)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			delay, err = cfg.backoff(ctx, delay)
			if err != nil {
				return err
			}
		}
	}

	return lastErr
}
