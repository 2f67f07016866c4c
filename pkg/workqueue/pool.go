// Package workqueue runs batches of independent jobs with bounded
// parallelism. The seed pipeline uses it to generate and load fact
// batches concurrently without overwhelming the database pool.
package workqueue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures a pool.
type Config struct {
	MaxConcurrent int // Maximum jobs in flight (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool bounds how many jobs execute at once. It uses a semaphore to
// limit outstanding work and reports results as they complete, so new
// jobs start the moment a slot frees up.
type Pool struct {
	config Config
	logger *zap.Logger
}

// NewPool creates a pool.
func NewPool(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 4
	}
	return &Pool{
		config: config,
		logger: logger.Named("workqueue"),
	}
}

// Job is a unit of work.
type Job[T any] struct {
	ID  string                               // For logging/tracking
	Run func(ctx context.Context) (T, error) // The work to execute
}

// Result is the outcome of one job.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
}

// Run executes all jobs with bounded parallelism. Results arrive in
// completion order, not submission order. Processing continues even if
// some jobs fail; the caller decides what a failure means.
func Run[T any](
	ctx context.Context,
	pool *Pool,
	jobs []Job[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(jobs) == 0 {
		return nil
	}

	results := make([]Result[T], 0, len(jobs))
	resultsChan := make(chan Result[T], len(jobs))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job Job[T]) {
			defer wg.Done()

			// Acquire a slot; bail out if the batch was canceled first.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				var zero T
				resultsChan <- Result[T]{ID: job.ID, Value: zero, Err: ctx.Err()}
				return
			}

			value, err := job.Run(ctx)
			resultsChan <- Result[T]{ID: job.ID, Value: value, Err: err}
		}(job)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		if result.Err != nil {
			pool.logger.Warn("job failed",
				zap.String("job_id", result.ID),
				zap.Error(result.Err))
		}
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(jobs))
		}
	}

	return results
}

// FirstError returns the first failed result's error, or nil when every
// job succeeded.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
