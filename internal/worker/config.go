package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background job worker.
type Config struct {
	// Concurrency is the number of worker goroutines to run in parallel.
	// Default: 2
	Concurrency int

	// QueueSize is how many jobs may wait for a free worker. Enqueue fails
	// fast once the queue is full so request handlers never block on it.
	// Default: 1024
	QueueSize int

	// JobTimeout is the maximum time a single attempt is allowed to run.
	// Default: 10 seconds
	JobTimeout time.Duration

	// MaxAttempts is how many times a job runs before it is dropped.
	// Permanent errors are never retried.
	// Default: 3
	MaxAttempts int

	// RetryBaseDelay is the delay before the second attempt; it doubles for
	// every further attempt.
	// Default: 500 milliseconds
	RetryBaseDelay time.Duration

	// ShutdownTimeout is how long Stop waits for queued and running jobs.
	// Default: 10 seconds
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       1024,
		JobTimeout:      10 * time.Second,
		MaxAttempts:     3,
		RetryBaseDelay:  500 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.JobTimeout < 10*time.Millisecond {
		return fmt.Errorf("job timeout must be at least 10ms, got %v", c.JobTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay cannot be negative, got %v", c.RetryBaseDelay)
	}
	if c.ShutdownTimeout < 10*time.Millisecond {
		return fmt.Errorf("shutdown timeout must be at least 10ms, got %v", c.ShutdownTimeout)
	}
	return nil
}
