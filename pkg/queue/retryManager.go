package queue

import (
	"math/rand"
	"strings"
	"time"
)

// RetryManager decides whether a failed task gets another attempt and how
// long to wait before it.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewRetryManager(maxRetries int, baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16,
	}
}

// ShouldRetry reports whether the task should run again and the backoff
// delay before the next attempt. A task without its own retry ceiling uses
// the manager's.
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	maxRetries := task.MaxRetries
	if maxRetries <= 0 {
		maxRetries = r.maxRetries
	}
	if task.Attempts >= maxRetries {
		return false, 0
	}

	if !r.isRetryableError(err) {
		return false, 0
	}

	return true, r.Backoff(task.Attempts)
}

// isRetryableError filters out failures that repeating cannot fix. A task
// referencing a record that no longer exists is discarded, not retried.
func (r *RetryManager) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	nonRetryable := []string{
		"not found",
		"invalid",
		"validation failed",
		"permission denied",
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range nonRetryable {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	return true
}

// Backoff returns the exponential delay for the given attempt number,
// base * 2^(attempt-1), capped at 16x base.
func (r *RetryManager) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	backoff := r.baseDelay * time.Duration(1<<(attempt-1))
	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}

// Jitter spreads retries of concurrent failures by up to ±25% of the delay.
func Jitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return delay
	}

	jitter := time.Duration(rand.Int63n(int64(delay / 2)))
	if rand.Intn(2) == 0 {
		return delay + jitter
	}
	return delay - jitter
}
