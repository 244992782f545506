package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	rm := NewRetryManager(5, 10*time.Second)

	expected := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
	}

	for attempt, want := range expected {
		assert.Equal(t, want, rm.Backoff(attempt+1), "attempt %d", attempt+1)
	}

	// Capped at 16x base
	assert.Equal(t, 160*time.Second, rm.Backoff(10))
}

func TestShouldRetry(t *testing.T) {
	rm := NewRetryManager(5, 10*time.Second)

	task := &Task{ID: "t1", Type: TaskTypeOrderConfirmation, MaxRetries: 5, Attempts: 1}

	retry, delay := rm.ShouldRetry(task, errors.New("connection refused"))
	assert.True(t, retry)
	assert.Equal(t, 10*time.Second, delay)

	task.Attempts = 3
	retry, delay = rm.ShouldRetry(task, errors.New("connection refused"))
	assert.True(t, retry)
	assert.Equal(t, 40*time.Second, delay)

	// Exhausted
	task.Attempts = 5
	retry, _ = rm.ShouldRetry(task, errors.New("connection refused"))
	assert.False(t, retry)

	// A task without its own ceiling uses the manager's
	task = &Task{ID: "t2", Type: TaskTypeOrderConfirmation, Attempts: 4}
	retry, _ = rm.ShouldRetry(task, errors.New("connection refused"))
	assert.True(t, retry)

	task.Attempts = 5
	retry, _ = rm.ShouldRetry(task, errors.New("connection refused"))
	assert.False(t, retry)
}

func TestShouldRetryNonRetryableErrors(t *testing.T) {
	rm := NewRetryManager(5, 10*time.Second)
	task := &Task{ID: "t1", Type: TaskTypeOrderConfirmation, MaxRetries: 5, Attempts: 1}

	// A missing record never comes back; the task is discarded
	retry, _ := rm.ShouldRetry(task, errors.New("failed to load order 42: order not found"))
	assert.False(t, retry)

	retry, _ = rm.ShouldRetry(task, errors.New("invalid order_id in task data"))
	assert.False(t, retry)

	retry, _ = rm.ShouldRetry(task, nil)
	assert.False(t, retry)
}

func TestJitterBounds(t *testing.T) {
	base := 40 * time.Second
	for i := 0; i < 100; i++ {
		jittered := Jitter(base)
		assert.GreaterOrEqual(t, jittered, base/2)
		assert.LessOrEqual(t, jittered, base+base/2)
	}
}

func TestTaskDataAccessors(t *testing.T) {
	task := &Task{
		Data: map[string]interface{}{
			"order_id": float64(42), // JSON round trip turns numbers into float64
			"email":    "alice@example.com",
			"when":     "2026-08-01T12:00:00Z",
		},
	}

	assert.Equal(t, int64(42), task.GetInt64("order_id"))
	assert.Equal(t, "alice@example.com", task.GetString("email"))
	assert.Equal(t, 2026, task.GetTime("when").Year())

	assert.Zero(t, task.GetInt64("missing"))
	assert.Empty(t, task.GetString("missing"))
	assert.True(t, task.GetTime("missing").IsZero())
}
