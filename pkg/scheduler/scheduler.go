// Package scheduler runs a periodic job with bounded retries per run.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

type Scheduler struct {
	name       string
	job        Job
	interval   time.Duration
	attempts   int
	retryDelay time.Duration
}

func NewScheduler(name string, job Job, interval time.Duration, attempts int) *Scheduler {
	if attempts <= 0 {
		attempts = 1
	}
	return &Scheduler{
		name:       name,
		job:        job,
		interval:   interval,
		attempts:   attempts,
		retryDelay: 30 * time.Second,
	}
}

// Start runs the job every interval until the context is cancelled. A failed
// run is retried up to the configured attempts before waiting for the next
// tick.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logrus.Infof("Scheduler %s started, interval %s", s.name, s.interval)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Scheduler %s stopped", s.name)
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the job immediately with the retry policy applied.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := s.job(ctx)
		if err == nil {
			return
		}

		logrus.Errorf("Scheduler %s run failed (attempt %d/%d): %v", s.name, attempt, s.attempts, err)
		if attempt == s.attempts {
			logrus.Errorf("Scheduler %s giving up until next tick", s.name)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}
