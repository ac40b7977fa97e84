package pipeline

import (
	"context"
	"errors"
	"time"
)

// Outcome is how a queued task ended.
type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// Queue runs tasks one at a time, each under its own deadline. A task that
// overruns is abandoned with its context cancelled, and the next task does not
// start until the abandoned one has returned. Queue is not safe for concurrent use.
type Queue struct {
	timeout   time.Duration
	abandoned chan struct{}
}

// NewQueue creates a queue whose tasks each get timeout to finish.
func NewQueue(timeout time.Duration) *Queue {
	return &Queue{timeout: timeout}
}

// Run executes fn with a context that expires after the queue timeout.
// The error is fn's error for Failed, nil otherwise; when ctx itself ends
// the outcome is Failed with ctx's error.
func (q *Queue) Run(ctx context.Context, fn func(ctx context.Context) error) (Outcome, error) {
	if err := q.Drain(ctx); err != nil {
		return Failed, err
	}

	taskCtx, cancel := context.WithTimeout(ctx, q.timeout)
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- fn(taskCtx)
	}()

	select {
	case err := <-done:
		cancel()
		switch {
		case err == nil:
			return Completed, nil
		case ctx.Err() != nil:
			return Failed, ctx.Err()
		case errors.Is(taskCtx.Err(), context.DeadlineExceeded):
			return TimedOut, nil
		default:
			return Failed, err
		}
	case <-taskCtx.Done():
		cancel()
		q.abandoned = finished
		if err := ctx.Err(); err != nil {
			return Failed, err
		}
		return TimedOut, nil
	}
}

// Drain waits for an abandoned task to return.
func (q *Queue) Drain(ctx context.Context) error {
	if q.abandoned == nil {
		return nil
	}
	select {
	case <-q.abandoned:
		q.abandoned = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
