package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAttemptsExhausted means every attempt ran without the operation finishing.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
	// ErrDeadlineExceeded means the policy deadline elapsed before the operation finished.
	ErrDeadlineExceeded = errors.New("retry deadline exceeded")
)

// RetryPolicy is a bounded retry combinator: at most MaxAttempts calls,
// Interval apart, all within Deadline of the first call.
type RetryPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Deadline    time.Duration // 0 means no deadline beyond the attempt budget
}

// DefaultPollPolicy is the cadence used to poll scrape jobs.
func DefaultPollPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 60,
		Interval:    2 * time.Second,
		Deadline:    120 * time.Second,
	}
}

// RetryError reports why a policy stopped before the operation finished.
type RetryError struct {
	Attempts int
	Reason   error // ErrAttemptsExhausted, ErrDeadlineExceeded or the parent context error
	Last     error // error of the last attempt, if any
}

func (e *RetryError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%v after %d attempts: %v", e.Reason, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%v after %d attempts", e.Reason, e.Attempts)
}

func (e *RetryError) Unwrap() []error {
	if e.Last == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Last}
}

// AttemptFunc is one attempt. Returning done=true stops the policy and Do returns err as is.
// Returning done=false schedules another attempt; err is kept as the last failure.
type AttemptFunc func(ctx context.Context, attempt int) (done bool, err error)

// Do runs fn until it reports done, the attempt budget is spent or the deadline elapses.
// Attempts run sequentially and no attempt starts after the deadline.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn AttemptFunc) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	runCtx := ctx
	if p.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Deadline)
		defer cancel()
	}

	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := runCtx.Err(); err != nil {
			return attempt - 1, p.stopped(ctx, attempt-1, last)
		}

		done, err := fn(runCtx, attempt)
		if done {
			return attempt, err
		}
		last = err

		if runCtx.Err() != nil {
			return attempt, p.stopped(ctx, attempt, last)
		}
		if attempt == maxAttempts {
			return attempt, &RetryError{Attempts: attempt, Reason: ErrAttemptsExhausted, Last: last}
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return attempt, p.stopped(ctx, attempt, last)
		case <-timer.C:
		}
	}
	return maxAttempts, &RetryError{Attempts: maxAttempts, Reason: ErrAttemptsExhausted, Last: last}
}

// stopped distinguishes the policy deadline from cancellation of the parent context.
func (p RetryPolicy) stopped(parent context.Context, attempts int, last error) error {
	reason := ErrDeadlineExceeded
	if err := parent.Err(); err != nil {
		reason = err
	}
	return &RetryError{Attempts: attempts, Reason: reason, Last: last}
}
