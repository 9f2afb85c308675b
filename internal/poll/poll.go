// Package poll implements the client-side coordinator that waits on an
// asynchronous transcription job.
//
// The coordinator polls at a fixed interval until the job reaches a terminal
// status, the retry budget runs out, or the caller cancels. Transport errors
// during a poll are swallowed and counted against the budget; only an
// explicit error status from the service is terminal.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"speechplan/internal/message"
)

var (
	// ErrJobFailed means the service reported a terminal error status.
	ErrJobFailed = errors.New("transcription job failed")

	// ErrExhausted means the retry budget ran out before the job finished.
	// The job is left in its last observed state.
	ErrExhausted = errors.New("polling retries exhausted")
)

// StatusFunc fetches the current state of the job being watched.
type StatusFunc func(ctx context.Context) (message.TranscriptionJob, error)

// Coordinator polls a job until completion, failure, exhaustion, or
// cancellation.
type Coordinator struct {
	// Interval is the fixed spacing between status queries.
	Interval time.Duration

	// MaxRetries bounds how many non-terminal polls are tolerated after the
	// first, which bounds the total wait time.
	MaxRetries int
}

// Wait blocks until the job terminates or the coordinator gives up. The
// first query is issued immediately. Cancellation is cooperative: an
// in-flight query is allowed to complete and its result is discarded.
func (c Coordinator) Wait(ctx context.Context, fetch StatusFunc) (message.TranscriptionJob, error) {
	var last message.TranscriptionJob

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		job, err := fetch(ctx)
		if cerr := ctx.Err(); cerr != nil {
			// Cancelled mid-flight; the query's result is discarded.
			return last, cerr
		}

		if err != nil {
			// Transport errors are not terminal; they consume a retry.
			slog.Debug("poll attempt failed", "attempt", attempt, "error", err)
		} else {
			last = job
			switch job.Status {
			case message.JobCompleted:
				return job, nil
			case message.JobError:
				return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
			}
		}

		if attempt >= c.MaxRetries {
			return last, ErrExhausted
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(c.Interval):
		}
	}
}
