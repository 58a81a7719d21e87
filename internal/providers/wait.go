package providers

import (
	"context"
	"time"
)

// WaitOptions controls WaitUntilTerminal.
type WaitOptions struct {
	Interval time.Duration // Default 1200ms
	Timeout  time.Duration // Default 60s
}

// WaitUntilTerminal polls a job at a fixed interval until it reaches a terminal
// status. It returns *TimeoutError once Timeout elapses, or ctx.Err() if the
// caller's context ends first. Poll errors are returned immediately.
func WaitUntilTerminal(ctx context.Context, client JobClient, id string, opts WaitOptions) (*Job, error) {
	if opts.Interval <= 0 {
		opts.Interval = 1200 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		job, err := client.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &TimeoutError{JobID: id, After: opts.Timeout}
		case <-ticker.C:
		}
	}
}
