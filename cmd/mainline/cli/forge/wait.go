package forge

import (
	"context"
	"time"
)

// defaultPollInterval is used when WaitOptions leaves PollInterval zero.
const defaultPollInterval = 30 * time.Second

// waitForChecks is the cooperative poll loop shared by forge implementations.
// fetch is called once per interval; the loop exits when every check passed,
// any check failed, the timeout elapsed, or ctx was cancelled. Cancellation
// is surfaced as ctx.Err so callers can tell it apart from a CI verdict.
func waitForChecks(ctx context.Context, fetch func(context.Context) (*CheckStatus, error), opts WaitOptions) (*WaitResult, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	parent := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	timer := time.NewTimer(0) // first poll is immediate
	defer timer.Stop()

	// A status with zero runs right after a push may just mean the forge has
	// not registered the check suite yet. Success on an empty status needs a
	// confirming poll; only a repo with no checks at all reports empty twice.
	sawEmpty := false

	for {
		select {
		case <-ctx.Done():
			return waitVerdict(parent, ctx)
		case <-timer.C:
		}

		status, err := fetch(ctx)
		if err != nil {
			// Distinguish "the wait expired during a poll" from API failure.
			if ctx.Err() != nil {
				return waitVerdict(parent, ctx)
			}
			return nil, err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(*status)
		}

		if status.Failed > 0 {
			return &WaitResult{FailedChecks: status.FailedNames}, nil
		}
		if status.Pending == 0 {
			if status.Passed > 0 || sawEmpty {
				return &WaitResult{Success: true}, nil
			}
			sawEmpty = true
		}

		timer.Reset(interval)
	}
}

// waitVerdict maps an expired context to the loop's outcome. Only the wait's
// own timeout is a TimedOut verdict; a cancelled or expired caller context is
// always surfaced as its error, so callers never mistake their own deadline
// for a CI timeout.
func waitVerdict(parent, ctx context.Context) (*WaitResult, error) {
	if err := parent.Err(); err != nil {
		return nil, err
	}
	if ctx.Err() == context.DeadlineExceeded {
		return &WaitResult{TimedOut: true}, nil
	}
	return nil, ctx.Err()
}
