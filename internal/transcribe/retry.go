package transcribe

import (
	"context"
	"time"
)

// Default retry parameters for remote calls.
const (
	defaultRetryBase = 4 * time.Second
	defaultRetryCap  = 60 * time.Second
	defaultAttempts  = 5
)

// Policy retries a call with exponential backoff: the first wait is Base,
// each subsequent wait doubles, capped at Cap, for at most Attempts total
// calls. Once attempts are exhausted the last error is returned unchanged
// so the caller can still distinguish what actually went wrong.
type Policy struct {
	Base     time.Duration
	Cap      time.Duration
	Attempts int

	// Sleep waits between attempts; nil means a context-aware real sleep.
	// Tests substitute it to assert on the backoff schedule.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{
		Base:     defaultRetryBase,
		Cap:      defaultRetryCap,
		Attempts: defaultAttempts,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	wait := p.Base
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			wait *= 2
			if wait > p.Cap {
				wait = p.Cap
			}
		}

		last = fn()
		if last == nil {
			return nil
		}
		if !IsTransient(last) {
			return last
		}
	}
	return last
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
