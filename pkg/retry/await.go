package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned by Await when the poll budget runs out
// before the polled operation reports completion.
var ErrBudgetExhausted = errors.New("poll budget exhausted")

// AwaitConfig bounds a fixed-interval polling loop. Unlike Config there is
// no backoff: remote long-running jobs are polled at a steady cadence and
// exceeding the budget is a reported failure, never a background continue.
type AwaitConfig struct {
	MaxAttempts int           // Total poll attempts before giving up
	Interval    time.Duration // Fixed delay between polls

	// Sleep overrides the delay between polls. Tests inject a fake clock
	// here; production code leaves it nil.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultAwaitConfig returns the standard budget for remote async jobs:
// 30 attempts at 500ms, roughly 15 seconds end to end.
func DefaultAwaitConfig() AwaitConfig {
	return AwaitConfig{
		MaxAttempts: 30,
		Interval:    500 * time.Millisecond,
	}
}

// PollFunc checks a long-running operation once. It returns done=true when
// the operation has completed, and a non-nil error to abort polling
// immediately. "Not yet complete" is (false, nil).
type PollFunc func(ctx context.Context) (done bool, err error)

// Await polls fn at a fixed interval until it reports done, the budget is
// exhausted, or the context is cancelled. Hard errors from fn abort the
// loop immediately; only "not yet complete" consumes budget.
func Await(ctx context.Context, cfg AwaitConfig, fn PollFunc) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, cfg.Interval); err != nil {
			return fmt.Errorf("await cancelled after attempt %d: %w", attempt, err)
		}
	}

	return fmt.Errorf("await gave up after %d attempts: %w", cfg.MaxAttempts, ErrBudgetExhausted)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
