package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep replaces the interval delay so tests run on a fake clock.
func noSleep(slept *int) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, _ time.Duration) error {
		if slept != nil {
			*slept++
		}
		return nil
	}
}

func TestAwait_CompletesWithinBudget(t *testing.T) {
	polls := 0
	cfg := AwaitConfig{MaxAttempts: 5, Interval: time.Second, Sleep: noSleep(nil)}

	err := Await(context.Background(), cfg, func(_ context.Context) (bool, error) {
		polls++
		return polls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, polls)
}

func TestAwait_BudgetExhausted(t *testing.T) {
	polls := 0
	slept := 0
	cfg := AwaitConfig{MaxAttempts: 4, Interval: time.Second, Sleep: noSleep(&slept)}

	err := Await(context.Background(), cfg, func(_ context.Context) (bool, error) {
		polls++
		return false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 4, polls)
	// No sleep after the final attempt
	assert.Equal(t, 3, slept)
}

func TestAwait_HardErrorAbortsImmediately(t *testing.T) {
	polls := 0
	boom := errors.New("remote job failed")
	cfg := AwaitConfig{MaxAttempts: 10, Interval: time.Second, Sleep: noSleep(nil)}

	err := Await(context.Background(), cfg, func(_ context.Context) (bool, error) {
		polls++
		return false, boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, polls)
}

func TestAwait_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := AwaitConfig{
		MaxAttempts: 10,
		Interval:    time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	err := Await(ctx, cfg, func(_ context.Context) (bool, error) {
		return false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_DefaultsApplied(t *testing.T) {
	cfg := DefaultAwaitConfig()
	assert.Equal(t, 30, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)

	// Zero-value config still polls at least once
	polls := 0
	err := Await(context.Background(), AwaitConfig{Sleep: noSleep(nil)}, func(_ context.Context) (bool, error) {
		polls++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, polls)
}
