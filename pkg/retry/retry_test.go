package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/execx"
)

func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	waits := recordSleeps(t)
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 4, InitialInterval: time.Second, Multiplier: 2}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestRetryExhaustedWrapsLastError(t *testing.T) {
	recordSleeps(t)
	sentinel := errors.New("still broken")
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, Multiplier: 2}, func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryStopsOnPermanent(t *testing.T) {
	waits := recordSleeps(t)
	sentinel := errors.New("no package found")
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 5, InitialInterval: time.Second, Multiplier: 2}, func() error {
		calls++
		return Permanent(sentinel)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *waits)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Nil(t, Permanent(nil))
}

func TestRetryRetriesWrappedCommandErrors(t *testing.T) {
	waits := recordSleeps(t)
	cmdErr := &execx.CommandError{Name: "winget", ExitCode: 1, Err: errors.New("exit status 1")}
	assert.False(t, IsPermanent(cmdErr))
	assert.False(t, IsPermanent(fmt.Errorf("install Git.Git: %w", cmdErr)))

	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 3, InitialInterval: time.Second, Multiplier: 2}, func() error {
		calls++
		return cmdErr
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
	assert.ErrorAs(t, err, &cmdErr)
}

func TestRetryHonorsCancellation(t *testing.T) {
	recordSleeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{MaxRetries: 5, InitialInterval: time.Second, Multiplier: 2}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroConfigRunsOnce(t *testing.T) {
	recordSleeps(t)
	calls := 0
	err := Retry(context.Background(), RetryConfig{}, func() error {
		calls++
		return errors.New("x")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFromSettings(t *testing.T) {
	rc := FromSettings(config.RetrySettings{MaxRetries: 3, InitialIntervalSeconds: 5, Multiplier: 2})
	assert.Equal(t, RetryConfig{MaxRetries: 3, InitialInterval: 5 * time.Second, Multiplier: 2}, rc)
}
