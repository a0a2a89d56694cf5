// pkg/retry/retry.go - functions for retrying actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/logging"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Retry returns it after the first attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked non-retryable.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// FromSettings converts the configured retry settings.
func FromSettings(s config.RetrySettings) RetryConfig {
	return RetryConfig{
		MaxRetries:      s.MaxRetries,
		InitialInterval: time.Duration(s.InitialIntervalSeconds) * time.Second,
		Multiplier:      s.Multiplier,
	}
}

// sleep waits for d or until ctx is done. Tests replace it.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry retries a given function with exponential backoff. It stops early on
// a non-retryable error or when ctx is cancelled, and returns the last error.
func Retry(ctx context.Context, config RetryConfig, action func() error) error {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	interval := config.InitialInterval

	var lastErr error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := action()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			logging.LogStructured(logging.LevelWarn,
				fmt.Sprintf("Non-retryable error encountered: %s", err.Error()),
				map[string]interface{}{
					"level":         "RETRY",
					"attempt":       attempt,
					"non_retryable": true,
				})
			return err
		}

		if attempt == config.MaxRetries {
			logging.LogStructured(logging.LevelWarn,
				fmt.Sprintf("Attempt %d/%d failed: %s. No more retries.",
					attempt, config.MaxRetries, err.Error()),
				map[string]interface{}{
					"level":         "RETRY",
					"attempt":       attempt,
					"max_attempts":  config.MaxRetries,
					"final_failure": true,
				})
			break
		}

		logging.LogStructured(logging.LevelWarn,
			fmt.Sprintf("Attempt %d/%d failed: %s. Retrying in %s...",
				attempt, config.MaxRetries, err.Error(), interval.String()),
			map[string]interface{}{
				"level":        "RETRY",
				"attempt":      attempt,
				"max_attempts": config.MaxRetries,
				"retry_delay":  interval.String(),
			})

		if err := sleep(ctx, interval); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
		interval = time.Duration(float64(interval) * config.Multiplier)
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, lastErr)
}
