// Package retry implements exponential backoff for transient failures,
// used by the producer client when the conductor server is unreachable.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultConfig returns the schedule the producer client uses unless
// told otherwise: 3 retries, 1s initial backoff, doubling, capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or ctx is
// cancelled. The sleep between attempts grows by Multiplier up to
// MaxBackoff. There is no sleep after the final attempt.
func Do(ctx context.Context, config Config, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxRetries, lastErr)
}

// IsRetryable reports whether an error looks like a transient network or
// server failure. Protocol-level errors (bad schema, unknown uuid) are
// never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"502",
		"503",
		"504",
		"eof",
		"broken pipe",
	} {
		if strings.Contains(errStr, fragment) {
			return true
		}
	}
	return false
}
