package retry

import (
	"context"
	"fmt"
	"time"
)

// Config parameterizes Do's exponential backoff and which errors from
// fn are worth retrying at all.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	Multiplier     float64       // Backoff multiplier (exponential)

	// Retryable classifies an error from fn. A nil Retryable retries
	// every error, matching the unconditional behavior callers get if
	// they don't have an opinion. Callers that can tell a transient
	// condition (a peer restarting) from a permanent one (a bad
	// request) should supply a classifier instead of leaving it nil.
	Retryable func(error) bool
}

// DefaultConfig returns sensible defaults for retries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// Do executes fn with exponential backoff, stopping early if
// config.Retryable rejects an error as permanent.
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

		if config.Retryable != nil && !config.Retryable(err) {
			return fmt.Errorf("giving up, not retryable: %w", err)
		}

		// Don't sleep after the last attempt.
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
