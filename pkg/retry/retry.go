package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "github.com/derwolz/TwitterScraper/pkg/errors"
	"github.com/derwolz/TwitterScraper/pkg/logger"
)

// Operation is a unit of work that might need retrying
type Operation func() error

// Config holds retry configuration
type Config struct {
	// MaxRetries is the number of extra attempts after the first; 0 disables retrying
	MaxRetries int
	Backoff    BackoffStrategy
	// RetryIf decides whether an error is worth another attempt
	RetryIf func(error) bool
	Logger  logger.Logger
}

// DefaultRetryIf retries transport failures, 5xx and 429 responses
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// retries, or ctx is cancelled.
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt > cfg.MaxRetries {
			if cfg.MaxRetries == 0 {
				return err
			}
			return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":     attempt,
			"error":       err.Error(),
			"delay_ms":    delay.Milliseconds(),
			"max_retries": cfg.MaxRetries,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}
