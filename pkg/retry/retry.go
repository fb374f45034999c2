package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

// Config holds retry configuration
type Config struct {
	Name         string
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Logger       *zerolog.Logger
}

// DefaultConfig returns default retry configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// Permanent marks err so Do stops retrying and returns it immediately.
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}

// Do executes fn with exponential backoff until it succeeds, returns a
// permanent error, the attempts run out or ctx is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxAttempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if cfg.Logger == nil {
				return
			}
			cfg.Logger.Warn().
				Err(err).
				Str("operation", cfg.Name).
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxAttempts).
				Msg("Retrying")
		}),
	)
}

// DoWithResult executes a function with exponential backoff retry and returns a result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
