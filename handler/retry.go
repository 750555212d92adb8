package handler

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/utils/constant"
)

// RetryConfig controls in-process retries.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// Wait is the pause between attempts.
	Wait time.Duration
	// ShouldRetry decides whether an error deserves another attempt.
	// Defaults to blame.IsRetryable.
	ShouldRetry func(error) bool
	Logger      *log.Log
	Metrics     Metrics
}

// Retry re-invokes next up to MaxRetries more times while it fails with a
// retryable error. The last error is returned once the budget is exhausted.
// A cancelled context stops the wait and returns the last error.
func Retry(cfg RetryConfig) Middleware[envelope.Envelope] {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = blame.IsRetryable
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	return func(next Handler[envelope.Envelope]) Handler[envelope.Envelope] {
		return HandlerFunc[envelope.Envelope](func(ctx context.Context, env envelope.Envelope) error {
			var err error
			for attempt := 0; ; attempt++ {
				start := time.Now()
				err = next.Handle(ctx, env)
				cfg.Metrics.ObserveHandler(env.Type(), time.Since(start), err)
				if err == nil {
					return nil
				}
				if !cfg.ShouldRetry(err) {
					return err
				}
				if attempt >= cfg.MaxRetries {
					if cfg.MaxRetries > 0 {
						cfg.Logger.Error(constant.HandlerExhausted, append(EnvelopeFields(env),
							log.Int("attempts", attempt+1), log.Err(err))...)
					}
					return err
				}

				cfg.Metrics.IncRetry(env.Type())
				cfg.Logger.Warn(constant.HandlerRetrying, append(EnvelopeFields(env),
					log.Int("attempt", attempt+1),
					log.Duration("wait", cfg.Wait),
					log.Err(err))...)
				if !sleep(ctx, cfg.Wait) {
					return err
				}
			}
		})
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
