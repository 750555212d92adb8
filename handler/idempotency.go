package handler

import (
	"context"
	"strconv"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/idempotency"
	"github.com/cespare/xxhash/v2"
)

// Fingerprint derives the dedup key of an envelope.
type Fingerprint func(env envelope.Envelope) (string, error)

// MessageFingerprint hashes the type tag, the message id and the encoded body.
// It is the default fingerprint of the idempotency link. A broker redelivery
// shares the fingerprint of the original delivery. A message with equal
// content but a fresh message id, such as a re-issued command, is not flagged;
// use ContentFingerprint through WithFingerprint to flag it.
func MessageFingerprint(env envelope.Envelope) (string, error) {
	return hashEnvelope(env, env.MessageID())
}

// ContentFingerprint hashes the type tag and the encoded body only, so equal
// payloads collide regardless of their message ids.
func ContentFingerprint(env envelope.Envelope) (string, error) {
	return hashEnvelope(env, "")
}

func hashEnvelope(env envelope.Envelope, messageID string) (string, error) {
	body, err := codec.Encode(env.Body(), codec.JSON)
	if err != nil {
		return "", err
	}
	d := xxhash.New()
	_, _ = d.WriteString(env.Type())
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(messageID)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(body)
	return strconv.FormatUint(d.Sum64(), 16), nil
}

type idempotencyConfig struct {
	logger         *log.Log
	fingerprint    Fingerprint
	skipDuplicates bool
	metrics        Metrics
}

// IdempotencyOption configures the idempotency link.
type IdempotencyOption func(*idempotencyConfig)

// WithSkipDuplicates drops a duplicate instead of passing it through.
func WithSkipDuplicates() IdempotencyOption {
	return func(c *idempotencyConfig) { c.skipDuplicates = true }
}

// WithFingerprint replaces MessageFingerprint.
func WithFingerprint(f Fingerprint) IdempotencyOption {
	return func(c *idempotencyConfig) {
		if f != nil {
			c.fingerprint = f
		}
	}
}

// WithIdempotencyLogger sets the logger that reports duplicates.
func WithIdempotencyLogger(logger *log.Log) IdempotencyOption {
	return func(c *idempotencyConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIdempotencyMetrics counts duplicates.
func WithIdempotencyMetrics(m Metrics) IdempotencyOption {
	return func(c *idempotencyConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Idempotency detects messages whose fingerprint was already handled.
// The default fingerprint is MessageFingerprint, so only redeliveries of the
// same message are duplicates. By default a duplicate is only logged and
// still reaches next. The
// fingerprint is recorded once next succeeds. Store failures are logged and
// never fail the message.
func Idempotency(store idempotency.Store, opts ...IdempotencyOption) Middleware[envelope.Envelope] {
	cfg := &idempotencyConfig{
		logger:      log.NewNopLogger(),
		fingerprint: MessageFingerprint,
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next Handler[envelope.Envelope]) Handler[envelope.Envelope] {
		return HandlerFunc[envelope.Envelope](func(ctx context.Context, env envelope.Envelope) error {
			fp, err := cfg.fingerprint(env)
			if err != nil {
				cfg.logger.Warn(constant.LibraryError, append(EnvelopeFields(env), log.Err(err))...)
				return next.Handle(ctx, env)
			}

			seen, err := store.Seen(ctx, fp)
			if err != nil {
				cfg.logger.Warn(constant.LibraryError, append(EnvelopeFields(env), log.Err(err))...)
			}
			if seen {
				cfg.metrics.IncDuplicate(env.Type())
				cfg.logger.Warn(constant.DuplicateMessage, append(EnvelopeFields(env),
					log.String("fingerprint", fp),
					log.Bool("skipped", cfg.skipDuplicates))...)
				if cfg.skipDuplicates {
					return nil
				}
			}

			if err := next.Handle(ctx, env); err != nil {
				return err
			}
			if err := store.Mark(ctx, fp); err != nil {
				cfg.logger.Warn(constant.LibraryError, append(EnvelopeFields(env), log.Err(err))...)
			}
			return nil
		})
	}
}
