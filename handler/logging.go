package handler

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/utils/constant"
)

// EnvelopeFields returns the log fields that identify env.
func EnvelopeFields(env envelope.Envelope) []log.Field {
	return []log.Field{
		log.String("type", env.Type()),
		log.String(constant.MessageID, env.MessageID()),
		log.String(constant.CorrelationID, env.CorrelationID()),
		log.String(constant.CausationID, env.CausationID()),
	}
}

// Logging logs before and after next runs. A failure is logged and returned
// unchanged.
func Logging(logger *log.Log) Middleware[envelope.Envelope] {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return func(next Handler[envelope.Envelope]) Handler[envelope.Envelope] {
		return HandlerFunc[envelope.Envelope](func(ctx context.Context, env envelope.Envelope) error {
			fields := EnvelopeFields(env)
			logger.Debug(constant.HandlerStarted, append(fields, log.Any("body", env.Body()))...)

			start := time.Now()
			err := next.Handle(ctx, env)
			fields = append(fields, log.Duration("elapsed", time.Since(start)))
			if err != nil {
				logger.Error(constant.HandlerFailed, append(fields, log.Err(err))...)
				return err
			}
			logger.Info(constant.HandlerSuccess, fields...)
			return nil
		})
	}
}
