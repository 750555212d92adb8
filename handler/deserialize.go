package handler

import (
	"context"

	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
)

// Deserializing decodes the wire message into an envelope and passes it on.
// Unknown type tags and undecodable bodies fail without reaching next; both
// errors are classified as non-retryable.
func Deserializing(s *serializer.Serializer, next Handler[envelope.Envelope]) Handler[transport.Message] {
	return HandlerFunc[transport.Message](func(ctx context.Context, msg transport.Message) error {
		env, err := s.Unmarshal(msg)
		if err != nil {
			return err
		}
		return next.Handle(ctx, env)
	})
}
