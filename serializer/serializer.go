// Package serializer converts envelopes to and from their wire form.
package serializer

import (
	"maps"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/types"
)

// Serializer encodes bodies in one format and decodes whatever format a
// message declares in its content type.
type Serializer struct {
	registry *Registry
	format   types.CodecType
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithFormat selects the body format used when encoding.
func WithFormat(format types.CodecType) Option {
	return func(s *Serializer) {
		if format != "" {
			s.format = format
		}
	}
}

// New creates a Serializer over registry. The default format is JSON.
func New(registry *Registry, opts ...Option) *Serializer {
	s := &Serializer{registry: registry, format: codec.JSON}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the type registry.
func (s *Serializer) Registry() *Registry {
	return s.registry
}

// Format returns the body format used when encoding.
func (s *Serializer) Format() types.CodecType {
	return s.format
}

// Encode serializes body and returns its type tag.
func (s *Serializer) Encode(body envelope.Message) (string, []byte, error) {
	tag := body.MessageType()
	if !s.registry.Known(tag) {
		return tag, nil, blame.UnknownTypeError(tag)
	}
	data, err := codec.Encode(body, s.format)
	if err != nil {
		return tag, nil, blame.MarshalError(s.format, err)
	}
	return tag, data, nil
}

// Decode turns bytes of a declared type back into a body.
func (s *Serializer) Decode(tag string, data []byte, format types.CodecType) (envelope.Message, error) {
	decode, ok := s.registry.decoder(tag)
	if !ok {
		return nil, blame.UnknownTypeError(tag)
	}
	body, err := decode(data, format)
	if err != nil {
		return nil, blame.DeserializationError(tag, data, err)
	}
	return body, nil
}

// Marshal builds the wire message for env. Correlation and message ids travel
// as transport properties, the rest of the metadata as headers.
func (s *Serializer) Marshal(env envelope.Envelope) (transport.Message, error) {
	body, ok := env.Body().(envelope.Message)
	if !ok {
		return transport.Message{}, blame.MessageTypeMismatchError(env.Type(), env.Body())
	}
	_, data, err := s.Encode(body)
	if err != nil {
		return transport.Message{}, err
	}

	headers := env.Metadata()
	delete(headers, constant.CorrelationID)
	delete(headers, constant.MessageID)

	return transport.Message{
		Type:          env.Type(),
		ContentType:   codec.ContentType(s.format),
		CorrelationID: env.CorrelationID(),
		MessageID:     env.MessageID(),
		Headers:       headers,
		Body:          data,
	}, nil
}

// Unmarshal rebuilds the envelope of a received message.
func (s *Serializer) Unmarshal(msg transport.Message) (envelope.Envelope, error) {
	body, err := s.Decode(msg.Type, msg.Body, codec.FromContentType(msg.ContentType))
	if err != nil {
		return envelope.Envelope{}, err
	}

	metadata := maps.Clone(msg.Headers)
	if metadata == nil {
		metadata = make(map[string]string, 2)
	}
	if msg.CorrelationID != "" {
		metadata[constant.CorrelationID] = msg.CorrelationID
	}
	if msg.MessageID != "" {
		metadata[constant.MessageID] = msg.MessageID
	}
	return envelope.Restore(msg.Type, body, metadata), nil
}
