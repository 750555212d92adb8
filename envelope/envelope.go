// Package envelope carries a typed message body together with the metadata
// that ties it to a business transaction.
//
// An Envelope is immutable. Deriving a follow-up message goes through
// CorrelateWith, which keeps the correlation id of the cause and records the
// cause's message id as the causation id.
package envelope

import (
	"maps"
	"time"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/random"
)

// Message is implemented by every body that can travel in an envelope.
// MessageType returns a stable tag, never a reflected Go type name.
type Message interface {
	MessageType() string
}

// Envelope is a typed message container with correlation metadata.
type Envelope struct {
	messageType string
	body        any
	metadata    map[string]string
}

var (
	now   = func() time.Time { return time.Now().UTC() }
	newID = random.GenerateUUIDString
)

// New starts a business transaction. An empty correlationID mints a new one.
func New(body Message, correlationID string) Envelope {
	if correlationID == "" {
		correlationID = newID()
	}
	return Envelope{
		messageType: body.MessageType(),
		body:        body,
		metadata: map[string]string{
			constant.CorrelationID: correlationID,
			constant.MessageID:     newID(),
			constant.SentAt:        formatTime(now()),
		},
	}
}

// CorrelateWith derives an envelope for body caused by cause. Custom headers of
// the cause are carried over; the reserved keys follow the correlation rules.
func CorrelateWith(cause Envelope, body Message) Envelope {
	metadata := maps.Clone(cause.metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	if metadata[constant.CorrelationID] == "" {
		metadata[constant.CorrelationID] = newID()
	}
	delete(metadata, constant.CausationID)
	if causeID := cause.MessageID(); causeID != "" {
		metadata[constant.CausationID] = causeID
	}
	metadata[constant.MessageID] = newID()
	metadata[constant.SentAt] = formatTime(now())

	return Envelope{
		messageType: body.MessageType(),
		body:        body,
		metadata:    metadata,
	}
}

// Restore rebuilds an envelope received from the wire. The metadata is copied.
func Restore(messageType string, body any, metadata map[string]string) Envelope {
	return Envelope{
		messageType: messageType,
		body:        body,
		metadata:    maps.Clone(metadata),
	}
}

// Type returns the declared type tag.
func (e Envelope) Type() string { return e.messageType }

// Body returns the payload.
func (e Envelope) Body() any { return e.body }

// Metadata returns a copy of all metadata.
func (e Envelope) Metadata() map[string]string { return maps.Clone(e.metadata) }

// Get returns one metadata value.
func (e Envelope) Get(key string) string { return e.metadata[key] }

// CorrelationID returns the id shared by every message of the transaction.
func (e Envelope) CorrelationID() string { return e.metadata[constant.CorrelationID] }

// CausationID returns the message id of the direct cause, empty at the origin.
func (e Envelope) CausationID() string { return e.metadata[constant.CausationID] }

// MessageID returns the id unique to this envelope.
func (e Envelope) MessageID() string { return e.metadata[constant.MessageID] }

// SentAt returns the publish timestamp. A missing or malformed value yields the zero time.
func (e Envelope) SentAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, e.metadata[constant.SentAt])
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether e was never initialised.
func (e Envelope) IsZero() bool {
	return e.messageType == "" && e.body == nil && len(e.metadata) == 0
}

// WithHeader returns a copy of e with a custom header set. Reserved keys are ignored.
func (e Envelope) WithHeader(key, value string) Envelope {
	if IsReserved(key) {
		return e
	}
	metadata := maps.Clone(e.metadata)
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata[key] = value
	e.metadata = metadata
	return e
}

// IsReserved reports whether key is managed by the envelope itself.
func IsReserved(key string) bool {
	switch key {
	case constant.CorrelationID, constant.CausationID, constant.MessageID, constant.SentAt:
		return true
	}
	return false
}

// BodyAs returns the body as T, or a type mismatch error.
func BodyAs[T any](e Envelope) (T, error) {
	if v, ok := e.body.(T); ok {
		return v, nil
	}
	if p, ok := e.body.(*T); ok && p != nil {
		return *p, nil
	}
	var zero T
	return zero, blame.MessageTypeMismatchError(typeName[T](), e.body)
}

func typeName[T any]() string {
	var zero T
	if m, ok := any(zero).(Message); ok {
		return m.MessageType()
	}
	return "unknown"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
