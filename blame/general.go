package blame

import (
	"fmt"
	"time"

	"github.com/abhissng/relay/utils/types"
)

// maxContentField bounds the raw payload kept on deserialization errors.
const maxContentField = 1024

/*
** These are library error functions which use
** the embedded catalogue to determine the error
 */

// InternalServerError is an internal server error.
func InternalServerError(cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(ErrorInternalServerError, WithCauses(cause))
}

// MarshalError is an error when encoding a body fails.
func MarshalError(encodingType types.CodecType, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorMarshalFailed,
		WithField("type", encodingType.ToUpperCase()),
		WithCauses(cause),
	)
}

// DeserializationError is raised when bytes of a known type cannot be decoded.
// The raw content is kept for diagnostics.
func DeserializationError(messageType string, content []byte, cause error) Blame {
	raw := string(content)
	if len(raw) > maxContentField {
		raw = raw[:maxContentField] + "..."
	}
	return getLocalBlameManager().FetchBlameForError(
		ErrorDeserializationFailed,
		WithFields(map[string]any{
			"type":    messageType,
			"content": raw,
		}),
		WithCauses(cause),
	)
}

// UnknownTypeError is raised when a type tag does not resolve to a registered type.
func UnknownTypeError(messageType string) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorUnknownMessageType,
		WithField("type", messageType),
	)
}

// NoHandlerRegisteredError is raised when dispatch finds nothing for a type.
func NoHandlerRegisteredError(messageType string) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorNoHandlerRegistered,
		WithField("type", messageType),
	)
}

// DuplicateRegistrationError is raised when a tag is registered twice.
func DuplicateRegistrationError(messageType string) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorDuplicateRegistration,
		WithField("type", messageType),
	)
}

// MessageTypeMismatchError is raised when an envelope body is not the Go type a handler expects.
func MessageTypeMismatchError(expected string, actual any) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorMessageTypeMismatch,
		WithFields(map[string]any{
			"expected": expected,
			"actual":   fmt.Sprintf("%T", actual),
		}),
	)
}

// MissingCorrelationIDError is raised when a saga receives a message without a correlation id.
func MissingCorrelationIDError(messageID string) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorMissingCorrelationID,
		WithField("message_id", messageID),
	)
}

// PublishMessageError is an error when publishing a message fails.
func PublishMessageError(destination string, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorPublishMessageFailed,
		WithField("destination", destination),
		WithCauses(cause),
	)
}

// DelayedPublishUnsupportedError is raised when a delayed send reaches a broker without delay support.
func DelayedPublishUnsupportedError(destination string, delay time.Duration) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorDelayedPublishUnsupported,
		WithFields(map[string]any{
			"destination": destination,
			"delay":       delay.String(),
		}),
	)
}

// SubscribeToQueueError is an error when consuming from a queue fails.
func SubscribeToQueueError(queue string, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorSubscribeToQueueFailed,
		WithField("queue", queue),
		WithCauses(cause),
	)
}

// AlreadySubscribedToQueueError is an error when the queue already has a consumer.
func AlreadySubscribedToQueueError(queue string) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorAlreadySubscribedToQueue,
		WithField("queue", queue),
	)
}

// AcknowledgeError is an error when a delivery cannot be settled.
func AcknowledgeError(messageID string, outcome types.Outcome, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorAcknowledgeFailed,
		WithFields(map[string]any{
			"message_id": messageID,
			"outcome":    outcome.String(),
		}),
		WithCauses(cause),
	)
}

// HandlerPanickedError turns a recovered panic into a failure.
func HandlerPanickedError(messageID string, recovered any) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorHandlerPanicked,
		WithField("message_id", messageID),
		WithCauses(fmt.Errorf("panic: %v", recovered)),
	)
}

// SagaTransitionError wraps the failure of a saga transition. The retry
// classification of the cause is kept.
func SagaTransitionError(saga, messageType string, cause error) Blame {
	b := getLocalBlameManager().FetchBlameForError(
		ErrorSagaTransitionFailed,
		WithFields(map[string]any{
			"saga": saga,
			"type": messageType,
		}),
		WithCauses(cause),
	)
	return b.WithRetryable(IsRetryable(cause))
}

// SchedulerClosedError is raised when a timeout is requested after Close.
func SchedulerClosedError() Blame {
	return getLocalBlameManager().FetchBlameForError(ErrorSchedulerClosed)
}

// IdempotencyStoreError is raised when the duplicate detection store fails.
func IdempotencyStoreError(operation string, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorIdempotencyStoreFailed,
		WithField("operation", operation),
		WithCauses(cause),
	)
}

// InvalidOrderError is raised when an order request does not validate.
func InvalidOrderError(reason string, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorInvalidOrder,
		WithField("reason", reason),
		WithCauses(cause),
	)
}

// CookingFailedError is the transient failure of the kitchen.
func CookingFailedError(order int, food int, cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(
		ErrorCookingFailed,
		WithFields(map[string]any{
			"order": order,
			"food":  food,
		}),
		WithCauses(cause),
	)
}

// RequestBodyInvalid is an error when the request body cannot be parsed.
func RequestBodyInvalid(cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(ErrorRequestBodyInvalid, WithCauses(cause))
}

// ConfigLoadFailure is an error when the configuration cannot be loaded.
func ConfigLoadFailure(cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(ErrorConfigLoadFailure, WithCauses(cause))
}

// ServerStartFailed is an error when the HTTP server fails to start.
func ServerStartFailed(cause error) Blame {
	return getLocalBlameManager().FetchBlameForError(ErrorServerStartFailed, WithCauses(cause))
}
