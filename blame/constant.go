package blame

import (
	"github.com/abhissng/relay/utils/types"
)

const (
	ReasonCodeNameSpace = "RELAY"
	ReasonCodeBase      = 100000
)

// Error Identifiers for the library
const (
	ErrorInternalServerError       types.ErrorCode = "error-internal-server-error"
	ErrorMarshalFailed             types.ErrorCode = "error-marshal-failed"
	ErrorDeserializationFailed     types.ErrorCode = "error-deserialization-failed"
	ErrorUnknownMessageType        types.ErrorCode = "error-unknown-message-type"
	ErrorNoHandlerRegistered       types.ErrorCode = "error-no-handler-registered"
	ErrorDuplicateRegistration     types.ErrorCode = "error-duplicate-registration"
	ErrorMessageTypeMismatch       types.ErrorCode = "error-message-type-mismatch"
	ErrorMissingCorrelationID      types.ErrorCode = "error-missing-correlation-id"
	ErrorPublishMessageFailed      types.ErrorCode = "error-publish-message-failed"
	ErrorDelayedPublishUnsupported types.ErrorCode = "error-delayed-publish-unsupported"
	ErrorSubscribeToQueueFailed    types.ErrorCode = "error-subscribe-to-queue-failed"
	ErrorAlreadySubscribedToQueue  types.ErrorCode = "error-already-subscribed-to-queue"
	ErrorAcknowledgeFailed         types.ErrorCode = "error-acknowledge-failed"
	ErrorHandlerPanicked           types.ErrorCode = "error-handler-panicked"
	ErrorSagaTransitionFailed      types.ErrorCode = "error-saga-transition-failed"
	ErrorSchedulerClosed           types.ErrorCode = "error-scheduler-closed"
	ErrorIdempotencyStoreFailed    types.ErrorCode = "error-idempotency-store-failed"
	ErrorInvalidOrder              types.ErrorCode = "error-invalid-order"
	ErrorCookingFailed             types.ErrorCode = "error-cooking-failed"
	ErrorRequestBodyInvalid        types.ErrorCode = "error-request-body-invalid"
	ErrorConfigLoadFailure         types.ErrorCode = "error-config-load-failure"
	ErrorServerStartFailed         types.ErrorCode = "error-server-start-failed"
)
