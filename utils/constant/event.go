package constant

// constants for common messages or events
const (
	// System related messages
	SystemStarted = "SystemStarted"
	SystemStopped = "SystemStopped"
	LibraryError  = "Library Error"

	// Event related messages
	EventPublished       = "EventPublished"
	EventPublishedFailed = "EventPublishedFailed"
	QueueSubscribed      = "QueueSubscribed"
	QueueSubscribeFailed = "QueueSubscribeFailed"
	MessageProcessed     = "MessageProcessed"
	MessageRequeued      = "MessageRequeued"
	MessageRejected      = "MessageRejected"
	ConnectionClosed     = "ConnectionClosed"

	// Handler related messages
	HandlerStarted   = "HandlerStarted"
	HandlerSuccess   = "HandlerSuccessful"
	HandlerFailed    = "HandlerFailed"
	HandlerRetrying  = "HandlerRetrying"
	HandlerExhausted = "HandlerExhausted"
	HandlerPanicked  = "HandlerPanicked"
	DuplicateMessage = "DuplicateMessage"

	// Saga related messages
	SagaStarted        = "SagaStarted"
	SagaTransitioned   = "SagaTransitioned"
	SagaCompleted      = "SagaCompleted"
	SagaIgnored        = "SagaMessageIgnored"
	TimeoutScheduled   = "TimeoutScheduled"
	TimeoutFired       = "TimeoutFired"
	SagaStoreEvicted   = "SagaStoreEvicted"
	ScheduleTickFailed = "ScheduleTickFailed"

	// HTTP related messages
	IncomingRequest   = "IncomingRequest"
	RequestCompleted  = "RequestCompleted"
	HandlerException  = "HandlerException"
	ServerStarted     = "ServerStarted"
	ServerStopped     = "ServerStopped"
	RateLimitExceeded = "RateLimitExceeded"
)
