package blame

import (
	"fmt"
	"maps"
	"runtime"
	"strings"

	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/abhissng/relay/utils/types"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// Error struct holds the error information
type Error struct {
	reasonCode   string          // RELAY-100003
	errCode      types.ErrorCode // error-deserialization-failed
	component    types.ComponentErrorType
	responseType types.ResponseErrorType
	message      string
	description  string
	retryable    bool
	fields       map[string]any
	causes       []error
	source       string
	bundle       *i18n.Bundle
	language     types.LanguageTag
}

// NewError creates a new Error instance
func NewError(
	reasonCode string,
	errorCode types.ErrorCode,
	message, description string,
) *Error {
	if helpers.IsEmpty(reasonCode) {
		reasonCode = string(errorCode)
	}
	return &Error{
		reasonCode:  reasonCode,
		errCode:     errorCode,
		message:     message,
		description: description,
		retryable:   true,
		language:    helpers.GetDefaultLanguageTag(),
		fields:      map[string]any{},
		causes:      make([]error, 0),
		source:      findSource(),
	}
}

// NewBasicError creates a new Error instance with the given error code
func NewBasicError(
	errorCode types.ErrorCode,
) *Error {
	return &Error{
		reasonCode: errorCode.String(),
		errCode:    errorCode,
		retryable:  true,
		language:   helpers.GetDefaultLanguageTag(),
		fields:     map[string]any{},
		causes:     make([]error, 0),
		source:     findSource(),
	}
}

// clone returns a copy that can be decorated without touching the catalogue entry.
func (e *Error) clone() *Error {
	c := *e
	c.fields = maps.Clone(e.fields)
	if c.fields == nil {
		c.fields = map[string]any{}
	}
	c.causes = append(make([]error, 0, len(e.causes)), e.causes...)
	return &c
}

// FetchReasonCode returns the reason code of the error as a string
func (e *Error) FetchReasonCode() string {
	return e.reasonCode
}

// FetchErrCode returns the error code of the error as a ErrorCode
func (e *Error) FetchErrCode() types.ErrorCode {
	return e.errCode
}

// FetchMessage returns the message of the error as a string
func (e *Error) FetchMessage() string {
	return e.message
}

// FetchDescription returns the description of the error as a string
func (e *Error) FetchDescription() string {
	return e.description
}

// FetchBundle returns the bundle of the error as a *i18n.Bundle
func (e *Error) FetchBundle() *i18n.Bundle {
	return e.bundle
}

// WithBundle sets the bundle of the error and returns the updated Error instance.
func (e *Error) WithBundle(localBundle *i18n.Bundle) *Error {
	e.bundle = localBundle
	return e
}

// WithLanguageTag sets the language tag of the error and returns the updated Error instance.
func (e *Error) WithLanguageTag(language types.LanguageTag) *Error {
	e.language = language
	return e
}

// FetchFields returns the fields of the error as a map[string]any
func (e *Error) FetchFields() map[string]any {
	return e.fields
}

// FetchSource returns the source of the error as a string
func (e *Error) FetchSource() string {
	return e.source
}

// FetchComponent returns the component of the error as a ComponentErrorType
func (e *Error) FetchComponent() types.ComponentErrorType {
	return e.component
}

// FetchResponseType returns the response type of the error as a ResponseErrorType
func (e *Error) FetchResponseType() types.ResponseErrorType {
	return e.responseType
}

// FetchCauses returns the causes of the error as a slice of errors
func (e *Error) FetchCauses() []error {
	return e.causes
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return e.retryable
}

// WithRetryable overrides the retry classification.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.retryable = retryable
	return e
}

// WithField adds a field to the error and returns the updated Error instance.
func (e *Error) WithField(key string, value any) *Error {
	e.fields[key] = value
	return e
}

// WithFields adds multiple fields to the error and returns the updated Error instance.
func (e *Error) WithFields(fields map[string]any) *Error {
	maps.Copy(e.fields, fields)
	return e
}

// WithCause adds a cause to the error and returns the updated Error instance.
func (e *Error) WithCause(err error) *Error {
	if err != nil {
		e.causes = append(e.causes, err)
	}
	return e
}

// WithComponent sets the component of the error and returns the updated Error instance.
func (e *Error) WithComponent(component types.ComponentErrorType) *Error {
	e.component = component
	return e
}

// WithResponseType sets the response type of the error and returns the updated Error instance.
func (e *Error) WithResponseType(responseType types.ResponseErrorType) *Error {
	e.responseType = responseType
	return e
}

// Unwrap returns the causes so errors.Is and errors.As can walk them.
func (e *Error) Unwrap() []error {
	return e.causes
}

// Error returns the error code with the causes as a string
func (e *Error) Error() string {
	if len(e.causes) == 0 {
		return e.errCode.String()
	}
	return fmt.Sprintf("%s (causes: %s)", e.errCode.String(), helpers.FetchErrorStack(e.causes))
}

// findSource captures the source of the error at the point of instantiation.
func findSource() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", file, line)
}

// Translate renders the message and description with field values and localizes them through the bundle.
func (e *Error) Translate() (string, string) {
	message := e.message
	description := e.description
	for key, value := range e.fields {
		formatted := "[" + fmt.Sprintf("%v", value) + "]"
		message = strings.ReplaceAll(message, "{{."+key+"}}", formatted)
		description = strings.ReplaceAll(description, "{{."+key+"}}", formatted)
	}

	if e.bundle == nil {
		return message, description
	}

	localizer := i18n.NewLocalizer(e.bundle, e.language.String())
	localizedMessage, err := localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:          e.errCode.String(),
			Other:       message,
			Description: description,
		},
	})
	if err != nil {
		helpers.Println(constant.ERROR, "Error localizing message: ", err)
		return message, description
	}

	localizedDescription, err := localizer.Localize(&i18n.LocalizeConfig{
		DefaultMessage: &i18n.Message{
			ID:    e.errCode.String() + ".description",
			Other: description,
		},
	})
	if err != nil {
		helpers.Println(constant.ERROR, "Error localizing description: ", err)
		return localizedMessage, description
	}
	return localizedMessage, localizedDescription
}

// ErrorResponse struct holds the error information for sending as a response
type ErrorResponse struct {
	ReasonCode   string                   `json:"reason_code,omitempty"`
	ErrorCode    types.ErrorCode          `json:"error_code,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Description  string                   `json:"description,omitempty"`
	Fields       map[string]any           `json:"fields,omitempty"`
	Component    types.ComponentErrorType `json:"component,omitempty"`
	ResponseType types.ResponseErrorType  `json:"response_type,omitempty"`
	Causes       []string                 `json:"causes,omitempty"`
}

// FetchErrorResponse returns the error as a response payload.
func (e *Error) FetchErrorResponse(options ...SendErrorResponseOption) ErrorResponse {
	response := ErrorResponse{
		ReasonCode:   e.FetchReasonCode(),
		ErrorCode:    e.FetchErrCode(),
		Message:      e.FetchMessage(),
		Description:  e.FetchDescription(),
		Fields:       e.FetchFields(),
		Component:    e.FetchComponent(),
		ResponseType: e.FetchResponseType(),
		Causes:       helpers.FetchErrorStrings(e.FetchCauses()),
	}

	for _, opt := range options {
		opt(&response, e)
	}
	return response
}

// SendErrorResponseOption is a function that can be used to modify the error response
type SendErrorResponseOption func(*ErrorResponse, Blame)

// WithTranslation translates the error message and description
func WithTranslation() SendErrorResponseOption {
	return func(response *ErrorResponse, err Blame) {
		response.Message, response.Description = err.Translate()
	}
}

// WithoutCauses drops internal causes, for responses that leave the process.
func WithoutCauses() SendErrorResponseOption {
	return func(response *ErrorResponse, _ Blame) {
		response.Causes = nil
	}
}
