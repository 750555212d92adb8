package types

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// StringConstant represents a constant string value.
type StringConstant string

// String returns the string representation of the StringConstant.
func (s StringConstant) String() string {
	return string(s)
}

// CorrelationID represents a correlation ID.
type CorrelationID string

// String returns the string representation of the CorrelationID.
func (c CorrelationID) String() string {
	return string(c)
}

// MessageID represents a message ID.
type MessageID string

// String returns the string representation of the MessageID.
func (m MessageID) String() string {
	return string(m)
}

// ErrorCode represents an error code.
type ErrorCode string

// String returns the string representation of the ErrorCode.
func (e ErrorCode) String() string {
	return string(e)
}

// ComponentErrorType represents the type of component error.
type ComponentErrorType string

// String returns the string representation of the ComponentErrorType.
func (e ComponentErrorType) String() string {
	return string(e)
}

// ResponseErrorType represents the type of response error.
type ResponseErrorType string

// String returns the string representation of the ResponseErrorType.
func (e ResponseErrorType) String() string {
	return string(e)
}

// CodecType defines the wire format of a message body.
type CodecType string

// String returns the string representation of the CodecType.
func (e CodecType) String() string {
	return string(e)
}

// ToUpperCase converts the codec type to uppercase.
func (s CodecType) ToUpperCase() string {
	return strings.ToUpper(string(s))
}

// Outcome is the broker-level result of handling one delivery.
type Outcome string

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// LogMode represents the logging mode
type LogMode string

// String returns the string representation of the LogMode.
func (l LogMode) String() string {
	return string(l)
}

// LanguageTag wraps language.Tag so it can be used as a map key and zero-checked.
type LanguageTag language.Tag

// String returns the BCP 47 representation of the tag.
func (l LanguageTag) String() string {
	return language.Tag(l).String()
}

// ToLanguageTag converts a LanguageTag back to a language.Tag.
func ToLanguageTag(l LanguageTag) language.Tag {
	return language.Tag(l)
}

// Field type to represent structured log fields
//
//nolint:gochecknoglobals
type Field = zap.Field
