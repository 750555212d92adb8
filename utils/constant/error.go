package constant

import "github.com/abhissng/relay/utils/types"

// These are ComponentErrorType constant
const (
	ErrAdaptors    types.ComponentErrorType = "adaptors"
	ErrApplication types.ComponentErrorType = "application"
	ErrLibrary     types.ComponentErrorType = "library"
	ErrCodec       types.ComponentErrorType = "codec"
	ErrHandler     types.ComponentErrorType = "handler"
	ErrEngine      types.ComponentErrorType = "engine"
	ErrSaga        types.ComponentErrorType = "saga"
	ErrDomain      types.ComponentErrorType = "domain"
)

// These are generic HTTP request error constant
const (
	BadRequest     types.ResponseErrorType = "BadRequest"
	NotFound       types.ResponseErrorType = "NotFound"
	AlreadyExists  types.ResponseErrorType = "AlreadyExists"
	InternalServer types.ResponseErrorType = "InternalServerError"
)
