package blame

import (
	"context"
	"errors"

	"github.com/abhissng/relay/utils/types"
)

// IsRetryable classifies err for in-process retries and broker requeues.
// Errors without a classification are treated as transient. Cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var b Blame
	if errors.As(err, &b) {
		return b.IsRetryable()
	}
	return true
}

// IsCode reports whether err, or any error it wraps, is a Blame with the given code.
func IsCode(err error, code types.ErrorCode) bool {
	var b Blame
	for err != nil {
		if !errors.As(err, &b) {
			return false
		}
		if b.FetchErrCode() == code {
			return true
		}
		causes := b.Unwrap()
		if len(causes) == 0 {
			return false
		}
		err = errors.Join(causes...)
	}
	return false
}
