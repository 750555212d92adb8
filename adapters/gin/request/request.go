// Package request extracts typed input from gin requests.
package request

import (
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/result"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/types"
	"github.com/gin-gonic/gin"
)

// ExtractDataFromRequestBody binds the JSON body into T.
func ExtractDataFromRequestBody[T any](c *gin.Context) result.Result[T] {
	var payload T
	err := c.ShouldBindJSON(&payload)
	if err != nil {
		return result.NewFailure[T](blame.RequestBodyInvalid(err))
	}
	return result.NewSuccess(&payload)
}

// FetchCorrelationID returns the correlation id set by RequestIDMiddleware.
func FetchCorrelationID(c *gin.Context) types.CorrelationID {
	return types.CorrelationID(c.GetString(constant.CorrelationID))
}
