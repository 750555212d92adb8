// Package handler adapts result-returning controllers to gin.
package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/abhissng/relay/adapters/gin/request"
	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/result"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/abhissng/relay/utils/types"
	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope of every JSON answer.
type APIResponse[T any] struct {
	Success       bool                `json:"success"`
	CorrelationID types.CorrelationID `json:"correlation_id"`
	Result        T                   `json:"result"`
}

// NewAPIResponse builds an APIResponse.
func NewAPIResponse[T any](success bool, correlationID types.CorrelationID, result T) APIResponse[T] {
	return APIResponse[T]{
		Success:       success,
		CorrelationID: correlationID,
		Result:        result,
	}
}

// RequestHandler is a controller returning a result.Result[T].
type RequestHandler[T any] func(*gin.Context) result.Result[T]

// ExecuteControllerHandler runs handler and writes its result: the value
// with successStatus, a blame with the status its response type maps to, or
// a generic 500 when the controller panics.
func ExecuteControllerHandler[T any](logger *log.Log, successStatus int, handler RequestHandler[T]) gin.HandlerFunc {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				handleException(logger, c, err)
			}
		}()
		processResult(logger, c, successStatus, handler(c))
	}
}

// handleException logs the panic and answers without leaking details.
func handleException(logger *log.Log, c *gin.Context, err any) {
	serverBlame := blame.InternalServerError(fmt.Errorf("error %+v", err))
	logger.Error(constant.HandlerException,
		log.String(constant.CorrelationID, request.FetchCorrelationID(c).String()),
		log.Blame(serverBlame),
		log.String("stack", string(debug.Stack())),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewAPIResponse(false, request.FetchCorrelationID(c), gin.H{
		"message": "An unexpected error occurred. Please contact the administrator.",
	}))
}

func processResult[T any](logger *log.Log, c *gin.Context, successStatus int, res result.Result[T]) {
	correlationID := request.FetchCorrelationID(c)
	if !res.IsSuccess() {
		blameInfo := res.Error()
		status := helpers.FetchHTTPStatusCode(blameInfo.FetchResponseType())
		var body blame.ErrorResponse
		if status == http.StatusInternalServerError {
			// details of server-side failures stay in the logs
			body = blameInfo.FetchErrorResponse(blame.WithTranslation(), blame.WithoutCauses())
			body.Fields = nil
		} else {
			body = blameInfo.FetchErrorResponse(blame.WithTranslation())
		}
		logger.Error(constant.HandlerFailed, log.String(constant.CorrelationID, correlationID.String()), log.Blame(blameInfo))
		c.JSON(status, NewAPIResponse(false, correlationID, body))
		return
	}

	c.JSON(successStatus, NewAPIResponse(true, correlationID, res.ToValue()))
}
