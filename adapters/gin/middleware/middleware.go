package middleware

import (
	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/random"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware attaches a request id and a correlation id to the
// context and echoes both as response headers. A correlation id sent by the
// client is kept.
func RequestIDMiddleware(logger *log.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := random.GenerateUUIDString()

		correlationId := c.GetHeader(constant.CorrelationIDHeader)
		if correlationId == "" {
			correlationId = random.GenerateUUIDString()
		}

		c.Set(constant.RequestID, requestId)
		c.Set(constant.CorrelationID, correlationId)
		c.Header(constant.RequestIDHeader, requestId)
		c.Header(constant.CorrelationIDHeader, correlationId)

		logger.Debug("Request ID and Correlation ID", log.String("request-id", requestId), log.String("correlation-id", correlationId))
		c.Next()
	}
}

// CompressionMiddleware gzips responses.
func CompressionMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed)
}
