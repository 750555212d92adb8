package middleware

import (
	"bytes"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
	"github.com/gin-gonic/gin"
)

// GinRequestLogger logs every request and its response status. Response
// bodies are captured only when logResponseBody is set.
func GinRequestLogger(logger *log.Log, logResponseBody bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		logger.Info(constant.IncomingRequest,
			log.String("method", c.Request.Method),
			log.String("url", c.Request.RequestURI),
			log.String("client_ip", c.ClientIP()),
			log.String("request_id", c.GetString(constant.RequestID)),
			log.String(constant.CorrelationID, c.GetString(constant.CorrelationID)),
			log.Any("user_agent", c.Request.UserAgent()),
		)

		// Capture Response Body (if needed)
		var responseBodyBuffer bytes.Buffer
		if logResponseBody {
			c.Writer = &responseWriter{ResponseWriter: c.Writer, body: &responseBodyBuffer}
		}

		c.Next()

		fields := []log.Field{
			log.Int("status_code", c.Writer.Status()),
			log.Duration("latency", time.Since(startTime)),
			log.String("request_id", c.GetString(constant.RequestID)),
			log.String(constant.CorrelationID, c.GetString(constant.CorrelationID)),
		}
		if logResponseBody {
			fields = append(fields, log.String("response_body", responseBodyBuffer.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, log.String("errors", c.Errors.String()))
		}

		logger.Info(constant.RequestCompleted, fields...)
	}
}

// responseWriter is a custom implementation of gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write writes the response body
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b) // Capture response body
	return w.ResponseWriter.Write(b)
}
