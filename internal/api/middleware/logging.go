package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/telemetry"
)

const (
	ContextRequestID = "request_id"
	requestIDHeader  = "X-Request-ID"
)

// RequestLogger replaces gin.Logger. It tags the request with an id, puts a
// child logger into the request context and writes one line per request.
func RequestLogger(logger zerolog.Logger, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(requestIDHeader, requestID)

		reqLogger := logger.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(status))

		l := zerolog.Ctx(c.Request.Context())
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = l.Error()
		case status >= 400:
			event = l.Warn()
		default:
			event = l.Info()
		}
		if wc, ok := GetWorkspaceContext(c); ok {
			event = event.Str("workspace", wc.Workspace.Slug)
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
