package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the id assigned to each admin request. A caller
// supplied id is echoed back unchanged.
const RequestIDHeader = "X-Request-ID"

// UnmatchedRoute is the route label for requests no handler matched.
const UnmatchedRoute = "unmatched"

// AdminRequests tags, logs and counts every admin request. Logs and metrics
// use the route template, so /devices/7 is reported as /devices/:addr.
func AdminRequests(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		event.Msgf(
			"observability.AdminRequests id=%s method=%s route=%s path=%s status=%d bytes=%d duration=%s client=%s",
			id,
			c.Request.Method,
			route,
			c.Request.URL.Path,
			status,
			c.Writer.Size(),
			elapsed,
			c.ClientIP(),
		)
	}
}
