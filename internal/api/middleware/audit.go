package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const ContextAudit = "audit"

// Audit identifies where a request came from. It is attached to every
// mutation log line.
type Audit struct {
	IP        string
	UserAgent string
}

// AuditMiddleware records the caller's address and user agent on the gin
// context and on the request logger.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		audit := Audit{IP: clientAddress(c), UserAgent: c.GetHeader("User-Agent")}
		c.Set(ContextAudit, audit)

		zerolog.Ctx(c.Request.Context()).UpdateContext(func(l zerolog.Context) zerolog.Context {
			return l.Str("ip", audit.IP).Str("user_agent", audit.UserAgent)
		})

		c.Next()
	}
}

// clientAddress prefers proxy headers; the first X-Forwarded-For hop is the
// original client.
func clientAddress(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// GetAudit returns the request's audit record, zero if the middleware did not
// run.
func GetAudit(c *gin.Context) Audit {
	audit, _ := c.Get(ContextAudit)
	a, _ := audit.(Audit)
	return a
}
