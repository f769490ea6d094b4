package server

import (
	"net/netip"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

const (
	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-API-Key"

	ctxRequestID = "request_id"
	ctxAPIKey    = "api_key"
)

// requestID echoes the caller's X-Request-ID or generates one, and stamps it
// on the response so every log line and error body can be correlated.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// authenticate gates a route group behind X-API-Key and the key's token
// bucket. Successful requests carry X-RateLimit-* headers describing the
// bucket state; refusals get 429 plus Retry-After via the error writer.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := netip.ParseAddr(c.ClientIP())
		if err != nil {
			s.writeError(c, types.ErrForbidden)
			return
		}

		key, decision, err := s.keys.Authenticate(c.GetHeader(headerAPIKey), addr)
		if decision != nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(
				time.Now().Add(decision.ResetAfter).Unix(), 10))
		}
		if err != nil {
			s.writeError(c, err)
			return
		}

		c.Set(ctxAPIKey, key)
		c.Next()
	}
}
