package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// errorResponse is the envelope for every non-2xx body.
type errorResponse struct {
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	RequestID  string            `json:"request_id,omitempty"`
	Violations []types.Violation `json:"violations,omitempty"`
}

// writeError maps a service error onto a status code and machine-readable
// code, attaches the request id, and aborts the handler chain.
func (s *Server) writeError(c *gin.Context, err error) {
	resp := errorResponse{RequestID: requestIDFrom(c)}
	status := http.StatusInternalServerError
	resp.Error = "INTERNAL_ERROR"
	resp.Message = "internal error"

	var valErr *types.ValidationError
	var defErr *types.DefinitionError
	var rlErr *types.RateLimitError

	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "NOT_FOUND"
		resp.Message = err.Error()

	case errors.Is(err, types.ErrDuplicateKey), errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
		resp.Error = "CONFLICT"
		resp.Message = err.Error()

	case errors.Is(err, types.ErrInvalidArgument):
		status = http.StatusBadRequest
		resp.Error = "INVALID_INPUT"
		resp.Message = err.Error()

	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusUnauthorized
		resp.Error = "UNAUTHORIZED"
		resp.Message = "invalid or missing API key"

	case errors.Is(err, types.ErrForbidden):
		// Deliberately uniform: never say whether the key is inactive,
		// expired, or used from the wrong address.
		status = http.StatusForbidden
		resp.Error = "FORBIDDEN"
		resp.Message = "access denied"

	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		resp.Error = "VALIDATION_ERROR"
		resp.Message = "log data does not conform to the schema"
		resp.Violations = valErr.Violations

	case errors.As(err, &defErr):
		status = http.StatusUnprocessableEntity
		resp.Error = "INVALID_SCHEMA"
		resp.Message = defErr.Reason

	case errors.As(err, &rlErr):
		status = http.StatusTooManyRequests
		resp.Error = "RATE_LIMITED"
		resp.Message = rlErr.Error()
		c.Header("Retry-After", strconv.Itoa(int(ceilSeconds(rlErr.RetryAfter))))

	default:
		s.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", resp.RequestID),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, resp)
}

func ceilSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
