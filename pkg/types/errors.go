package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard errors returned by the storage and service layers. Callers match
// them with errors.Is; the HTTP layer maps each to a status code and a
// machine-readable error code.
var (
	// ErrNotFound indicates the requested schema, log entry, or API key
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates a uniqueness violation, e.g. registering a
	// (name, version) pair that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict indicates a delete blocked by dependent rows. Resolved
	// only by an explicit force delete.
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument indicates malformed caller input such as a
	// non-positive page or limit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates the presented API key is unknown.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates a known API key that is inactive, expired, or
	// presented from a disallowed address. The reason is deliberately not
	// distinguished to callers.
	ErrForbidden = errors.New("forbidden")

	// ErrHubClosed indicates a publish or subscribe on a shut-down event hub.
	ErrHubClosed = errors.New("event hub closed")
)

// Violation describes one way a document failed validation against a schema:
// a JSON pointer into the document and a human-readable reason.
type Violation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError reports that a log payload failed validation against its
// schema definition. It carries the full violation list.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Path, v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DefinitionError reports that a schema definition is not a structurally
// valid JSON Schema draft-7 document.
type DefinitionError struct {
	Reason string
}

func (e *DefinitionError) Error() string {
	return "invalid schema definition: " + e.Reason
}

// RateLimitError reports an exhausted token bucket. RetryAfter is the
// duration until the next token becomes available.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit %d/s, retry after %s)", e.Limit, e.RetryAfter)
}
