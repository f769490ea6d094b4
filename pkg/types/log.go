package types

import (
	"encoding/json"
	"math"
	"time"
)

// LogEntry is one validated, immutable JSON document stored against a
// specific schema. The payload validated successfully against the referenced
// schema's definition at the moment of creation; later schema updates do not
// retroactively invalidate it.
type LogEntry struct {
	ID        int64           `json:"id"`
	SchemaID  string          `json:"schema_id"`
	Data      json.RawMessage `json:"log_data"`
	CreatedAt time.Time       `json:"created_at"`
}

// LogQuery describes a filtered, paginated lookup over one schema's log
// entries. Filters are matched as equality containment on top-level payload
// fields; date bounds are inclusive. Page and Limit are 1-based and must be
// positive.
type LogQuery struct {
	Filters   map[string]any
	DateBegin *time.Time
	DateEnd   *time.Time
	Page      int
	Limit     int
}

// TimeWindow echoes the creation-time bounds a query was resolved against.
// It is present in responses only when the caller supplied a bound.
type TimeWindow struct {
	DateBegin *time.Time `json:"date_begin"`
	DateEnd   *time.Time `json:"date_end"`
}

// Pagination is the page metadata accompanying every log query response.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// LogPage is one page of a filtered log query: the entries ordered by
// creation time descending (ties broken by id descending), the pagination
// metadata, and the resolved time window when one was requested.
type LogPage struct {
	Entries    []LogEntry
	Pagination Pagination
	TimeWindow *TimeWindow
}

// TotalPages computes ceil(total/limit) for positive limits.
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
