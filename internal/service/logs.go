package service

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/hub"
	"github.com/mesh-intelligence/schemalog/internal/sqlite"
	"github.com/mesh-intelligence/schemalog/internal/validation"
	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// Logs implements ingestion and retrieval of validated log entries.
type Logs struct {
	store   *sqlite.Backend
	schemas *Schemas
	events  *hub.Hub
	log     *zap.Logger

	defaultLimit int
	maxLimit     int
}

// NewLogs constructs the log service. defaultLimit is applied when a query
// omits a page size; maxLimit caps it.
func NewLogs(store *sqlite.Backend, schemas *Schemas, events *hub.Hub, log *zap.Logger, defaultLimit, maxLimit int) *Logs {
	return &Logs{
		store:        store,
		schemas:      schemas,
		events:       events,
		log:          log.Named("logs"),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Create validates data against the schema identified by schemaID and, on
// success, persists it and publishes a created event. Validation failures
// surface as *types.ValidationError without touching storage.
func (l *Logs) Create(schemaID string, data json.RawMessage) (*types.LogEntry, error) {
	schema, err := l.schemas.Get(schemaID)
	if err != nil {
		return nil, err
	}
	return l.create(schema, data)
}

// CreateByName is Create with the schema addressed by name and version.
// Version "" or "latest" resolves to the highest registered version.
func (l *Logs) CreateByName(name, version string, data json.RawMessage) (*types.LogEntry, error) {
	schema, err := l.schemas.Resolve(name, version)
	if err != nil {
		return nil, err
	}
	return l.create(schema, data)
}

func (l *Logs) create(schema *types.Schema, data json.RawMessage) (*types.LogEntry, error) {
	violations, err := validation.Validate(schema.Definition, data)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &types.ValidationError{Violations: violations}
	}

	entry, err := l.store.Logs().Insert(schema.ID, data, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// Publish strictly after the row is durable so subscribers never see
	// an entry that a concurrent read could miss.
	l.events.Publish(types.CreatedEvent(*entry))

	l.log.Info("log entry created",
		zap.Int64("log_id", entry.ID),
		zap.String("schema_id", schema.ID),
	)
	return entry, nil
}

// Get retrieves a single log entry by identifier.
func (l *Logs) Get(id int64) (*types.LogEntry, error) {
	return withReadRetry(l.log, "logs.get", func() (*types.LogEntry, error) {
		return l.store.Logs().Get(id)
	})
}

// Delete removes a log entry and publishes a deleted event carrying the
// entry's final state.
func (l *Logs) Delete(id int64) error {
	entry, err := l.store.Logs().Delete(id)
	if err != nil {
		return err
	}

	l.events.Publish(types.DeletedEvent(entry.ID, entry.SchemaID))

	l.log.Info("log entry deleted",
		zap.Int64("log_id", id),
		zap.String("schema_id", entry.SchemaID),
	)
	return nil
}

// Query returns one page of entries for schemaID, newest first, filtered by
// exact top-level field matches and an optional inclusive time window. Page
// and limit are normalized: zero values take defaults, limit is clamped to
// the configured maximum, and negatives are rejected.
func (l *Logs) Query(schemaID string, q types.LogQuery) (*types.LogPage, error) {
	if _, err := l.schemas.Get(schemaID); err != nil {
		return nil, err
	}
	return l.query(schemaID, q)
}

// QueryByName is Query with the schema addressed by name and version.
func (l *Logs) QueryByName(name, version string, q types.LogQuery) (*types.LogPage, error) {
	schema, err := l.schemas.Resolve(name, version)
	if err != nil {
		return nil, err
	}
	return l.query(schema.ID, q)
}

func (l *Logs) query(schemaID string, q types.LogQuery) (*types.LogPage, error) {
	if q.Page < 0 || q.Limit < 0 {
		return nil, fmt.Errorf("%w: page and limit must be positive", types.ErrInvalidArgument)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = l.defaultLimit
	}
	if q.Limit > l.maxLimit {
		q.Limit = l.maxLimit
	}
	if q.DateBegin != nil && q.DateEnd != nil && q.DateEnd.Before(*q.DateBegin) {
		return nil, fmt.Errorf("%w: date_end precedes date_begin", types.ErrInvalidArgument)
	}

	type result struct {
		entries []types.LogEntry
		total   int64
	}
	res, err := withReadRetry(l.log, "logs.query", func() (result, error) {
		entries, total, err := l.store.Logs().Query(schemaID, q)
		return result{entries: entries, total: total}, err
	})
	if err != nil {
		return nil, err
	}

	page := &types.LogPage{
		Entries: res.entries,
		Pagination: types.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      res.total,
			TotalPages: types.TotalPages(res.total, q.Limit),
		},
	}
	if q.DateBegin != nil || q.DateEnd != nil {
		page.TimeWindow = &types.TimeWindow{DateBegin: q.DateBegin, DateEnd: q.DateEnd}
	}
	return page, nil
}
