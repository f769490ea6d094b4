package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/hub"
	"github.com/mesh-intelligence/schemalog/internal/ratelimit"
	"github.com/mesh-intelligence/schemalog/internal/sqlite"
)

// fixture bundles one fully wired service stack over a throwaway store.
type fixture struct {
	store   *sqlite.Backend
	schemas *Schemas
	logs    *Logs
	keys    *APIKeys
	events  *hub.Hub
	limiter *ratelimit.Limiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	events := hub.New(16)
	t.Cleanup(events.Close)

	limiter := ratelimit.New()
	log := zap.NewNop()

	schemas := NewSchemas(store, log)
	return &fixture{
		store:   store,
		schemas: schemas,
		logs:    NewLogs(store, schemas, events, log, 10, 100),
		keys:    NewAPIKeys(store, limiter, log, 10, 20),
		events:  events,
		limiter: limiter,
	}
}

const eventDefinition = `{
	"type": "object",
	"required": ["x"],
	"properties": {
		"x": {"type": "number", "minimum": 0},
		"level": {"enum": ["debug", "info", "warn", "error"]}
	}
}`
