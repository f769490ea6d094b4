package service

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

func TestSchemasRegister(t *testing.T) {
	f := newFixture(t)

	schema, err := f.schemas.Register("events", "1.0.0", "test events", json.RawMessage(eventDefinition))
	require.NoError(t, err)
	assert.NotEmpty(t, schema.ID)
	assert.Equal(t, "events", schema.Name)
	assert.Equal(t, "1.0.0", schema.Version)
	assert.False(t, schema.CreatedAt.IsZero())

	got, err := f.schemas.Get(schema.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, got.ID)
	assert.JSONEq(t, eventDefinition, string(got.Definition))
}

func TestSchemasRegisterRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		schemaName string
		version    string
		definition string
		wantErr    error
	}{
		{"empty name", "", "1.0.0", eventDefinition, types.ErrInvalidArgument},
		{"blank name", "   ", "1.0.0", eventDefinition, types.ErrInvalidArgument},
		{"empty version", "events", "", eventDefinition, types.ErrInvalidArgument},
		{"definition not an object", "events", "1.0.0", `[1,2]`, nil},
		{"definition bad keyword", "events", "1.0.0", `{"type":"nonsense"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.schemas.Register(tt.schemaName, tt.version, "", json.RawMessage(tt.definition))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var defErr *types.DefinitionError
				assert.ErrorAs(t, err, &defErr)
			}
		})
	}
}

func TestSchemasRegisterDuplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.schemas.Register("events", "1.0.0", "", json.RawMessage(eventDefinition))
	require.NoError(t, err)

	_, err = f.schemas.Register("events", "1.0.0", "", json.RawMessage(eventDefinition))
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	// Same name, new version is fine.
	_, err = f.schemas.Register("events", "1.1.0", "", json.RawMessage(eventDefinition))
	assert.NoError(t, err)
}

func TestSchemasRegisterConcurrentSameVersion(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.schemas.Register("race", "1.0.0", "", json.RawMessage(eventDefinition))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, types.ErrDuplicateKey)
		}
	}
	assert.Equal(t, 1, won)
}

func TestSchemasResolve(t *testing.T) {
	f := newFixture(t)

	for _, v := range []string{"1.0.0", "1.10.0", "1.2.0"} {
		_, err := f.schemas.Register("events", v, "", json.RawMessage(eventDefinition))
		require.NoError(t, err)
	}

	got, err := f.schemas.Resolve("events", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got.Version)

	// Semver ordering, not lexicographic: 1.10.0 beats 1.2.0.
	for _, v := range []string{"", types.VersionLatest} {
		got, err = f.schemas.Resolve("events", v)
		require.NoError(t, err)
		assert.Equal(t, "1.10.0", got.Version)
	}

	_, err = f.schemas.Resolve("events", "9.9.9")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = f.schemas.Resolve("missing", "latest")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = f.schemas.Resolve("", "latest")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSchemasUpdate(t *testing.T) {
	f := newFixture(t)

	schema, err := f.schemas.Register("events", "1.0.0", "old", json.RawMessage(eventDefinition))
	require.NoError(t, err)

	updated, err := f.schemas.Update(schema.ID, "events", "1.0.0", "new", json.RawMessage(`{"type":"object"}`))
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Description)
	assert.True(t, updated.CreatedAt.Equal(schema.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(schema.UpdatedAt))

	_, err = f.schemas.Update("no-such-id", "x", "1.0.0", "", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.schemas.Update(schema.ID, "events", "1.0.0", "", json.RawMessage(`{"type":12}`))
	var defErr *types.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestSchemasDelete(t *testing.T) {
	f := newFixture(t)

	schema, err := f.schemas.Register("events", "1.0.0", "", json.RawMessage(eventDefinition))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.logs.Create(schema.ID, json.RawMessage(`{"x": 1}`))
		require.NoError(t, err)
	}

	// Referenced schema refuses a plain delete.
	_, err = f.schemas.Delete(schema.ID, false)
	assert.ErrorIs(t, err, types.ErrConflict)

	removed, err := f.schemas.Delete(schema.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	_, err = f.schemas.Get(schema.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.schemas.Delete(schema.ID, false)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
