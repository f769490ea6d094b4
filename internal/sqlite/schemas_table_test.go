package sqlite

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

func TestSchemasInsertAndGet(t *testing.T) {
	b := openBackend(t)

	s := insertSchema(t, b, "events", "1.0.0")

	got, err := b.Schemas().Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "events", got.Name)
	assert.Equal(t, "1.0.0", got.Version)
	assert.JSONEq(t, `{"type":"object"}`, string(got.Definition))

	_, err = b.Schemas().Get(uuid.NewString())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSchemasDuplicateNameVersion(t *testing.T) {
	b := openBackend(t)

	insertSchema(t, b, "events", "1.0.0")

	now := time.Now().UTC()
	dup := &types.Schema{
		ID:         uuid.NewString(),
		Name:       "events",
		Version:    "1.0.0",
		Definition: json.RawMessage(`{"type":"object"}`),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := b.Schemas().Insert(dup)
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	// Same name under a different version is fine.
	insertSchema(t, b, "events", "1.1.0")
}

func TestSchemasConcurrentRegistration(t *testing.T) {
	b := openBackend(t)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			now := time.Now().UTC()
			errs[i] = b.Schemas().Insert(&types.Schema{
				ID:         uuid.NewString(),
				Name:       "raced",
				Version:    "1.0.0",
				Definition: json.RawMessage(`{"type":"object"}`),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, types.ErrDuplicateKey)
			dup++
		}
	}
	assert.Equal(t, 1, ok, "exactly one registration wins")
	assert.Equal(t, attempts-1, dup)
}

func TestSchemasLatestOrdering(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{
			name:     "semver does not misorder 10 before 2",
			versions: []string{"2.0.0", "10.0.0", "1.9.9"},
			want:     "10.0.0",
		},
		{
			name:     "prerelease sorts below release",
			versions: []string{"2.0.0-rc.1", "2.0.0", "1.0.0"},
			want:     "2.0.0",
		},
		{
			name:     "non-semver falls back to bytewise order",
			versions: []string{"alpha", "beta", "2024-01"},
			want:     "beta",
		},
		{
			name:     "single version",
			versions: []string{"0.1.0"},
			want:     "0.1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := openBackend(t)
			for _, v := range tt.versions {
				insertSchema(t, b, "ordered", v)
			}
			got, err := b.Schemas().Latest("ordered")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Version)
		})
	}
}

func TestSchemasLatestUnknownName(t *testing.T) {
	b := openBackend(t)
	_, err := b.Schemas().Latest("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSchemasList(t *testing.T) {
	b := openBackend(t)
	insertSchema(t, b, "events", "1.0.0")
	insertSchema(t, b, "events", "2.0.0")
	insertSchema(t, b, "metrics", "1.0.0")

	all, err := b.Schemas().List(types.SchemaFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byName, err := b.Schemas().List(types.SchemaFilter{Name: "events"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	both, err := b.Schemas().List(types.SchemaFilter{Name: "events", Version: "2.0.0"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "2.0.0", both[0].Version)

	none, err := b.Schemas().List(types.SchemaFilter{Name: "events", Version: "9.9.9"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchemasUpdate(t *testing.T) {
	b := openBackend(t)
	s := insertSchema(t, b, "events", "1.0.0")
	insertSchema(t, b, "events", "2.0.0")

	s.Description = "updated"
	s.Definition = json.RawMessage(`{"type":"object","required":["x"]}`)
	s.UpdatedAt = time.Now().UTC()
	require.NoError(t, b.Schemas().Update(s))

	got, err := b.Schemas().Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.JSONEq(t, `{"type":"object","required":["x"]}`, string(got.Definition))

	// Moving onto an occupied (name, version) pair is a duplicate.
	s.Version = "2.0.0"
	assert.ErrorIs(t, b.Schemas().Update(s), types.ErrDuplicateKey)

	// Unknown id.
	missing := *s
	missing.ID = uuid.NewString()
	missing.Version = "3.0.0"
	assert.ErrorIs(t, b.Schemas().Update(&missing), types.ErrNotFound)
}

func TestSchemasDeleteCascade(t *testing.T) {
	b := openBackend(t)
	s := insertSchema(t, b, "events", "1.0.0")

	for i := 0; i < 3; i++ {
		_, err := b.Logs().Insert(s.ID, json.RawMessage(`{"x":1}`), time.Now())
		require.NoError(t, err)
	}

	// Blocked without force.
	_, err := b.Schemas().Delete(s.ID, false)
	assert.ErrorIs(t, err, types.ErrConflict)

	// Force removes the schema and exactly its logs.
	removed, err := b.Schemas().Delete(s.ID, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	_, err = b.Schemas().Get(s.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	n, err := b.Logs().CountBySchema(s.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Deleting again reports the schema gone.
	_, err = b.Schemas().Delete(s.ID, true)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCompareVersions(t *testing.T) {
	assert.Positive(t, CompareVersions("10.0.0", "2.0.0"))
	assert.Negative(t, CompareVersions("2.0.0", "10.0.0"))
	assert.Zero(t, CompareVersions("1.2.3", "1.2.3"))
	assert.Negative(t, CompareVersions("1.0.0-alpha", "1.0.0"))
	// Mixed pairs fall back to bytewise ordering.
	assert.Positive(t, CompareVersions("beta", "10.0.0"))
	assert.Negative(t, CompareVersions("2024-01", "alpha"))
}
