package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/sqlite"
	"github.com/mesh-intelligence/schemalog/internal/validation"
	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// Schemas implements the schema registry operations.
type Schemas struct {
	store *sqlite.Backend
	log   *zap.Logger
}

// NewSchemas constructs the schema registry service.
func NewSchemas(store *sqlite.Backend, log *zap.Logger) *Schemas {
	return &Schemas{store: store, log: log.Named("schemas")}
}

// Register creates a new schema after structurally validating its
// definition. A live (name, version) collision fails with ErrDuplicateKey;
// the store's unique constraint decides the winner under concurrency.
func (s *Schemas) Register(name, version, description string, definition json.RawMessage) (*types.Schema, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("%w: schema name and version must be non-empty", types.ErrInvalidArgument)
	}
	if err := validation.CheckDefinition(definition); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	schema := &types.Schema{
		ID:          uuid.NewString(),
		Name:        name,
		Version:     version,
		Description: description,
		Definition:  definition,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Schemas().Insert(schema); err != nil {
		return nil, err
	}

	s.log.Info("schema registered",
		zap.String("schema_id", schema.ID),
		zap.String("name", name),
		zap.String("version", version),
	)
	return schema, nil
}

// Get retrieves a schema by identifier.
func (s *Schemas) Get(id string) (*types.Schema, error) {
	return withReadRetry(s.log, "schemas.get", func() (*types.Schema, error) {
		return s.store.Schemas().Get(id)
	})
}

// Resolve looks a schema up by name and version. An empty version or the
// literal "latest" resolves to the highest registered version.
func (s *Schemas) Resolve(name, version string) (*types.Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: schema name must be non-empty", types.ErrInvalidArgument)
	}
	return withReadRetry(s.log, "schemas.resolve", func() (*types.Schema, error) {
		if version == "" || version == types.VersionLatest {
			return s.store.Schemas().Latest(name)
		}
		return s.store.Schemas().GetByNameVersion(name, version)
	})
}

// List returns all schemas matching the filter.
func (s *Schemas) List(filter types.SchemaFilter) ([]types.Schema, error) {
	return withReadRetry(s.log, "schemas.list", func() ([]types.Schema, error) {
		return s.store.Schemas().List(filter)
	})
}

// Update replaces a schema's definition and descriptive fields in place,
// re-validating the definition and the (name, version) uniqueness. Entries
// already stored against the previous definition are not revisited.
func (s *Schemas) Update(id, name, version, description string, definition json.RawMessage) (*types.Schema, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("%w: schema name and version must be non-empty", types.ErrInvalidArgument)
	}
	if err := validation.CheckDefinition(definition); err != nil {
		return nil, err
	}

	existing, err := s.store.Schemas().Get(id)
	if err != nil {
		return nil, err
	}

	existing.Name = name
	existing.Version = version
	existing.Description = description
	existing.Definition = definition
	existing.UpdatedAt = time.Now().UTC()
	if err := s.store.Schemas().Update(existing); err != nil {
		return nil, err
	}

	s.log.Info("schema updated", zap.String("schema_id", id))
	return existing, nil
}

// Delete removes a schema. Without force it fails with ErrConflict while
// log entries reference it; with force the dependents go too, atomically.
// Returns the number of cascaded log deletions.
func (s *Schemas) Delete(id string, force bool) (int64, error) {
	removed, err := s.store.Schemas().Delete(id, force)
	if err != nil {
		return 0, err
	}
	s.log.Info("schema deleted",
		zap.String("schema_id", id),
		zap.Bool("force", force),
		zap.Int64("cascaded_logs", removed),
	)
	return removed, nil
}
