// Schemas table accessor: CRUD over schema definitions, (name, version)
// uniqueness, "latest" resolution, and the cascading force delete.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// SchemasTable provides access to the schemas relation.
type SchemasTable struct {
	backend *Backend
}

const schemaColumns = "id, name, version, description, definition, created_at, updated_at"

// scanSchema hydrates one row into a types.Schema.
func scanSchema(row interface{ Scan(...any) error }) (*types.Schema, error) {
	var (
		s           types.Schema
		description sql.NullString
		definition  string
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Version, &description, &definition, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.Description = description.String
	s.Definition = json.RawMessage(definition)

	var err error
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &s, nil
}

// Insert persists a new schema. A (name, version) collision surfaces as
// ErrDuplicateKey via the UNIQUE constraint, so exactly one of two
// concurrent registrations for the same pair succeeds.
func (t *SchemasTable) Insert(s *types.Schema) error {
	_, err := t.backend.db.Exec(
		"INSERT INTO schemas ("+schemaColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.Name, s.Version, nullable(s.Description), string(s.Definition),
		fmtTime(s.CreatedAt), fmtTime(s.UpdatedAt),
	)
	return mapConstraintErr(err)
}

// Get retrieves a schema by identifier.
func (t *SchemasTable) Get(id string) (*types.Schema, error) {
	row := t.backend.db.QueryRow(
		"SELECT "+schemaColumns+" FROM schemas WHERE id = ?", id,
	)
	s, err := scanSchema(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting schema %s: %w", id, err)
	}
	return s, nil
}

// GetByNameVersion retrieves a schema by its (name, version) pair.
func (t *SchemasTable) GetByNameVersion(name, version string) (*types.Schema, error) {
	row := t.backend.db.QueryRow(
		"SELECT "+schemaColumns+" FROM schemas WHERE name = ? AND version = ?",
		name, version,
	)
	s, err := scanSchema(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s:%s: %w", name, version, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting schema %s:%s: %w", name, version, err)
	}
	return s, nil
}

// Latest resolves the highest version registered under name, using
// CompareVersions ordering. Version ordering cannot be expressed in SQL, so
// the candidates are fetched and reduced here; a schema name carries few
// versions in practice.
func (t *SchemasTable) Latest(name string) (*types.Schema, error) {
	rows, err := t.backend.db.Query(
		"SELECT "+schemaColumns+" FROM schemas WHERE name = ?", name,
	)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}
	defer rows.Close()

	var best *types.Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning version of %s: %w", name, err)
		}
		if best == nil || CompareVersions(s.Version, best.Version) > 0 {
			best = s
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, fmt.Errorf("schema %s:latest: %w", name, types.ErrNotFound)
	}
	return best, nil
}

// List returns all schemas matching the filter, newest first. Filter fields
// apply conjunctively; empty fields match everything.
func (t *SchemasTable) List(filter types.SchemaFilter) ([]types.Schema, error) {
	query := "SELECT " + schemaColumns + " FROM schemas"
	var (
		conds []string
		args  []any
	)
	if filter.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Version != "" {
		conds = append(conds, "version = ?")
		args = append(args, filter.Version)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := t.backend.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	defer rows.Close()

	var out []types.Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schema: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update replaces the mutable fields of a schema in place. The (name,
// version) pair is re-checked by the UNIQUE constraint.
func (t *SchemasTable) Update(s *types.Schema) error {
	res, err := t.backend.db.Exec(
		"UPDATE schemas SET name = ?, version = ?, description = ?, definition = ?, updated_at = ? WHERE id = ?",
		s.Name, s.Version, nullable(s.Description), string(s.Definition), fmtTime(s.UpdatedAt), s.ID,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schema %s: %w", s.ID, types.ErrNotFound)
	}
	return nil
}

// Delete removes a schema. With force false it fails with ErrConflict while
// dependent logs exist; with force true the dependents and the schema go in
// one transaction, so a concurrent reader sees either all of them or none.
// Returns the number of logs removed by the cascade.
func (t *SchemasTable) Delete(id string, force bool) (int64, error) {
	tx, err := t.backend.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	var logCount int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM logs WHERE schema_id = ?", id).Scan(&logCount); err != nil {
		return 0, fmt.Errorf("counting dependent logs: %w", err)
	}
	if logCount > 0 && !force {
		return 0, fmt.Errorf("%w: %d log(s) reference schema %s", types.ErrConflict, logCount, id)
	}

	var removed int64
	if logCount > 0 {
		res, err := tx.Exec("DELETE FROM logs WHERE schema_id = ?", id)
		if err != nil {
			return 0, fmt.Errorf("cascading log delete: %w", err)
		}
		removed, _ = res.RowsAffected()
	}

	res, err := tx.Exec("DELETE FROM schemas WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("deleting schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("schema %s: %w", id, types.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return removed, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
