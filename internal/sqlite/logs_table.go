// Logs table accessor: validated-entry persistence and the compound
// filter/pagination query. Containment filters are evaluated with the JSON1
// json_extract function under the (schema_id, created_at, id) index, never
// by scanning other schemas' rows.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// LogsTable provides access to the logs relation.
type LogsTable struct {
	backend *Backend
}

const logColumns = "id, schema_id, data, created_at"

func scanLog(row interface{ Scan(...any) error }) (*types.LogEntry, error) {
	var (
		e         types.LogEntry
		data      string
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.SchemaID, &data, &createdAt); err != nil {
		return nil, err
	}
	e.Data = json.RawMessage(data)
	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &e, nil
}

// Insert writes a validated entry. The foreign key constraint rejects a
// schema id that no longer exists, which surfaces as ErrNotFound.
func (t *LogsTable) Insert(schemaID string, data json.RawMessage, now time.Time) (*types.LogEntry, error) {
	created := now.UTC()
	res, err := t.backend.db.Exec(
		"INSERT INTO logs (schema_id, data, created_at) VALUES (?, ?, ?)",
		schemaID, string(data), fmtTime(created),
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted log id: %w", err)
	}
	return &types.LogEntry{ID: id, SchemaID: schemaID, Data: data, CreatedAt: created}, nil
}

// Get retrieves an entry by identifier.
func (t *LogsTable) Get(id int64) (*types.LogEntry, error) {
	row := t.backend.db.QueryRow("SELECT "+logColumns+" FROM logs WHERE id = ?", id)
	e, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting log %d: %w", id, err)
	}
	return e, nil
}

// Delete removes an entry and returns its pre-delete state for event
// publication. The read and the delete share one transaction so two
// concurrent deleters cannot both observe the row.
func (t *LogsTable) Delete(id int64) (*types.LogEntry, error) {
	tx, err := t.backend.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow("SELECT "+logColumns+" FROM logs WHERE id = ?", id)
	e, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("log %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting log %d: %w", id, err)
	}

	if _, err := tx.Exec("DELETE FROM logs WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting log %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return e, nil
}

// CountBySchema returns the number of entries referencing a schema.
func (t *LogsTable) CountBySchema(schemaID string) (int64, error) {
	var n int64
	err := t.backend.db.QueryRow("SELECT COUNT(*) FROM logs WHERE schema_id = ?", schemaID).Scan(&n)
	return n, err
}

// Query applies the compound filter conjunctively and returns one page plus
// the total matching count. Entries come back ordered by creation time
// descending, ties broken by id descending, so pagination is deterministic.
// Page and Limit are assumed validated and clamped by the caller.
func (t *LogsTable) Query(schemaID string, q types.LogQuery) ([]types.LogEntry, int64, error) {
	where, args, err := buildLogConditions(schemaID, q)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := t.backend.db.QueryRow("SELECT COUNT(*) FROM logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting logs: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	pageArgs := append(append([]any{}, args...), q.Limit, offset)
	rows, err := t.backend.db.Query(
		"SELECT "+logColumns+" FROM logs"+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var entries []types.LogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning log: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// buildLogConditions assembles the WHERE clause shared by the page and count
// queries. Filter keys are sorted so the generated SQL is stable, and each
// key becomes a bound json_extract path rather than interpolated text.
func buildLogConditions(schemaID string, q types.LogQuery) (string, []any, error) {
	conds := []string{"schema_id = ?"}
	args := []any{schemaID}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.ContainsAny(k, `"`) {
			return "", nil, fmt.Errorf("%w: filter key %q", types.ErrInvalidArgument, k)
		}
		path := `$."` + k + `"`
		switch v := q.Filters[k].(type) {
		case nil:
			// Distinguish an explicit JSON null from an absent key.
			conds = append(conds, "json_type(data, ?) = 'null'")
			args = append(args, path)
		case bool:
			conds = append(conds, "json_extract(data, ?) = ?")
			if v {
				args = append(args, path, 1)
			} else {
				args = append(args, path, 0)
			}
		case string, float64, int, int64:
			conds = append(conds, "json_extract(data, ?) = ?")
			args = append(args, path, v)
		default:
			// Objects and arrays compare as canonical JSON text.
			enc, err := json.Marshal(v)
			if err != nil {
				return "", nil, fmt.Errorf("%w: filter value for %q", types.ErrInvalidArgument, k)
			}
			conds = append(conds, "json_extract(data, ?) = json_extract(?, '$')")
			args = append(args, path, string(enc))
		}
	}

	if q.DateBegin != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, fmtTime(*q.DateBegin))
	}
	if q.DateEnd != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, fmtTime(*q.DateEnd))
	}

	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
