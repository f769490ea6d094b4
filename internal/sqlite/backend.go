// Package sqlite implements the persistent store for the schemalog service
// on top of modernc.org/sqlite. It owns the three relations (schemas, logs,
// api_keys), enforces the uniqueness and referential-integrity invariants
// through SQL constraints, and exposes typed table accessors.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is RFC3339 UTC with fixed-width nanoseconds. The fixed width
// keeps lexicographic ordering of stored timestamps chronological, which the
// created_at range conditions rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Backend wraps the SQLite database and its table accessors. All mutations
// that must be atomic (log create, delete, schema cascade delete) run inside
// explicit transactions.
type Backend struct {
	db *sql.DB

	schemas *SchemasTable
	logs    *LogsTable
	apiKeys *APIKeysTable
}

// Open creates dataDir if needed, opens (or creates) the database file, and
// applies the embedded DDL. Foreign keys are enabled per connection via the
// DSN; WAL keeps readers unblocked during writes.
func Open(dataDir string) (*Backend, error) {
	if dataDir == "" {
		return nil, types.ErrDataDirEmpty
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := "file:" + filepath.Join(dataDir, "schemalog.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The driver serializes writes per database anyway; a single pooled
	// connection avoids SQLITE_BUSY between our own statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	b := &Backend{db: db}
	b.schemas = &SchemasTable{backend: b}
	b.logs = &LogsTable{backend: b}
	b.apiKeys = &APIKeysTable{backend: b}
	return b, nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Schemas returns the schemas table accessor.
func (b *Backend) Schemas() *SchemasTable { return b.schemas }

// Logs returns the logs table accessor.
func (b *Backend) Logs() *LogsTable { return b.logs }

// APIKeys returns the api_keys table accessor.
func (b *Backend) APIKeys() *APIKeysTable { return b.apiKeys }

// IsBusy reports whether err is a transient SQLITE_BUSY/locked condition,
// the only store failure class eligible for a bounded retry of reads.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// mapConstraintErr translates SQLite constraint failures into the package's
// standard errors: UNIQUE violations become ErrDuplicateKey, FOREIGN KEY
// violations mean the referenced schema is gone and become ErrNotFound.
func mapConstraintErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", types.ErrDuplicateKey, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: referenced schema does not exist", types.ErrNotFound)
	}
	return err
}

// fmtTime renders t for storage.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp back.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// fmtTimePtr and parseTimePtr handle nullable timestamp columns.
func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
