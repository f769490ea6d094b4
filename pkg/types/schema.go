package types

import (
	"encoding/json"
	"time"
)

// Schema is a named, versioned JSON Schema draft-7 document governing what
// payloads a log entry may contain. (name, version) pairs are unique across
// all live schemas.
type Schema struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Definition  json.RawMessage `json:"schema_definition"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SchemaFilter narrows a schema listing. Empty fields match everything;
// non-empty fields are applied conjunctively.
type SchemaFilter struct {
	Name    string
	Version string
}

// VersionLatest is the reserved version string that resolves to the highest
// version registered under a name. Versions are compared as semantic
// versions when both sides parse as such, bytewise otherwise.
const VersionLatest = "latest"
