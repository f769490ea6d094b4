// API keys table accessor. Only the SHA-256 hash of a secret is persisted;
// rotation swaps the hash in a single statement so the old credential stops
// working the instant the new one exists.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// APIKeysTable provides access to the api_keys relation.
type APIKeysTable struct {
	backend *Backend
}

const apiKeyColumns = "id, key_hash, key_prefix, name, description, created_at, expires_at, last_used_at, is_active, allowed_cidrs, usage_count, rate_per_sec, burst"

func scanAPIKey(row interface{ Scan(...any) error }) (*types.APIKey, error) {
	var (
		k           types.APIKey
		description sql.NullString
		createdAt   string
		expiresAt   sql.NullString
		lastUsedAt  sql.NullString
		cidrs       string
	)
	if err := row.Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &description, &createdAt,
		&expiresAt, &lastUsedAt, &k.Active, &cidrs, &k.UsageCount, &k.RatePerSec, &k.Burst); err != nil {
		return nil, err
	}
	k.Description = description.String

	var err error
	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if k.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if k.LastUsedAt, err = parseTimePtr(lastUsedAt); err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	if err := json.Unmarshal([]byte(cidrs), &k.AllowedCIDRs); err != nil {
		return nil, fmt.Errorf("parse allowed_cidrs: %w", err)
	}
	return &k, nil
}

// Insert persists a new key and assigns its identifier.
func (t *APIKeysTable) Insert(k *types.APIKey) error {
	cidrs, err := json.Marshal(k.AllowedCIDRs)
	if err != nil {
		return fmt.Errorf("encoding allowed_cidrs: %w", err)
	}
	if k.AllowedCIDRs == nil {
		cidrs = []byte("[]")
	}
	res, err := t.backend.db.Exec(
		`INSERT INTO api_keys (key_hash, key_prefix, name, description, created_at, expires_at,
			is_active, allowed_cidrs, usage_count, rate_per_sec, burst)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		k.KeyHash, k.KeyPrefix, k.Name, nullable(k.Description), fmtTime(k.CreatedAt),
		fmtTimePtr(k.ExpiresAt), k.Active, string(cidrs), k.RatePerSec, k.Burst,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	k.ID, err = res.LastInsertId()
	return err
}

// Get retrieves a key by identifier.
func (t *APIKeysTable) Get(id int64) (*types.APIKey, error) {
	row := t.backend.db.QueryRow("SELECT "+apiKeyColumns+" FROM api_keys WHERE id = ?", id)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api key %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting api key %d: %w", id, err)
	}
	return k, nil
}

// GetByHash retrieves a key by the hash of a presented secret.
func (t *APIKeysTable) GetByHash(hash string) (*types.APIKey, error) {
	row := t.backend.db.QueryRow("SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = ?", hash)
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting api key by hash: %w", err)
	}
	return k, nil
}

// List returns all keys, newest first.
func (t *APIKeysTable) List() ([]types.APIKey, error) {
	rows, err := t.backend.db.Query("SELECT " + apiKeyColumns + " FROM api_keys ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var out []types.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// TouchUsage bumps the usage counter and last-used timestamp after a
// successful authentication.
func (t *APIKeysTable) TouchUsage(id int64, now time.Time) error {
	_, err := t.backend.db.Exec(
		"UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?",
		fmtTime(now), id,
	)
	return err
}

// Rotate atomically replaces the hash and prefix, invalidating the previous
// secret while preserving all descriptive metadata.
func (t *APIKeysTable) Rotate(id int64, newHash, newPrefix string) (*types.APIKey, error) {
	res, err := t.backend.db.Exec(
		"UPDATE api_keys SET key_hash = ?, key_prefix = ? WHERE id = ?",
		newHash, newPrefix, id,
	)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("api key %d: %w", id, types.ErrNotFound)
	}
	return t.Get(id)
}

// Delete permanently removes a key; the credential stops working immediately.
func (t *APIKeysTable) Delete(id int64) error {
	res, err := t.backend.db.Exec("DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key %d: %w", id, types.ErrNotFound)
	}
	return nil
}
