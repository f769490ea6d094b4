package types

import (
	"net/netip"
	"time"
)

// APIKey is a hashed credential gating the public surface. Only the SHA-256
// hash of the secret is stored; the plaintext is surfaced exactly once, at
// creation and at rotation.
type APIKey struct {
	ID          int64      `json:"id"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"key_prefix"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Active      bool       `json:"is_active"`

	// AllowedCIDRs restricts the addresses the key may be used from.
	// Empty means no restriction.
	AllowedCIDRs []string `json:"allowed_cidrs,omitempty"`

	UsageCount int64 `json:"usage_count"`

	// Token-bucket configuration: RatePerSec tokens per second refill,
	// Burst bucket capacity. Zero values fall back to the server defaults.
	RatePerSec float64 `json:"rate_limit_per_second"`
	Burst      int     `json:"rate_limit_burst"`
}

// Expired reports whether the key's expiration timestamp, if any, has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// AddrAllowed reports whether addr falls inside one of the key's allowed
// CIDR ranges. A key with no ranges accepts any address. Malformed ranges
// never match.
func (k *APIKey) AddrAllowed(addr netip.Addr) bool {
	if len(k.AllowedCIDRs) == 0 {
		return true
	}
	for _, cidr := range k.AllowedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// CreateAPIKey carries the caller-supplied attributes for a new API key.
type CreateAPIKey struct {
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	AllowedCIDRs []string   `json:"allowed_cidrs,omitempty"`
	RatePerSec   float64    `json:"rate_limit_per_second,omitempty"`
	Burst        int        `json:"rate_limit_burst,omitempty"`
}
