package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/ratelimit"
	"github.com/mesh-intelligence/schemalog/internal/sqlite"
	"github.com/mesh-intelligence/schemalog/pkg/types"
)

const (
	secretPrefix = "sk_"
	secretBytes  = 32
	prefixLen    = 10
)

// APIKeys implements credential management and request authentication.
type APIKeys struct {
	store   *sqlite.Backend
	limiter *ratelimit.Limiter
	log     *zap.Logger

	defaultPerSec float64
	defaultBurst  int
}

// NewAPIKeys constructs the credential service. defaultPerSec and
// defaultBurst apply to keys created without an explicit rate limit.
func NewAPIKeys(store *sqlite.Backend, limiter *ratelimit.Limiter, log *zap.Logger, defaultPerSec float64, defaultBurst int) *APIKeys {
	return &APIKeys{
		store:         store,
		limiter:       limiter,
		log:           log.Named("apikeys"),
		defaultPerSec: defaultPerSec,
		defaultBurst:  defaultBurst,
	}
}

// newSecret mints a fresh plaintext secret along with its stored hash and
// display prefix. The plaintext leaves this package exactly once per mint.
func newSecret() (plaintext, hash, prefix string, err error) {
	raw := make([]byte, secretBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("generating key secret: %w", err)
	}
	plaintext = secretPrefix + base64.RawURLEncoding.EncodeToString(raw)
	hash = HashSecret(plaintext)
	prefix = plaintext[:prefixLen] + "..."
	return plaintext, hash, prefix, nil
}

// HashSecret returns the hex-encoded SHA-256 digest under which a secret is
// stored and looked up.
func HashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Create mints a new API key. The returned plaintext secret is shown to the
// caller once and never recoverable afterwards.
func (a *APIKeys) Create(req types.CreateAPIKey) (*types.APIKey, string, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, "", fmt.Errorf("%w: key name must be non-empty", types.ErrInvalidArgument)
	}
	if req.RatePerSec < 0 || req.Burst < 0 {
		return nil, "", fmt.Errorf("%w: rate limit must be positive", types.ErrInvalidArgument)
	}
	for _, cidr := range req.AllowedCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return nil, "", fmt.Errorf("%w: invalid CIDR %q", types.ErrInvalidArgument, cidr)
		}
	}

	plaintext, hash, prefix, err := newSecret()
	if err != nil {
		return nil, "", err
	}

	key := &types.APIKey{
		KeyHash:      hash,
		KeyPrefix:    prefix,
		Name:         req.Name,
		Description:  req.Description,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    req.ExpiresAt,
		Active:       true,
		AllowedCIDRs: req.AllowedCIDRs,
		RatePerSec:   req.RatePerSec,
		Burst:        req.Burst,
	}
	if key.RatePerSec == 0 {
		key.RatePerSec = a.defaultPerSec
	}
	if key.Burst == 0 {
		key.Burst = a.defaultBurst
	}
	if err := a.store.APIKeys().Insert(key); err != nil {
		return nil, "", err
	}

	a.log.Info("api key created",
		zap.Int64("key_id", key.ID),
		zap.String("name", key.Name),
		zap.String("prefix", key.KeyPrefix),
	)
	return key, plaintext, nil
}

// Authenticate resolves a presented secret to its key, enforcing active
// status, expiry, address restrictions, and the key's token bucket. The
// distinct refusal reasons collapse into ErrForbidden so probing a key
// reveals nothing about why it was refused.
func (a *APIKeys) Authenticate(secret string, addr netip.Addr) (*types.APIKey, *ratelimit.Decision, error) {
	if secret == "" {
		return nil, nil, types.ErrUnauthorized
	}
	key, err := withReadRetry(a.log, "apikeys.lookup", func() (*types.APIKey, error) {
		return a.store.APIKeys().GetByHash(HashSecret(secret))
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil, types.ErrUnauthorized
		}
		return nil, nil, err
	}

	now := time.Now().UTC()
	if !key.Active || key.Expired(now) || !key.AddrAllowed(addr) {
		return nil, nil, types.ErrForbidden
	}

	decision := a.limiter.TryConsume(key.ID, key.RatePerSec, key.Burst)
	if !decision.Allowed {
		return key, &decision, decision.RateLimitError()
	}

	if err := a.store.APIKeys().TouchUsage(key.ID, now); err != nil {
		// Usage bookkeeping must not fail the request.
		a.log.Warn("recording key usage failed", zap.Int64("key_id", key.ID), zap.Error(err))
	}
	return key, &decision, nil
}

// Get retrieves one key's metadata. The hash is never included.
func (a *APIKeys) Get(id int64) (*types.APIKey, error) {
	return withReadRetry(a.log, "apikeys.get", func() (*types.APIKey, error) {
		return a.store.APIKeys().Get(id)
	})
}

// List returns all keys' metadata.
func (a *APIKeys) List() ([]types.APIKey, error) {
	return withReadRetry(a.log, "apikeys.list", func() ([]types.APIKey, error) {
		return a.store.APIKeys().List()
	})
}

// Rotate replaces a key's secret, invalidating the old one immediately. The
// key's metadata, restrictions, and usage history carry over; the new
// plaintext is returned once.
func (a *APIKeys) Rotate(id int64) (*types.APIKey, string, error) {
	plaintext, hash, prefix, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	key, err := a.store.APIKeys().Rotate(id, hash, prefix)
	if err != nil {
		return nil, "", err
	}
	a.limiter.Forget(id)

	a.log.Info("api key rotated", zap.Int64("key_id", id))
	return key, plaintext, nil
}

// Delete revokes a key permanently and drops its rate-limit bucket.
func (a *APIKeys) Delete(id int64) error {
	if err := a.store.APIKeys().Delete(id); err != nil {
		return err
	}
	a.limiter.Forget(id)

	a.log.Info("api key deleted", zap.Int64("key_id", id))
	return nil
}
