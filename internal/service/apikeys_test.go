package service

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

var anyAddr = netip.MustParseAddr("192.0.2.10")

func TestAPIKeysCreate(t *testing.T) {
	f := newFixture(t)

	key, secret, err := f.keys.Create(types.CreateAPIKey{Name: "ingest"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(secret, "sk_"))
	assert.Equal(t, secret[:10]+"...", key.KeyPrefix)
	assert.True(t, key.Active)
	assert.EqualValues(t, 10, key.RatePerSec)
	assert.Equal(t, 20, key.Burst)

	// The stored record never carries the plaintext or a recoverable form.
	got, err := f.keys.Get(key.ID)
	require.NoError(t, err)
	assert.NotEqual(t, secret, got.KeyHash)
	assert.Equal(t, HashSecret(secret), got.KeyHash)
}

func TestAPIKeysCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.keys.Create(types.CreateAPIKey{Name: "  "})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, _, err = f.keys.Create(types.CreateAPIKey{Name: "k", AllowedCIDRs: []string{"not-a-cidr"}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, _, err = f.keys.Create(types.CreateAPIKey{Name: "k", RatePerSec: -1})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestAPIKeysAuthenticate(t *testing.T) {
	f := newFixture(t)

	key, secret, err := f.keys.Create(types.CreateAPIKey{Name: "ingest"})
	require.NoError(t, err)

	got, decision, err := f.keys.Authenticate(secret, anyAddr)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
	require.NotNil(t, decision)
	assert.True(t, decision.Allowed)

	// Usage bookkeeping advanced.
	stored, err := f.keys.Get(key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.UsageCount)
	assert.NotNil(t, stored.LastUsedAt)

	_, _, err = f.keys.Authenticate("", anyAddr)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, _, err = f.keys.Authenticate("sk_bogus", anyAddr)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAPIKeysAuthenticateRestrictions(t *testing.T) {
	f := newFixture(t)

	expired := time.Now().UTC().Add(-time.Minute)
	tests := []struct {
		name string
		req  types.CreateAPIKey
		addr netip.Addr
	}{
		{"expired", types.CreateAPIKey{Name: "old", ExpiresAt: &expired}, anyAddr},
		{"wrong network", types.CreateAPIKey{Name: "internal", AllowedCIDRs: []string{"10.0.0.0/8"}}, anyAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, secret, err := f.keys.Create(tt.req)
			require.NoError(t, err)
			_, _, err = f.keys.Authenticate(secret, tt.addr)
			assert.ErrorIs(t, err, types.ErrForbidden)
		})
	}

	// Inside the allowed range the same key works.
	_, secret, err := f.keys.Create(types.CreateAPIKey{Name: "internal2", AllowedCIDRs: []string{"10.0.0.0/8"}})
	require.NoError(t, err)
	_, _, err = f.keys.Authenticate(secret, netip.MustParseAddr("10.1.2.3"))
	assert.NoError(t, err)
}

func TestAPIKeysAuthenticateRateLimited(t *testing.T) {
	f := newFixture(t)

	// A tiny bucket exhausts after its burst of back-to-back requests.
	_, secret, err := f.keys.Create(types.CreateAPIKey{Name: "tight", RatePerSec: 0.001, Burst: 2})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _, err = f.keys.Authenticate(secret, anyAddr)
		require.NoError(t, err)
	}

	_, decision, err := f.keys.Authenticate(secret, anyAddr)
	var rlErr *types.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	require.NotNil(t, decision)
	assert.False(t, decision.Allowed)
	assert.Positive(t, rlErr.RetryAfter)
}

func TestAPIKeysRotate(t *testing.T) {
	f := newFixture(t)

	key, oldSecret, err := f.keys.Create(types.CreateAPIKey{Name: "ingest", Description: "keep me"})
	require.NoError(t, err)
	_, _, err = f.keys.Authenticate(oldSecret, anyAddr)
	require.NoError(t, err)

	rotated, newSecret, err := f.keys.Rotate(key.ID)
	require.NoError(t, err)
	assert.NotEqual(t, oldSecret, newSecret)
	assert.Equal(t, "keep me", rotated.Description)
	assert.EqualValues(t, 1, rotated.UsageCount)

	// Old secret dies instantly, new one works.
	_, _, err = f.keys.Authenticate(oldSecret, anyAddr)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, _, err = f.keys.Authenticate(newSecret, anyAddr)
	assert.NoError(t, err)

	_, _, err = f.keys.Rotate(999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAPIKeysDelete(t *testing.T) {
	f := newFixture(t)

	key, secret, err := f.keys.Create(types.CreateAPIKey{Name: "ingest"})
	require.NoError(t, err)

	require.NoError(t, f.keys.Delete(key.ID))
	_, err = f.keys.Get(key.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, _, err = f.keys.Authenticate(secret, anyAddr)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.ErrorIs(t, f.keys.Delete(key.ID), types.ErrNotFound)
}

func TestAPIKeysList(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"a", "b", "c"} {
		_, _, err := f.keys.Create(types.CreateAPIKey{Name: name})
		require.NoError(t, err)
	}
	keys, err := f.keys.List()
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}
