// Package ratelimit holds one continuously-refilled token bucket per API
// key. Buckets live in a map of independent cells so that requests for
// different keys never contend beyond the map lookup; mutation of a single
// bucket is serialized inside its rate.Limiter, so two concurrent requests
// for the same key can never both consume the last token.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// cell pairs a token bucket with the configuration it was built from, so a
// changed per-key configuration replaces the bucket.
type cell struct {
	limiter *rate.Limiter
	perSec  float64
	burst   int
}

// Limiter is the per-key token bucket arena.
type Limiter struct {
	mu    sync.Mutex
	cells map[int64]*cell
}

// New returns an empty Limiter. Buckets are created on first use, full.
func New() *Limiter {
	return &Limiter{cells: make(map[int64]*cell)}
}

// Decision is the outcome of one TryConsume call. When Allowed is false,
// RetryAfter is the wait until a token becomes available; ResetAfter is
// always the time until the bucket refills completely.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

// TryConsume takes one token from the key's bucket if available. perSec and
// burst are the key's configured refill rate and capacity; a bucket whose
// configuration changed is rebuilt full.
func (l *Limiter) TryConsume(keyID int64, perSec float64, burst int) Decision {
	c := l.cell(keyID, perSec, burst)

	now := time.Now()
	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return Decision{Limit: burst, RetryAfter: time.Second}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		// Taking the token would mean waiting; put it back and refuse.
		res.CancelAt(now)
		return Decision{
			Limit:      burst,
			RetryAfter: delay,
			ResetAfter: refillTime(perSec, burst, c.limiter.TokensAt(now)),
		}
	}

	remaining := int(math.Floor(c.limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    true,
		Limit:      burst,
		Remaining:  remaining,
		ResetAfter: refillTime(perSec, burst, c.limiter.TokensAt(now)),
	}
}

// Forget drops the bucket for a deleted or rotated key.
func (l *Limiter) Forget(keyID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cells, keyID)
}

// cell returns the bucket for keyID, creating or rebuilding it as needed.
func (l *Limiter) cell(keyID int64, perSec float64, burst int) *cell {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.cells[keyID]
	if !ok || c.perSec != perSec || c.burst != burst {
		c = &cell{
			limiter: rate.NewLimiter(rate.Limit(perSec), burst),
			perSec:  perSec,
			burst:   burst,
		}
		l.cells[keyID] = c
	}
	return c
}

// refillTime estimates how long until the bucket is full again.
func refillTime(perSec float64, burst int, tokens float64) time.Duration {
	missing := float64(burst) - tokens
	if missing <= 0 || perSec <= 0 {
		return 0
	}
	return time.Duration(missing / perSec * float64(time.Second))
}

// RateLimitError builds the error carried back to the caller on refusal.
func (d Decision) RateLimitError() *types.RateLimitError {
	return &types.RateLimitError{Limit: d.Limit, RetryAfter: d.RetryAfter}
}
