// Package service orchestrates the request pipeline over the storage
// backend, validation engine, rate limiter, and event hub: credential check,
// rate limit, schema resolution, payload validation, persistence, and event
// publication, plus the symmetric read and delete paths.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/schemalog/internal/sqlite"
)

// readRetries bounds the local retry of idempotent reads on a transiently
// busy store. Writes are never retried; a blind create retry could duplicate
// an entry.
const readRetries = 3

// withReadRetry runs fn, retrying only on SQLITE_BUSY with a short growing
// pause. Any other error, including not-found, returns immediately.
func withReadRetry[T any](log *zap.Logger, op string, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 1; ; attempt++ {
		out, err = fn()
		if !sqlite.IsBusy(err) || attempt == readRetries {
			return out, err
		}
		log.Warn("store busy, retrying read",
			zap.String("op", op),
			zap.Int("attempt", attempt),
		)
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}
}
