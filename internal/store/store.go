// Package store defines the key/value cache the run loop persists its
// state in, plus an in-process implementation. Backends that survive a
// process restart live under modules/store.
package store

import (
	"context"
	"time"
)

// ServiceName is the AppContext service key store modules register under.
const ServiceName = "store"

// Store is a get/set cache with per-entry expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. A missing or expired entry
	// is reported as ok == false with a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous entry. A ttl of
	// zero or less never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Expiry converts a ttl relative to now into an absolute deadline.
// The zero Time means no expiry.
func Expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Expired reports whether an entry with the given deadline is gone at now.
func Expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}
