// Package store defines the durable key-value store port used to mirror
// conversation history, plus its bbolt-backed and in-memory implementations.
//
// The store is shared with unrelated tenants of the same storage realm, so
// occupancy is accounted across every key it holds, not just this client's.
package store

import "errors"

// ErrQuotaExceeded is returned by Set when a write would exceed the store's
// externally imposed capacity.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// Store is a byte-oriented key-value store with finite capacity.
type Store interface {
	// Get returns the value for key, or (nil, nil) when the key is absent.
	Get(key string) ([]byte, error)

	// Set writes the value for key, returning ErrQuotaExceeded when the
	// write would not fit.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string) error

	// UsedBytes returns the current occupancy, summing len(key)+len(value)
	// over every key currently held.
	UsedBytes() (int64, error)
}
