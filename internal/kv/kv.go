package kv

import "context"

// Store is the contract over the external key-value store. It is the only
// shared mutable resource in the system; every cross-request invariant is
// enforced through it.
type Store interface {
	// Get returns the value for key and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value unconditionally.
	Set(ctx context.Context, key, value string) error

	// SetIfAbsent writes value only when key does not exist yet and reports
	// whether the write happened. Code claiming and redemption consumption
	// depend on this being atomic in the backend.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
}
