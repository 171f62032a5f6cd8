// Package state provides SQLite-based snapshot persistence for loom.
// The scheduler checkpoints its queue as an opaque blob keyed by name so a
// restart can rehydrate queued work.
package state

import "io"

// Store defines the key-value blob persistence the scheduler depends on.
// Implementations must tolerate concurrent Save/Load calls.
type Store interface {
	io.Closer
	// Save writes the blob under key, replacing any previous value.
	Save(key string, blob []byte) error
	// Load returns the blob stored under key. ok is false when the key
	// has never been saved.
	Load(key string) (blob []byte, ok bool, err error)
	// Delete removes the blob stored under key, if any.
	Delete(key string) error
}

// Compile-time verification that both backends implement Store.
var (
	_ Store = (*DB)(nil)
	_ Store = (*Memory)(nil)
)
