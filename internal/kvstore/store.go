// Package kvstore provides the pluggable document store described in the
// design notes: a "state store" abstraction with two backends (a remote
// document store and a process-local JSON fallback), both exposing
// get/set/find_one. Process-wide mutable state (demo cache, QueryRecord
// map, cost state, saved cohorts, settings) is routed through a Store so
// callers do not need to know which backend is active.
package kvstore

import "context"

// Store is the minimal document-store contract every backend implements.
// Keys are opaque strings (the callers namespace them, e.g. "cohort::saved").
type Store interface {
	// Get unmarshals the value stored at key into out. Returns false if
	// the key does not exist.
	Get(ctx context.Context, key string, out any) (bool, error)

	// Set writes value at key, replacing whatever was there. Matches the
	// data model's "replaced by id on reindex; never partially updated"
	// invariant for RAG documents and mirrors it for generic state.
	Set(ctx context.Context, key string, value any) error

	// FindOne runs a predicate-free prefix scan over keys sharing prefix
	// and returns the first matching document by value equality check
	// performed by the caller via match; this keeps the interface
	// storage-agnostic (Mongo filters vs. JSON-file linear scan).
	FindOne(ctx context.Context, prefix string, match func(value map[string]any) bool) (map[string]any, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources (connections, file handles).
	Close() error
}
