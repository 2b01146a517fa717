// Package vectorindex implements the dense side of hybrid retrieval: a
// pluggable nearest-neighbor index over embedding vectors, with an
// in-process fallback and a Qdrant-REST-backed implementation modeled on
// the platform vector store pattern (deterministic point ids, score
// normalization, typed operation errors).
package vectorindex

import "context"

// Match is one nearest-neighbor hit.
type Match struct {
	ID    string
	Score float64 // normalized to [0, 1], 1.0 = identical
}

// Point is a vector plus its opaque payload, upserted by ID.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Index is the contract every backend (in-memory, Qdrant) implements.
type Index interface {
	// Upsert replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Query returns the topK nearest neighbors to vector.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// DeleteIDs removes points by ID. Deleting a missing ID is not an error.
	DeleteIDs(ctx context.Context, ids []string) error

	// Payload returns the stored payload for id, or ok=false if absent.
	Payload(ctx context.Context, id string) (map[string]any, bool, error)

	// Close releases backend resources.
	Close() error
}

// OperationError distinguishes transient (retryable) failures from
// permanent ones, mirroring the platform vector store's classification of
// HTTP call failures.
type OperationError struct {
	Op        string
	Err       error
	Permanent bool
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return "vectorindex: " + e.Op
	}
	return "vectorindex: " + e.Op + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }
