// Package embed provides the embedding-vector boundary: text in, a fixed
// dimensional float vector out. The remote embedding service itself is
// out of scope for this module; this package defines the interface plus
// a deterministic local fallback usable in tests and offline reindexing,
// and a thin HTTP client for wiring in a live service.
package embed

import "context"

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}
