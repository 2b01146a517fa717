package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_]+|[가-힣]+`)

// HashedEmbedder is a deterministic offline fallback: each token is hashed
// into a signed bucket of a fixed-width vector (the "hashing trick"), then
// the vector is L2-normalized. It needs no model weights and no network
// call, which makes it useful for tests and for reindexing catalogs that
// do not yet have a live embedding service configured.
type HashedEmbedder struct {
	dim int
}

// NewHashedEmbedder returns a HashedEmbedder producing dim-length vectors.
func NewHashedEmbedder(dim int) *HashedEmbedder {
	if dim <= 0 {
		dim = 128
	}
	return &HashedEmbedder{dim: dim}
}

func (h *HashedEmbedder) Dim() int { return h.dim }

func (h *HashedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, tok := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		bucket, sign := hashToken(tok, h.dim)
		vec[bucket] += sign
	}
	normalize(vec)
	return vec, nil
}

// hashToken maps tok to a bucket index and a +1/-1 sign derived from two
// independent FNV hashes, reducing collision bias versus a single hash.
func hashToken(tok string, dim int) (int, float32) {
	h1 := fnv.New32a()
	_, _ = h1.Write([]byte(tok))
	idx := int(h1.Sum32()) % dim
	if idx < 0 {
		idx += dim
	}

	h2 := fnv.New32()
	_, _ = h2.Write([]byte("sign:" + tok))
	if h2.Sum32()%2 == 0 {
		return idx, 1
	}
	return idx, -1
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
