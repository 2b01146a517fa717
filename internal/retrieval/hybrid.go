package retrieval

import (
	"context"
	"fmt"

	"reactsql-mimic/internal/embed"
	"reactsql-mimic/internal/vectorindex"
)

// LexicalCorpus supplies the full candidate document list for a given type,
// the BM25 side of the hybrid search needs the raw documents (not just
// vector hits) to build its inverted index over.
type LexicalCorpus interface {
	DocumentsByType(docType string) []Document
}

// Hybrid runs dense (vector index) + BM25 + lexical-overlap ranking and
// merges the three signals by weighted sum.
type Hybrid struct {
	Index      vectorindex.Index
	Embedder   embed.Embedder
	Corpus     LexicalCorpus
	Candidates int // candidate_k multiplier before the final top-k
}

func NewHybrid(index vectorindex.Index, embedder embed.Embedder, corpus LexicalCorpus) *Hybrid {
	return &Hybrid{Index: index, Embedder: embedder, Corpus: corpus, Candidates: 5}
}

// concept-tagged types get a flatter vector/bm25 weighting because their
// documents are short, highly structured hints where lexical match matters
// more than semantic proximity.
var conceptTaggedTypes = map[string]bool{
	"diagnosis_map": true, "procedure_map": true, "column_value": true, "label_intent": true,
}

func weightsFor(docType string) (wVec, wBM25, wOverlap float64) {
	if conceptTaggedTypes[docType] {
		return 0.45, 0.45, 0.10
	}
	return 0.60, 0.30, 0.10
}

// Search returns up to k documents of docType ranked by the hybrid score.
func (h *Hybrid) Search(ctx context.Context, query, docType string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	candidateK := k
	if h.Candidates > 1 && k*h.Candidates > candidateK {
		candidateK = k * h.Candidates
	}

	vecHits, err := h.denseSearch(ctx, query, docType, candidateK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: dense search: %w", err)
	}
	lexicalDocs := h.Corpus.DocumentsByType(docType)
	bm25Hits := BM25Rank(query, lexicalDocs, candidateK)

	vecByID := map[string]Document{}
	bm25ByID := map[string]Document{}
	for _, d := range vecHits {
		vecByID[d.ID] = d
	}
	for _, d := range bm25Hits {
		bm25ByID[d.ID] = d
	}
	if len(vecByID) == 0 && len(bm25ByID) == 0 {
		return nil, nil
	}

	vecRaw := map[string]float64{}
	for id, d := range vecByID {
		vecRaw[id] = d.Score
	}
	bm25Raw := map[string]float64{}
	for id, d := range bm25ByID {
		bm25Raw[id] = d.Score
	}
	vecScores := NormalizeScores(vecRaw)
	bm25Scores := NormalizeScores(bm25Raw)

	wVec, wBM25, wOverlap := weightsFor(docType)

	seen := map[string]bool{}
	var mergedIDs []string
	for id := range vecByID {
		if !seen[id] {
			seen[id] = true
			mergedIDs = append(mergedIDs, id)
		}
	}
	for id := range bm25ByID {
		if !seen[id] {
			seen[id] = true
			mergedIDs = append(mergedIDs, id)
		}
	}

	reranked := make([]Document, 0, len(mergedIDs))
	for _, id := range mergedIDs {
		base, ok := vecByID[id]
		if !ok {
			base = bm25ByID[id]
		}
		overlap := LexicalOverlap(query, base.Text)
		score := wVec*vecScores[id] + wBM25*bm25Scores[id] + wOverlap*overlap
		reranked = append(reranked, Document{ID: id, Text: base.Text, Type: docType, Metadata: base.Metadata, Score: score})
	}
	return MergeHits([][]Document{reranked}, k), nil
}

// denseSearch over-fetches (the index has no server-side type filter) and
// filters by payload type client-side, then truncates to k.
func (h *Hybrid) denseSearch(ctx context.Context, query, docType string, k int) ([]Document, error) {
	vec, err := h.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	overFetch := k * 4
	if overFetch < k {
		overFetch = k
	}
	matches, err := h.Index.Query(ctx, vec, overFetch)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, k)
	for _, m := range matches {
		if len(out) >= k {
			break
		}
		payload, ok, err := h.Index.Payload(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if t, _ := payload["type"].(string); t != docType {
			continue
		}
		text, _ := payload["text"].(string)
		out = append(out, Document{ID: m.ID, Text: text, Type: docType, Score: m.Score, Metadata: payload})
	}
	return out, nil
}
