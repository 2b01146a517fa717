// Package retrieval implements the hybrid (dense + BM25 + lexical) ranking
// that turns a question into a list of scored RAG documents.
package retrieval

import "sort"

// Document is one retrievable RAG unit: a schema table blurb, an example
// SQL pair, a template, a glossary entry, or a code-mapping hint.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Type     string         `json:"type"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// hitOrder pairs a merged document with a monotonically increasing
// first-seen counter, used as the stable tie-break when scores are equal.
type hitOrder struct {
	doc   Document
	order int
}

// MergeHits merges several ranked hit lists by id, keeping the
// higher-scoring copy of each id and breaking ties by first-seen order,
// then truncates to k.
func MergeHits(lists [][]Document, k int) []Document {
	combined := map[string]*hitOrder{}
	order := 0
	for _, hits := range lists {
		for _, item := range hits {
			id := item.ID
			if id == "" {
				id = syntheticID(order)
			}
			if existing, ok := combined[id]; ok {
				if item.Score > existing.doc.Score {
					combined[id] = &hitOrder{doc: item, order: existing.order}
				}
			} else {
				combined[id] = &hitOrder{doc: item, order: order}
			}
			order++
		}
	}
	ranked := make([]*hitOrder, 0, len(combined))
	for _, v := range combined {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].doc.Score != ranked[j].doc.Score {
			return ranked[i].doc.Score > ranked[j].doc.Score
		}
		return ranked[i].order < ranked[j].order
	})
	if k < 0 {
		k = 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Document, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].doc
	}
	return out
}

func syntheticID(order int) string {
	return "__idx__" + itoa(order)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// NormalizeScores divides every score by the maximum score in the set, so
// dense and lexical rankers (which live on unrelated scales) become
// comparable before the weighted merge.
func NormalizeScores(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return map[string]float64{}
	}
	max := 0.0
	for _, v := range raw {
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(raw))
	if max <= 0 {
		for k := range raw {
			out[k] = 0
		}
		return out
	}
	for k, v := range raw {
		out[k] = v / max
	}
	return out
}
