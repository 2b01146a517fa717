package retrieval

import (
	"math"
	"sort"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type tokenizedDoc struct {
	doc    Document
	tf     map[string]int
	length int
}

// BM25Rank ranks docs against query using Okapi BM25 (k1=1.2, b=0.75) over
// code-point tokens, returning the top k scored above zero.
func BM25Rank(query string, docs []Document, k int) []Document {
	if len(docs) == 0 || k <= 0 {
		return nil
	}
	queryTerms := TokenizeList(query)
	if len(queryTerms) == 0 {
		return nil
	}
	querySet := map[string]struct{}{}
	for _, t := range queryTerms {
		querySet[t] = struct{}{}
	}

	df := map[string]int{}
	totalLen := 0
	tokenized := make([]tokenizedDoc, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" || d.Text == "" {
			continue
		}
		toks := TokenizeList(d.Text)
		if len(toks) == 0 {
			continue
		}
		tf := map[string]int{}
		for _, t := range toks {
			tf[t]++
		}
		tokenized = append(tokenized, tokenizedDoc{doc: d, tf: tf, length: len(toks)})
		totalLen += len(toks)
		for t := range tf {
			df[t]++
		}
	}
	if len(tokenized) == 0 {
		return nil
	}

	nDocs := float64(len(tokenized))
	avgLen := float64(totalLen) / nDocs
	if avgLen <= 0 {
		avgLen = 1.0
	}

	type scored struct {
		score float64
		doc   Document
	}
	var ranked []scored
	for _, td := range tokenized {
		score := 0.0
		for term := range querySet {
			f := float64(td.tf[term])
			if f <= 0 {
				continue
			}
			nQ := float64(df[term])
			idf := math.Log(1.0 + ((nDocs-nQ+0.5)/(nQ+0.5)))
			denom := f + bm25K1*(1.0-bm25B+bm25B*(float64(td.length)/math.Max(avgLen, 1e-9)))
			if denom <= 0 {
				denom = 1e-9
			}
			score += idf * ((f * (bm25K1 + 1.0)) / denom)
		}
		if score > 0 {
			out := td.doc
			out.Score = score
			ranked = append(ranked, scored{score: score, doc: out})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if k > len(ranked) {
		k = len(ranked)
	}
	results := make([]Document, k)
	for i := 0; i < k; i++ {
		results[i] = ranked[i].doc
	}
	return results
}
