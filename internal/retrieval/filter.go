package retrieval

import "sort"

// FilterOptions carries the per-type thresholds one filter pass applies.
type FilterOptions struct {
	MaxItems          int
	MinAbsScore       float64
	RelativeRatio     float64 // 0 means "not set"
	Query             string
	MinLexicalOverlap float64
	AllowFallback     bool
}

// FilterHits thresholds hits by absolute score, a ratio of the top score,
// and (optionally) a minimum lexical overlap with query, falling back to
// the single best hit when nothing survives and AllowFallback is set.
func FilterHits(hits []Document, opts FilterOptions) []Document {
	if len(hits) == 0 || opts.MaxItems <= 0 {
		return nil
	}
	ranked := append([]Document(nil), hits...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	top := ranked[0].Score
	threshold := opts.MinAbsScore
	if opts.RelativeRatio > 0 && top > 0 {
		if r := top * opts.RelativeRatio; r > threshold {
			threshold = r
		}
	}
	var filtered []Document
	for _, h := range ranked {
		if h.Score >= threshold {
			filtered = append(filtered, h)
		}
	}
	if opts.Query != "" && opts.MinLexicalOverlap > 0 {
		var withOverlap []Document
		for _, h := range filtered {
			if LexicalOverlap(opts.Query, h.Text) >= opts.MinLexicalOverlap {
				withOverlap = append(withOverlap, h)
			}
		}
		filtered = withOverlap
	}
	if len(filtered) == 0 {
		if opts.AllowFallback && len(ranked) > 0 {
			filtered = ranked[:1]
		} else {
			return nil
		}
	}
	if len(filtered) > opts.MaxItems {
		filtered = filtered[:opts.MaxItems]
	}
	return filtered
}
