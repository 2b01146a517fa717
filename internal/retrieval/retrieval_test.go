package retrieval

import (
	"testing"
)

func TestTokenizeList_MixedEnglishKorean(t *testing.T) {
	toks := TokenizeList("ICU 환자의 Mortality rate 추이")
	want := []string{"icu", "환자의", "mortality", "rate", "추이"}
	if len(toks) != len(want) {
		t.Fatalf("tokens = %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Fatalf("tokens[%d] = %q, want %q (full: %v)", i, toks[i], want[i], toks)
		}
	}
}

func TestLexicalOverlap(t *testing.T) {
	overlap := LexicalOverlap("mortality rate by gender", "the mortality rate varies by gender and age")
	if overlap != 1.0 {
		t.Fatalf("overlap = %v, want 1.0 (all query tokens present)", overlap)
	}
	overlap = LexicalOverlap("mortality rate", "completely unrelated document about parking")
	if overlap != 0 {
		t.Fatalf("overlap = %v, want 0", overlap)
	}
}

// Rerank sanity: a document whose terms appear only
// in it should rank first.
func TestBM25Rank_UniqueTermsRankFirst(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "admissions table stores hospital stay records"},
		{ID: "b", Text: "icustays table stores icu stay intervals and careunit"},
		{ID: "c", Text: "patients table stores demographic attributes like gender"},
	}
	ranked := BM25Rank("careunit icu stay intervals", docs, 3)
	if len(ranked) == 0 {
		t.Fatalf("expected at least one ranked doc")
	}
	if ranked[0].ID != "b" {
		t.Fatalf("expected doc b to rank first, got %q (full: %v)", ranked[0].ID, ranked)
	}
}

func TestBM25Rank_EmptyInputs(t *testing.T) {
	if got := BM25Rank("query", nil, 5); got != nil {
		t.Fatalf("expected nil for empty docs, got %v", got)
	}
	if got := BM25Rank("", []Document{{ID: "a", Text: "x"}}, 5); got != nil {
		t.Fatalf("expected nil for empty query, got %v", got)
	}
}

func TestMergeHits_KeepsHigherScoreAndBreaksTiesByOrder(t *testing.T) {
	list1 := []Document{{ID: "x", Score: 0.2}, {ID: "y", Score: 0.9}}
	list2 := []Document{{ID: "x", Score: 0.7}, {ID: "z", Score: 0.9}}
	merged := MergeHits([][]Document{list1, list2}, 10)
	byID := map[string]Document{}
	for _, d := range merged {
		byID[d.ID] = d
	}
	if byID["x"].Score != 0.7 {
		t.Fatalf("expected higher score 0.7 to win for id x, got %v", byID["x"].Score)
	}
	if merged[0].Score != 0.9 {
		t.Fatalf("expected top score 0.9 first, got %v", merged[0].Score)
	}
	// y was seen before z at the same score, so y must precede z.
	var yIdx, zIdx int
	for i, d := range merged {
		if d.ID == "y" {
			yIdx = i
		}
		if d.ID == "z" {
			zIdx = i
		}
	}
	if yIdx > zIdx {
		t.Fatalf("expected y before z on tied score (first-seen order), got merged=%v", merged)
	}
}

func TestMergeHits_TruncatesToK(t *testing.T) {
	list := []Document{{ID: "a", Score: 1}, {ID: "b", Score: 2}, {ID: "c", Score: 3}}
	merged := MergeHits([][]Document{list}, 2)
	if len(merged) != 2 {
		t.Fatalf("expected 2 results, got %d", len(merged))
	}
	if merged[0].ID != "c" || merged[1].ID != "b" {
		t.Fatalf("expected top-2 by score, got %v", merged)
	}
}

func TestNormalizeScores(t *testing.T) {
	out := NormalizeScores(map[string]float64{"a": 4, "b": 2, "c": 0})
	if out["a"] != 1.0 {
		t.Fatalf("expected max score normalized to 1.0, got %v", out["a"])
	}
	if out["b"] != 0.5 {
		t.Fatalf("expected 2/4 = 0.5, got %v", out["b"])
	}
	if out["c"] != 0 {
		t.Fatalf("expected 0, got %v", out["c"])
	}
}

func TestNormalizeScores_AllZero(t *testing.T) {
	out := NormalizeScores(map[string]float64{"a": 0, "b": 0})
	if out["a"] != 0 || out["b"] != 0 {
		t.Fatalf("expected all zero, got %v", out)
	}
}

func TestFilterHits_ThresholdsAndFallback(t *testing.T) {
	hits := []Document{
		{ID: "a", Text: "mortality rate trend", Score: 0.9},
		{ID: "b", Text: "unrelated glossary entry", Score: 0.1},
	}
	filtered := FilterHits(hits, FilterOptions{MaxItems: 5, MinAbsScore: 0.5, Query: "mortality rate", MinLexicalOverlap: 0.3})
	if len(filtered) != 1 || filtered[0].ID != "a" {
		t.Fatalf("expected only doc a to survive, got %v", filtered)
	}
}

func TestFilterHits_AllowFallbackWhenNothingSurvives(t *testing.T) {
	hits := []Document{{ID: "a", Text: "x", Score: 0.01}}
	filtered := FilterHits(hits, FilterOptions{MaxItems: 5, MinAbsScore: 0.9, AllowFallback: true})
	if len(filtered) != 1 || filtered[0].ID != "a" {
		t.Fatalf("expected fallback to the single best hit, got %v", filtered)
	}

	none := FilterHits(hits, FilterOptions{MaxItems: 5, MinAbsScore: 0.9, AllowFallback: false})
	if none != nil {
		t.Fatalf("expected nil without fallback, got %v", none)
	}
}

func TestFilterHits_MaxItemsCap(t *testing.T) {
	hits := []Document{
		{ID: "a", Score: 0.9}, {ID: "b", Score: 0.8}, {ID: "c", Score: 0.7},
	}
	filtered := FilterHits(hits, FilterOptions{MaxItems: 2, MinAbsScore: 0})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 results, got %d", len(filtered))
	}
}
