package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// FallbackInsight is the statistical summary generated from numeric
// columns when no chart plan survives rule validation (planner failures
// "a statistical fallback insight is generated from numeric columns").
type FallbackInsight struct {
	Reason  string          `json:"reason"`
	Summary []ColumnSummary `json:"summary"`
}

// ColumnSummary is a single numeric column's descriptive statistics.
type ColumnSummary struct {
	Column string  `json:"column"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func summarizeColumn(df *DataFrame, col string) (ColumnSummary, bool) {
	key := findColKey(df, col)
	var vals []float64
	for _, row := range df.Rows {
		if f, ok := toFloat64(row[key]); ok {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return ColumnSummary{}, false
	}
	sum, min, max := 0.0, vals[0], vals[0]
	for _, v := range vals {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(vals))
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	if len(vals) > 1 {
		variance /= float64(len(vals) - 1)
	}
	return ColumnSummary{Column: col, N: len(vals), Mean: mean, StdDev: math.Sqrt(variance), Min: min, Max: max}, true
}

// BuildFallback generates a FallbackInsight from every numeric column of
// df, matching reason "normal: no_renderable_chart" when the planner
// produced zero surviving plans for a non-empty result.
func BuildFallback(df *DataFrame, reason string) FallbackInsight {
	cols := df.NumericColumns()
	sort.Strings(cols)
	insight := FallbackInsight{Reason: reason}
	for _, c := range cols {
		if s, ok := summarizeColumn(df, c); ok {
			insight.Summary = append(insight.Summary, s)
		}
	}
	return insight
}

// NarrativeSummary renders insight as a short human-readable string,
// used as the VisualizationResponse's "insight" field when no chart
// rendered.
func (f FallbackInsight) NarrativeSummary() string {
	if len(f.Summary) == 0 {
		return f.Reason
	}
	var parts []string
	for _, s := range f.Summary {
		parts = append(parts, fmt.Sprintf("%s: mean=%.2f, sd=%.2f, range=[%.2f, %.2f], n=%d",
			s.Column, s.Mean, s.StdDev, s.Min, s.Max, s.N))
	}
	return strings.Join(parts, "; ")
}
