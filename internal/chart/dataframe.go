// Package chart implements the visualization planner: given a question's
// analytic intent and a tabular result set, infer one or more
// clinically-valid chart specifications and render them. Tabular data is
// a plain []map[string]any plus a column-kind summary — the rule engine
// only needs kind probes and cardinality, not a full dataframe library.
package chart

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnKind is the inferred storage/semantic kind of a DataFrame column.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindTime        ColumnKind = "time"
	KindIdentifier  ColumnKind = "identifier"
	KindCategorical ColumnKind = "categorical"
)

// DataFrame is the minimal tabular shape the planner and codegen need:
// ordered column names, an inferred kind per column, and the row data as
// plain maps (matching the adapter.QueryResult shape elsewhere in the
// module, so callers can hand a query result straight to the planner).
type DataFrame struct {
	Columns []string
	Kinds   map[string]ColumnKind
	Rows    []map[string]any
}

var identifierSuffixes = []string{"_id"}
var identifierNames = map[string]bool{
	"subject_id": true, "hadm_id": true, "stay_id": true, "row_id": true, "patient_id": true,
}
var timeNames = map[string]bool{
	"charttime": true, "intime": true, "outtime": true, "admittime": true, "dischtime": true,
	"deathtime": true, "starttime": true, "endtime": true, "storetime": true, "edregtime": true,
	"edouttime": true, "chartdate": true,
}

func inferKind(col string, values []any) ColumnKind {
	lower := strings.ToLower(col)
	if identifierNames[lower] {
		return KindIdentifier
	}
	for _, suf := range identifierSuffixes {
		if strings.HasSuffix(lower, suf) {
			return KindIdentifier
		}
	}
	if timeNames[lower] || strings.Contains(lower, "time") || strings.Contains(lower, "date") {
		return KindTime
	}
	numeric, total := 0, 0
	for _, v := range values {
		if v == nil {
			continue
		}
		total++
		switch v.(type) {
		case int, int32, int64, float32, float64:
			numeric++
		}
	}
	if total > 0 && numeric == total {
		return KindNumeric
	}
	return KindCategorical
}

// NewDataFrame builds a DataFrame from column names and row maps,
// inferring each column's kind from name hints and sampled value types.
func NewDataFrame(columns []string, rows []map[string]any) *DataFrame {
	kinds := make(map[string]ColumnKind, len(columns))
	for _, col := range columns {
		sample := make([]any, 0, len(rows))
		for i, row := range rows {
			if i >= 200 {
				break
			}
			sample = append(sample, row[col])
		}
		kinds[col] = inferKind(col, sample)
	}
	return &DataFrame{Columns: columns, Kinds: kinds, Rows: rows}
}

// HasColumn reports whether name (case-insensitive) is a column.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.findColumn(name)
	return ok
}

func (df *DataFrame) findColumn(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, c := range df.Columns {
		if strings.ToLower(c) == lower {
			return c, true
		}
	}
	return "", false
}

// Kind returns the inferred kind of column name, or "" if absent.
func (df *DataFrame) Kind(name string) ColumnKind {
	col, ok := df.findColumn(name)
	if !ok {
		return ""
	}
	return df.Kinds[col]
}

// Cardinality returns the number of distinct non-nil values in column
// name, or -1 if the column does not exist.
func (df *DataFrame) Cardinality(name string) int {
	col, ok := df.findColumn(name)
	if !ok {
		return -1
	}
	seen := map[string]bool{}
	for _, row := range df.Rows {
		v := row[col]
		if v == nil {
			continue
		}
		seen[toKey(v)] = true
	}
	return len(seen)
}

func toKey(v any) string {
	return fmt.Sprintf("%v", v)
}

// NumericColumns returns every column inferred as numeric, in original
// order, used by the statistical fallback when no chart plan survives.
func (df *DataFrame) NumericColumns() []string {
	var out []string
	for _, c := range df.Columns {
		if df.Kinds[c] == KindNumeric {
			out = append(out, c)
		}
	}
	return out
}

// CategoricalColumns returns non-identifier, non-time, non-numeric
// columns with cardinality at or below maxCard, sorted by ascending
// cardinality (the planner prefers the lowest-cardinality group_var).
func (df *DataFrame) CategoricalColumns(maxCard int) []string {
	type entry struct {
		name string
		card int
	}
	var entries []entry
	for _, c := range df.Columns {
		if df.Kinds[c] != KindCategorical {
			continue
		}
		card := df.Cardinality(c)
		if card > 0 && card <= maxCard {
			entries = append(entries, entry{c, card})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].card < entries[j].card })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
