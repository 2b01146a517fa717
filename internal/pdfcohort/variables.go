package pdfcohort

import "sort"

// MappedVariable is an ExtractedVariable joined against the signal map's
// metadata. NormalizeSignalName already
// folds the common free-text spellings onto a canonical key via
// signalAliases, so a second fuzzy pass added little beyond what the
// alias table already covers).
type MappedVariable struct {
	SignalName  string
	Description string
	Mapping     SignalMetadata
}

// MapVariables joins extracted PDF variables against signals' metadata,
// defaulting unmapped ones to an "Unknown" target so the caller can still
// render a feature banner without special-casing missing entries.
func MapVariables(signals *SignalMap, vars []ExtractedVariable) []MappedVariable {
	out := make([]MappedVariable, 0, len(vars))
	for _, v := range vars {
		name := NormalizeSignalName(v.SignalName)
		if name == "" {
			continue
		}
		meta, ok := signals.Metadata[name]
		if !ok {
			meta = SignalMetadata{TargetTable: "Unknown", ItemID: "N/A"}
		}
		out = append(out, MappedVariable{SignalName: v.SignalName, Description: v.Description, Mapping: meta})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Mapping.TargetTable, out[j].Mapping.TargetTable
		if ti != tj {
			return ti < tj
		}
		return out[i].SignalName < out[j].SignalName
	})
	return out
}
