package metadata

import (
	"encoding/json"
	"os"
	"strings"
)

// ComorbiditySpec is one named comorbidity group used by the cohort
// engine's subgroup comparison.
type ComorbiditySpec struct {
	GroupKey         string   `json:"group_key"`
	GroupLabel       string   `json:"group_label"`
	FlagCol          string   `json:"flag_col"`
	SortOrder        int      `json:"sort_order"`
	MapTerms         []string `json:"map_terms"`
	FallbackPrefixes []string `json:"fallback_prefixes"`
}

// hardCodedComorbidities mirrors the mapping file's shape so the cohort
// engine still has comorbidity groups to subgroup on when
// var/metadata/cohort_comorbidity_specs.json is absent, per the explicit
// "replicate both paths" instruction.
var hardCodedComorbidities = []ComorbiditySpec{
	{GroupKey: "diabetes", GroupLabel: "당뇨병", FlagCol: "DM_FLAG", SortOrder: 1, FallbackPrefixes: []string{"E08", "E09", "E10", "E11", "E13", "250"}},
	{GroupKey: "hypertension", GroupLabel: "고혈압", FlagCol: "HTN_FLAG", SortOrder: 2, FallbackPrefixes: []string{"I10", "I11", "I12", "I13", "I15", "401", "402", "403", "404", "405"}},
	{GroupKey: "chf", GroupLabel: "울혈성 심부전", FlagCol: "CHF_FLAG", SortOrder: 3, FallbackPrefixes: []string{"I50", "428"}},
	{GroupKey: "ckd", GroupLabel: "만성 신질환", FlagCol: "CKD_FLAG", SortOrder: 4, FallbackPrefixes: []string{"N18", "585"}},
	{GroupKey: "copd", GroupLabel: "만성 폐쇄성 폐질환", FlagCol: "COPD_FLAG", SortOrder: 5, FallbackPrefixes: []string{"J44", "491", "492", "496"}},
	{GroupKey: "sepsis", GroupLabel: "패혈증", FlagCol: "SEPSIS_FLAG", SortOrder: 6, FallbackPrefixes: []string{"A41", "995.9", "99591", "99592"}},
}

// ComorbidityStore loads the optional mapping file and otherwise serves
// hardCodedComorbidities, so cohort grouping works with or without the
// mapping file on disk.
type ComorbidityStore struct {
	specs []ComorbiditySpec
}

// NewComorbidityStore returns a store preloaded with the hard-coded
// fallback list so it is always usable even before Load is called.
func NewComorbidityStore() *ComorbidityStore {
	return &ComorbidityStore{specs: append([]ComorbiditySpec(nil), hardCodedComorbidities...)}
}

// Load replaces the fallback list with the on-disk mapping file's specs,
// if the file exists and parses. A missing or invalid file leaves the
// hard-coded fallback list in place.
func (c *ComorbidityStore) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var specs []ComorbiditySpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return err
	}
	valid := make([]ComorbiditySpec, 0, len(specs))
	for _, s := range specs {
		s.GroupKey = strings.TrimSpace(s.GroupKey)
		s.GroupLabel = strings.TrimSpace(s.GroupLabel)
		s.FlagCol = strings.TrimSpace(s.FlagCol)
		if s.GroupKey == "" || s.GroupLabel == "" || s.FlagCol == "" {
			continue
		}
		if s.SortOrder == 0 {
			s.SortOrder = len(valid) + 1
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil
	}
	c.specs = valid
	return nil
}

// Specs returns the active comorbidity spec list (mapping file or fallback).
func (c *ComorbidityStore) Specs() []ComorbiditySpec {
	out := make([]ComorbiditySpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// ResolvePrefixes returns, for spec, the ICD prefix list to match against:
// prefixes derived from MapTerms via a diagnosis map if available and
// non-empty, else FallbackPrefixes.
func ResolvePrefixes(spec ComorbiditySpec, mappedFromTerms []string) []string {
	if len(mappedFromTerms) > 0 {
		return mappedFromTerms
	}
	out := make([]string, 0, len(spec.FallbackPrefixes))
	for _, p := range spec.FallbackPrefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
