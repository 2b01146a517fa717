// Package cohort implements the cohort simulation engine: compiling
// CohortParams into a shared-CTE SQL bundle, running metric/subgroup
// queries through an adapter.DBAdapter, and computing bootstrap confidence
// intervals and life-table survival curves over the results.
package cohort

import (
	"os"
	"strconv"
	"strings"
)

// Params is the user-adjustable cohort definition, clamped to sane ranges.
type Params struct {
	ReadmitDays   int    `json:"readmit_days"`
	AgeThreshold  int    `json:"age_threshold"`
	LOSThreshold  int    `json:"los_threshold"`
	Gender        string `json:"gender"`
	ICUOnly       bool   `json:"icu_only"`
	EntryFilter   string `json:"entry_filter"`
	OutcomeFilter string `json:"outcome_filter"`
}

// DefaultParams is the baseline parameter set every simulation compares against.
func DefaultParams() Params {
	return Params{
		ReadmitDays:   30,
		AgeThreshold:  65,
		LOSThreshold:  7,
		Gender:        "all",
		EntryFilter:   "all",
		OutcomeFilter: "all",
	}
}

// Clamp enforces the same ranges pydantic's Field(ge=..., le=...) did, and
// normalizes the enum-like string fields to their declared value sets.
func (p Params) Clamp() Params {
	p.ReadmitDays = clampInt(p.ReadmitDays, 7, 90, 30)
	p.AgeThreshold = clampInt(p.AgeThreshold, 18, 95, 65)
	p.LOSThreshold = clampInt(p.LOSThreshold, 1, 30, 7)
	p.Gender = oneOf(p.Gender, []string{"all", "M", "F"}, "all")
	p.EntryFilter = oneOf(strings.ToLower(p.EntryFilter), []string{"all", "er", "non_er"}, "all")
	p.OutcomeFilter = oneOf(strings.ToLower(p.OutcomeFilter), []string{"all", "survived", "expired"}, "all")
	return p
}

func clampInt(v, lo, hi, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func oneOf(v string, allowed []string, fallback string) string {
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

// SampleRows is the row cap applied to the admissions_sample CTE,
// overridable by the COHORT_SAMPLE_ROWS environment variable.
func SampleRows() int {
	raw := strings.TrimSpace(os.Getenv("COHORT_SAMPLE_ROWS"))
	if raw == "" {
		return 50000
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 50000
	}
	return n
}

// SurvivalTimePoints are the fixed day cut-points the life-table KM curve
// is evaluated at.
var SurvivalTimePoints = []int{0, 7, 14, 21, 30, 45, 60, 75, 90, 120, 150, 180}
