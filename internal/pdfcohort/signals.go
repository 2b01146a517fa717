package pdfcohort

import (
	"fmt"
	"regexp"
	"strings"
)

// SignalMetadata describes where a clinical signal lives, shown back to
// the caller as feature/provenance bookkeeping.
type SignalMetadata struct {
	TargetTable string
	ItemID      string
}

// signalAliases folds free-text variable names onto the canonical signal
// keys the SQL templates below are keyed by.
var signalAliases = map[string]string{
	"temp":                    "body_temperature",
	"temperature":             "body_temperature",
	"body_temp":               "body_temperature",
	"bodytemperature":         "body_temperature",
	"bun_level":               "bun",
	"blood_urea_nitrogen":     "bun",
	"urea_nitrogen":           "bun",
	"serum_bun":               "bun",
	"cr":                      "creatinine",
	"creat":                   "creatinine",
	"serum_creatinine":        "creatinine",
	"po2":                     "pao2",
	"pa_o2":                   "pao2",
	"partial_pressure_o2":     "pao2",
	"blood_ph":                "ph",
	"arterial_ph":             "ph",
	"ph_value":                "ph",
	"anion_gap_level":         "anion_gap",
	"uop":                     "urine_output",
	"uo":                      "urine_output",
	"urine":                   "urine_output",
	"urine_out":               "urine_output",
	"urine_volume":            "urine_output",
	"sex":                     "gender",
	"hospital_length_of_stay": "hospital_los",
	"hosp_los":                "hospital_los",
	"icu_length_of_stay":      "icu_los",
	"icu_los_days":            "icu_los",
	"in_hospital_death":       "in_hospital_mortality",
	"hospital_expire_flag":    "in_hospital_mortality",
}

var signalNormalizeRE = regexp.MustCompile(`[^a-z0-9]+`)
var signalCollapseRE = regexp.MustCompile(`_+`)

// NormalizeSignalName folds a free-text variable name (as extracted from
// a PDF) to the canonical signal key used by the template map, applying
// signalAliases last.
func NormalizeSignalName(value string) string {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return ""
	}
	key := signalNormalizeRE.ReplaceAllString(raw, "_")
	key = signalCollapseRE.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")
	if alias, ok := signalAliases[key]; ok {
		return alias
	}
	return key
}

// defaultSignalTemplates is the hard-coded fallback signal -> SQL
// template map. Each template selects
// the identifier column(s) a downstream EXISTS join can key off of
// (subject_id/hadm_id/stay_id) plus, where relevant, a charttime column
// so window filters can apply.
var defaultSignalTemplates = map[string]string{
	"age":           "SELECT a.hadm_id FROM SSO.PATIENTS p JOIN SSO.ADMISSIONS a ON p.subject_id = a.subject_id WHERE p.anchor_age >= %[1]s AND p.anchor_age <= %[2]s",
	"gender":        "SELECT a.hadm_id FROM SSO.PATIENTS p JOIN SSO.ADMISSIONS a ON p.subject_id = a.subject_id WHERE p.gender = '%[1]s'",
	"diagnosis":     "SELECT HADM_ID FROM SSO.DIAGNOSES_ICD WHERE trim(icd_code) IN (%[1]s)",
	"icu_stay":      "SELECT stay_id, hadm_id, intime as charttime FROM SSO.ICUSTAYS WHERE los >= %[1]s",
	"prescription":  "SELECT hadm_id, starttime as charttime FROM SSO.PRESCRIPTIONS WHERE lower(drug) LIKE '%%%[1]s%%'",
	"sofa":          "SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE (itemid IN (220052, 220181, 225312) AND valuenum < 65) OR (itemid IN (223900, 223901) AND valuenum < 15)",
	"rox":           "SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE (itemid IN (220277) AND valuenum < 90) OR (itemid IN (220210, 224690) AND valuenum > 25)",
	"oasis":         "SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE itemid IN (223900, 223901) AND valuenum < 13",
	"fio2":          "SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE itemid IN (223835) AND (CASE WHEN valuenum > 1 AND valuenum <= 100 THEN valuenum/100 WHEN valuenum > 0 AND valuenum <= 1 THEN valuenum ELSE NULL END) %[1]s %[2]s",
	"body_temperature": "SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE itemid IN (223761, 223762) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"bun":           "SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (51006) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"creatinine":    "SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (50912) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"pao2":          "SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (50821) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"ph":            "SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (50820) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"anion_gap":     "SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (50868) AND valuenum %[1]s %[2]s AND valuenum IS NOT NULL",
	"urine_output":  "SELECT stay_id, charttime FROM SSO.OUTPUTEVENTS WHERE itemid IN (226559, 226560, 226561, 226563, 226564, 226565, 226567, 226557, 226558, 226584, 227488) AND value %[1]s %[2]s",
}

var defaultSignalMetadata = map[string]SignalMetadata{
	"age":              {TargetTable: "PATIENTS", ItemID: "anchor_age"},
	"gender":           {TargetTable: "PATIENTS", ItemID: "gender"},
	"sofa":             {TargetTable: "DERIVED", ItemID: "sofa_score"},
	"rox":              {TargetTable: "DERIVED", ItemID: "rox_index"},
	"oasis":            {TargetTable: "DERIVED", ItemID: "oasis_score"},
	"body_temperature": {TargetTable: "CHARTEVENTS", ItemID: "223761,223762"},
	"bun":              {TargetTable: "LABEVENTS", ItemID: "51006"},
	"creatinine":       {TargetTable: "LABEVENTS", ItemID: "50912"},
	"pao2":             {TargetTable: "LABEVENTS", ItemID: "50821"},
	"ph":               {TargetTable: "LABEVENTS", ItemID: "50820"},
	"anion_gap":        {TargetTable: "LABEVENTS", ItemID: "50868"},
	"urine_output":     {TargetTable: "OUTPUTEVENTS", ItemID: "226559,226560,226561,226563,226564,226565,226567,226557,226558,226584,227488"},
	"hospital_los":     {TargetTable: "ADMISSIONS", ItemID: "dischtime-admittime"},
	"icu_los":          {TargetTable: "ICUSTAYS", ItemID: "los"},
	"in_hospital_mortality": {TargetTable: "ADMISSIONS", ItemID: "hospital_expire_flag"},
}

// windowTemplates maps a named time window to the WHERE-clause fragment
// it contributes to a step's EXISTS join.
var windowTemplates = map[string]string{
	"icu_first_24h":         "s.charttime BETWEEN p.intime AND p.intime + INTERVAL '24' HOUR",
	"admission_first_24h":   "s.charttime BETWEEN p.admittime AND p.admittime + INTERVAL '24' HOUR",
	"icu_discharge_last_24h": "s.charttime BETWEEN p.outtime - INTERVAL '24' HOUR AND p.outtime",
}

// SignalMap bundles the effective signal-name -> SQL template and
// signal-name -> metadata tables, seeded from the hard-coded defaults and
// optionally extended at construction time from RAG variable metadata
// (internal/metadata's loaders).
type SignalMap struct {
	Templates map[string]string
	Metadata  map[string]SignalMetadata
}

// NewSignalMap returns a SignalMap seeded with the hard-coded defaults.
func NewSignalMap() *SignalMap {
	templates := make(map[string]string, len(defaultSignalTemplates))
	for k, v := range defaultSignalTemplates {
		templates[k] = v
	}
	meta := make(map[string]SignalMetadata, len(defaultSignalMetadata))
	for k, v := range defaultSignalMetadata {
		meta[k] = v
	}
	return &SignalMap{Templates: templates, Metadata: meta}
}

// Extend folds in additional template/metadata entries discovered from
// RAG variable metadata (itemid + target table per signal), without
// overwriting an existing core signal.
func (m *SignalMap) Extend(name string, itemID, targetTable string) {
	name = NormalizeSignalName(name)
	if name == "" {
		return
	}
	var tmpl string
	switch strings.ToUpper(targetTable) {
	case "CHARTEVENTS":
		tmpl = fmt.Sprintf("SELECT stay_id, charttime FROM SSO.CHARTEVENTS WHERE itemid IN (%s) AND valuenum %%[1]s %%[2]s AND valuenum IS NOT NULL", itemID)
	case "LABEVENTS":
		tmpl = fmt.Sprintf("SELECT hadm_id, charttime FROM SSO.LABEVENTS WHERE itemid IN (%s) AND valuenum %%[1]s %%[2]s AND valuenum IS NOT NULL", itemID)
	default:
		return
	}
	if _, exists := m.Templates[name]; !exists {
		m.Templates[name] = tmpl
	}
	if _, exists := m.Metadata[name]; !exists {
		m.Metadata[name] = SignalMetadata{TargetTable: strings.ToUpper(targetTable), ItemID: itemID}
	}
}
