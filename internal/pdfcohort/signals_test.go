package pdfcohort

import "testing"

func TestNormalizeSignalName_AppliesAliasAfterNormalizing(t *testing.T) {
	got := NormalizeSignalName("Body Temp")
	if got != "body_temperature" {
		t.Fatalf("NormalizeSignalName = %q, want body_temperature", got)
	}
}

func TestNormalizeSignalName_CollapsesPunctuationToUnderscore(t *testing.T) {
	got := NormalizeSignalName("Serum-Creatinine!!")
	if got != "creatinine" {
		t.Fatalf("NormalizeSignalName = %q, want creatinine", got)
	}
}

func TestNormalizeSignalName_EmptyInputIsEmptyOutput(t *testing.T) {
	if got := NormalizeSignalName("   "); got != "" {
		t.Fatalf("NormalizeSignalName(blank) = %q, want empty", got)
	}
}

func TestNormalizeSignalName_PassesThroughUnknownKeyUnchanged(t *testing.T) {
	got := NormalizeSignalName("Lactate Level")
	if got != "lactate_level" {
		t.Fatalf("NormalizeSignalName = %q, want lactate_level", got)
	}
}

func TestNewSignalMap_SeededWithDefaults(t *testing.T) {
	m := NewSignalMap()
	if _, ok := m.Templates["creatinine"]; !ok {
		t.Fatalf("expected the default creatinine template to be present")
	}
	if _, ok := m.Metadata["age"]; !ok {
		t.Fatalf("expected the default age metadata to be present")
	}
}

func TestSignalMap_Extend_AddsNewLabEventsSignal(t *testing.T) {
	m := NewSignalMap()
	m.Extend("lactate", "50813", "LABEVENTS")
	tmpl, ok := m.Templates["lactate"]
	if !ok {
		t.Fatalf("expected a new lactate template to be added")
	}
	if tmpl == "" {
		t.Fatalf("expected a non-empty template")
	}
	if m.Metadata["lactate"].ItemID != "50813" {
		t.Fatalf("unexpected metadata: %+v", m.Metadata["lactate"])
	}
}

func TestSignalMap_Extend_NeverOverwritesCoreSignal(t *testing.T) {
	m := NewSignalMap()
	original := m.Templates["creatinine"]
	m.Extend("creatinine", "99999", "LABEVENTS")
	if m.Templates["creatinine"] != original {
		t.Fatalf("expected Extend to never overwrite an existing core signal")
	}
}

func TestSignalMap_Extend_UnsupportedTargetTableIsIgnored(t *testing.T) {
	m := NewSignalMap()
	before := len(m.Templates)
	m.Extend("some_vital", "123", "PROCEDUREEVENTS")
	if len(m.Templates) != before {
		t.Fatalf("expected an unsupported target table to add nothing")
	}
}

func TestSignalMap_Extend_EmptyNameIsNoOp(t *testing.T) {
	m := NewSignalMap()
	before := len(m.Templates)
	m.Extend("   ", "123", "LABEVENTS")
	if len(m.Templates) != before {
		t.Fatalf("expected an empty signal name to add nothing")
	}
}
