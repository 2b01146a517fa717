package pdfcohort

import "testing"

func TestMapVariables_MapsKnownSignalToItsMetadata(t *testing.T) {
	signals := NewSignalMap()
	out := MapVariables(signals, []ExtractedVariable{{SignalName: "Creatinine", Description: "serum creatinine"}})
	if len(out) != 1 {
		t.Fatalf("expected one mapped variable, got %v", out)
	}
	if out[0].Mapping.TargetTable != "LABEVENTS" {
		t.Fatalf("expected creatinine to map to LABEVENTS, got %+v", out[0])
	}
}

func TestMapVariables_UnknownSignalDefaultsToUnknownTarget(t *testing.T) {
	signals := NewSignalMap()
	out := MapVariables(signals, []ExtractedVariable{{SignalName: "mystery_biomarker"}})
	if len(out) != 1 || out[0].Mapping.TargetTable != "Unknown" {
		t.Fatalf("expected an unmapped signal to default to Unknown, got %+v", out)
	}
}

func TestMapVariables_SkipsVariablesThatNormalizeEmpty(t *testing.T) {
	signals := NewSignalMap()
	out := MapVariables(signals, []ExtractedVariable{{SignalName: "   "}, {SignalName: "age"}})
	if len(out) != 1 || out[0].SignalName != "age" {
		t.Fatalf("expected the blank variable to be dropped, got %v", out)
	}
}

func TestMapVariables_SortedByTargetTableThenName(t *testing.T) {
	signals := NewSignalMap()
	out := MapVariables(signals, []ExtractedVariable{
		{SignalName: "creatinine"}, // LABEVENTS
		{SignalName: "age"},        // PATIENTS
		{SignalName: "bun"},        // LABEVENTS
	})
	for i := 1; i < len(out); i++ {
		prevTable, curTable := out[i-1].Mapping.TargetTable, out[i].Mapping.TargetTable
		if prevTable > curTable {
			t.Fatalf("expected output sorted by target table, got %v", out)
		}
		if prevTable == curTable && out[i-1].SignalName > out[i].SignalName {
			t.Fatalf("expected ties broken by signal name, got %v", out)
		}
	}
}
