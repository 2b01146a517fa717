package cohort

import "testing"

func sampleLifeTable() []lifeTableRow {
	return []lifeTableRow{
		{Day: 0, EventCnt: 0, CensorCnt: 0},
		{Day: 7, EventCnt: 5, CensorCnt: 2},
		{Day: 30, EventCnt: 10, CensorCnt: 3},
		{Day: 90, EventCnt: 8, CensorCnt: 5},
	}
}

func TestKMCurveFromLifeTable_MonotonicNonIncreasing(t *testing.T) {
	curve := kmCurveFromLifeTable(sampleLifeTable(), SurvivalTimePoints)
	for i := 1; i < len(curve); i++ {
		if curve[i] > curve[i-1]+1e-9 {
			t.Fatalf("survival curve increased at index %d: %v -> %v", i, curve[i-1], curve[i])
		}
	}
}

func TestKMCurveFromLifeTable_StartsAtFullSurvival(t *testing.T) {
	curve := kmCurveFromLifeTable(sampleLifeTable(), SurvivalTimePoints)
	if curve[0] != 100.0 {
		t.Fatalf("survival at day 0 = %v, want 100.0", curve[0])
	}
}

func TestKMCurveFromLifeTable_EmptyTableIsAllZero(t *testing.T) {
	curve := kmCurveFromLifeTable(nil, SurvivalTimePoints)
	for i, v := range curve {
		if v != 0 {
			t.Fatalf("curve[%d] = %v, want 0 for an empty life table", i, v)
		}
	}
}

// KM endpoint invariance: when baseline == simulated,
// every survival point satisfies current == simulated.
func TestBuildSurvivalPayload_IdenticalParamsAreBitIdentical(t *testing.T) {
	params := DefaultParams()
	table := sampleLifeTable()
	points := BuildSurvivalPayload(params, params, table, table)
	for _, p := range points {
		if p.Current != p.Simulated {
			t.Fatalf("at t=%v: current=%v simulated=%v, want equal", p.Time, p.Current, p.Simulated)
		}
	}
	// Scenario literal: params=DEFAULT -> survival[0].current == 100.0.
	if points[0].Current != 100.0 {
		t.Fatalf("survival[0].current = %v, want 100.0", points[0].Current)
	}
}

func TestBuildSurvivalPayload_DifferentParamsCanDiffer(t *testing.T) {
	baseline := DefaultParams()
	simulated := DefaultParams()
	simulated.AgeThreshold = 80

	currentTable := sampleLifeTable()
	simulatedTable := []lifeTableRow{
		{Day: 0, EventCnt: 0, CensorCnt: 0},
		{Day: 7, EventCnt: 20, CensorCnt: 2},
		{Day: 30, EventCnt: 25, CensorCnt: 3},
	}
	points := BuildSurvivalPayload(baseline, simulated, currentTable, simulatedTable)
	differs := false
	for _, p := range points {
		if p.Current != p.Simulated {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatalf("expected at least one divergent point for different life tables")
	}
}

func TestBuildSurvivalPayload_PointsMatchFixedCutpoints(t *testing.T) {
	table := sampleLifeTable()
	points := BuildSurvivalPayload(DefaultParams(), DefaultParams(), table, table)
	if len(points) != len(SurvivalTimePoints) {
		t.Fatalf("expected %d points, got %d", len(SurvivalTimePoints), len(points))
	}
	for i, day := range SurvivalTimePoints {
		if points[i].Time != float64(day) {
			t.Fatalf("points[%d].Time = %v, want %v", i, points[i].Time, day)
		}
	}
}
