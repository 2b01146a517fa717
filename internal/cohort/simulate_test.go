package cohort

import (
	"context"
	"strings"
	"testing"

	"reactsql-mimic/internal/adapter"
)

// fakeCohortAdapter answers cohort SQL bundle queries with canned rows,
// dispatching on distinctive substrings of the compiled SQL text rather
// than parsing it, and varies its metrics by which age threshold the
// query's cohort CTE was compiled with (65 = default, 80 = simulated).
type fakeCohortAdapter struct{}

func (f *fakeCohortAdapter) Connect(ctx context.Context) error { return nil }
func (f *fakeCohortAdapter) Close() error                      { return nil }
func (f *fakeCohortAdapter) GetDatabaseType() string           { return "oracle" }
func (f *fakeCohortAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return "19c", nil
}
func (f *fakeCohortAdapter) DryRunSQL(ctx context.Context, sql string) error { return nil }

func (f *fakeCohortAdapter) ExecuteQuery(ctx context.Context, query string) (*adapter.QueryResult, error) {
	switch {
	case strings.Contains(query, "READMIT_30_CNT"):
		row := map[string]any{
			"PATIENT_CNT": 1000.0, "READMIT_RATE_PCT": 20.0, "MORTALITY_RATE_PCT": 10.0,
			"AVG_LOS_DAYS": 5.5, "MEDIAN_LOS_DAYS": 4.0, "READMIT_7D_RATE_PCT": 8.0,
			"LONG_STAY_RATE_PCT": 15.0, "ICU_ADMISSION_RATE_PCT": 40.0, "ER_ADMISSION_RATE_PCT": 60.0,
			"ADMISSION_CNT": 1200.0, "READMIT_30_CNT": 240.0, "DEATH_CNT": 120.0,
			"LOS_STDDEV_DAYS": 4.2, "ICU_ADMISSION_CNT": 480.0, "ER_ADMISSION_CNT": 720.0,
			"READMIT_7_CNT": 96.0, "LONG_STAY_CNT": 180.0,
		}
		if strings.Contains(query, "ANCHOR_AGE >= 80") {
			row["PATIENT_CNT"] = 500.0
			row["MORTALITY_RATE_PCT"] = 25.0
		}
		return &adapter.QueryResult{Rows: []map[string]any{row}}, nil
	case strings.Contains(query, "LOS_DAY"):
		return &adapter.QueryResult{Rows: []map[string]any{
			{"LOS_DAY": 0.0, "EVENT_CNT": 0.0, "CENSOR_CNT": 0.0},
			{"LOS_DAY": 7.0, "EVENT_CNT": 5.0, "CENSOR_CNT": 2.0},
		}}, nil
	case strings.Contains(query, "dx_flags") || strings.Contains(query, "WHERE 1 = 0"):
		return &adapter.QueryResult{Rows: nil}, nil
	case strings.Contains(query, "GENDER = 'M' THEN 'M'"):
		return &adapter.QueryResult{Rows: []map[string]any{
			{"GROUP_KEY": "M", "GROUP_LABEL": "남성", "ADMISSION_CNT": 600.0, "PATIENT_CNT": 500.0, "READMIT_RATE_PCT": 18.0, "MORTALITY_RATE_PCT": 9.0, "AVG_LOS_DAYS": 5.0},
		}}, nil
	case strings.Contains(query, "ANCHOR_AGE < 40"):
		return &adapter.QueryResult{Rows: []map[string]any{
			{"GROUP_KEY": "18_39", "GROUP_LABEL": "18-39세", "ADMISSION_CNT": 100.0, "PATIENT_CNT": 90.0, "READMIT_RATE_PCT": 10.0, "MORTALITY_RATE_PCT": 2.0, "AVG_LOS_DAYS": 3.0},
		}}, nil
	default:
		return &adapter.QueryResult{Rows: nil}, nil
	}
}

func TestEngine_Simulate_WithoutBaselineMatchesSimulated(t *testing.T) {
	eng := NewEngine(&fakeCohortAdapter{}, nil, nil)
	simParams := DefaultParams()

	result, err := eng.Simulate(context.Background(), simParams, false)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.Current != result.Simulated {
		t.Fatalf("expected Current == Simulated when includeBaseline is false, got %+v vs %+v", result.Current, result.Simulated)
	}
	if result.BaselineParams != simParams.Clamp() {
		t.Fatalf("expected BaselineParams == simulated params when includeBaseline is false")
	}
	for _, m := range result.Confidence.Metrics {
		if m.Significant {
			t.Fatalf("expected no significant metrics when baseline == simulated, got %q", m.Metric)
		}
	}
	for _, p := range result.Survival {
		if p.Current != p.Simulated {
			t.Fatalf("expected identical survival curves when baseline == simulated")
		}
	}
}

func TestEngine_Simulate_WithBaselineDiffersWhenParamsDiffer(t *testing.T) {
	eng := NewEngine(&fakeCohortAdapter{}, nil, nil)
	simParams := DefaultParams()
	simParams.AgeThreshold = 80

	result, err := eng.Simulate(context.Background(), simParams, true)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if result.BaselineParams != DefaultParams() {
		t.Fatalf("expected BaselineParams to be the default params, got %+v", result.BaselineParams)
	}
	if result.Current.PatientCount == result.Simulated.PatientCount {
		t.Fatalf("expected baseline and simulated patient counts to diverge for different age thresholds")
	}
}

func TestEngine_Simulate_SubgroupsAreMerged(t *testing.T) {
	eng := NewEngine(&fakeCohortAdapter{}, nil, nil)
	result, err := eng.Simulate(context.Background(), DefaultParams(), false)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(result.Subgroups.Gender) == 0 {
		t.Fatalf("expected at least one gender subgroup row")
	}
	if len(result.Subgroups.Age) == 0 {
		t.Fatalf("expected at least one age subgroup row")
	}
	for _, g := range result.Subgroups.Gender {
		if g.Current != g.Simulated {
			t.Fatalf("expected identical current/simulated subgroup metrics when baseline == simulated, got %+v", g)
		}
	}
}
