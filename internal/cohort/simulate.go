package cohort

import (
	"context"
	"fmt"
	"math"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/metadata"
)

// toFloat/toInt are tolerant coercion helpers for driver-typed cells: a
// bad or missing value becomes the zero value rather than an error.
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case nil:
		return 0
	default:
		return 0
	}
}

func toInt(v any) int { return int(math.Round(toFloat(v))) }

// Engine runs cohort SQL against an adapter.DBAdapter and assembles the
// snapshot/confidence/survival/subgroup payloads.
type Engine struct {
	DB          adapter.DBAdapter
	Comorbidity *metadata.ComorbidityStore
	DiagnosisMap *metadata.DiagnosisMapStore
}

func NewEngine(db adapter.DBAdapter, comorbidity *metadata.ComorbidityStore, diagMap *metadata.DiagnosisMapStore) *Engine {
	return &Engine{DB: db, Comorbidity: comorbidity, DiagnosisMap: diagMap}
}

func (e *Engine) bundle(p Params) SQLBundle {
	return BuildBundle(p, e.Comorbidity, e.DiagnosisMap)
}

func (e *Engine) metricsAndStats(ctx context.Context, p Params) (MetricSnapshot, rawStats, error) {
	sqls := e.bundle(p)
	res, err := e.DB.ExecuteQuery(ctx, sqls["metrics_sql"])
	if err != nil {
		return MetricSnapshot{}, rawStats{}, fmt.Errorf("cohort: metrics query: %w", err)
	}
	if len(res.Rows) == 0 {
		return MetricSnapshot{}, rawStats{}, nil
	}
	row := res.Rows[0]
	metrics := MetricSnapshot{
		PatientCount:      math.Round(math.Max(0, toFloat(row["PATIENT_CNT"]))),
		ReadmissionRate:   clampPct(toFloat(row["READMIT_RATE_PCT"])),
		MortalityRate:     clampPct(toFloat(row["MORTALITY_RATE_PCT"])),
		AvgLOSDays:        math.Max(0, roundN(toFloat(row["AVG_LOS_DAYS"]), 2)),
		MedianLOSDays:     math.Max(0, roundN(toFloat(row["MEDIAN_LOS_DAYS"]), 2)),
		Readmission7dRate: clampPct(toFloat(row["READMIT_7D_RATE_PCT"])),
		LongStayRate:      clampPct(toFloat(row["LONG_STAY_RATE_PCT"])),
		ICUAdmissionRate:  clampPct(toFloat(row["ICU_ADMISSION_RATE_PCT"])),
		ERAdmissionRate:   clampPct(toFloat(row["ER_ADMISSION_RATE_PCT"])),
	}
	stats := rawStats{
		NAdmissions:     math.Max(0, toFloat(row["ADMISSION_CNT"])),
		Readmit30Cnt:    math.Max(0, toFloat(row["READMIT_30_CNT"])),
		DeathCnt:        math.Max(0, toFloat(row["DEATH_CNT"])),
		LOSStddevDays:   math.Max(0, toFloat(row["LOS_STDDEV_DAYS"])),
		ICUAdmissionCnt: math.Max(0, toFloat(row["ICU_ADMISSION_CNT"])),
		ERAdmissionCnt:  math.Max(0, toFloat(row["ER_ADMISSION_CNT"])),
		Readmit7Cnt:     math.Max(0, toFloat(row["READMIT_7_CNT"])),
		LongStayCnt:     math.Max(0, toFloat(row["LONG_STAY_CNT"])),
	}
	return metrics, stats, nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return roundN(v, 2)
}

// SubgroupRow is one row of an age/gender/comorbidity subgroup query.
type SubgroupRow struct {
	Key             string  `json:"key"`
	Label           string  `json:"label"`
	AdmissionCount  int     `json:"admission_count"`
	PatientCount    int     `json:"patient_count"`
	ReadmissionRate float64 `json:"readmission_rate"`
	MortalityRate   float64 `json:"mortality_rate"`
	AvgLOSDays      float64 `json:"avg_los_days"`
}

func parseSubgroupRows(rows []map[string]any) []SubgroupRow {
	out := make([]SubgroupRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, SubgroupRow{
			Key:             fmt.Sprintf("%v", row["GROUP_KEY"]),
			Label:           fmt.Sprintf("%v", row["GROUP_LABEL"]),
			AdmissionCount:  toInt(row["ADMISSION_CNT"]),
			PatientCount:    toInt(row["PATIENT_CNT"]),
			ReadmissionRate: clampPct(toFloat(row["READMIT_RATE_PCT"])),
			MortalityRate:   clampPct(toFloat(row["MORTALITY_RATE_PCT"])),
			AvgLOSDays:      math.Max(0, roundN(toFloat(row["AVG_LOS_DAYS"]), 2)),
		})
	}
	return out
}

func (e *Engine) subgroups(ctx context.Context, p Params) (map[string][]SubgroupRow, error) {
	sqls := e.bundle(p)
	run := func(key string) ([]SubgroupRow, error) {
		res, err := e.DB.ExecuteQuery(ctx, sqls[key])
		if err != nil {
			return nil, err
		}
		return parseSubgroupRows(res.Rows), nil
	}
	out := map[string][]SubgroupRow{}
	for name, key := range map[string]string{"age": "age_subgroup_sql", "gender": "gender_subgroup_sql", "comorbidity": "comorbidity_subgroup_sql"} {
		rows, err := run(key)
		if err != nil {
			return nil, fmt.Errorf("cohort: %s subgroup query: %w", name, err)
		}
		out[name] = rows
	}
	return out, nil
}

func (e *Engine) lifeTable(ctx context.Context, p Params) ([]lifeTableRow, error) {
	sqls := e.bundle(p)
	res, err := e.DB.ExecuteQuery(ctx, sqls["life_table_sql"])
	if err != nil {
		return nil, fmt.Errorf("cohort: life table query: %w", err)
	}
	out := make([]lifeTableRow, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, lifeTableRow{
			Day:       toFloat(row["LOS_DAY"]),
			EventCnt:  math.Max(0, toFloat(row["EVENT_CNT"])),
			CensorCnt: math.Max(0, toFloat(row["CENSOR_CNT"])),
		})
	}
	return out, nil
}

// SubgroupComparison is the merged baseline-vs-simulated view per group
// key, across the age/gender/comorbidity dimensions.
type SubgroupComparison struct {
	Age         []SubgroupDelta `json:"age"`
	Gender      []SubgroupDelta `json:"gender"`
	Comorbidity []SubgroupDelta `json:"comorbidity"`
}

type SubgroupMetrics struct {
	AdmissionCount  int     `json:"admission_count"`
	PatientCount    int     `json:"patient_count"`
	ReadmissionRate float64 `json:"readmission_rate"`
	MortalityRate   float64 `json:"mortality_rate"`
	AvgLOSDays      float64 `json:"avg_los_days"`
}

type SubgroupDelta struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Current   SubgroupMetrics `json:"current"`
	Simulated SubgroupMetrics `json:"simulated"`
	Delta     SubgroupMetrics `json:"delta"`
}

func mergeSubgroupSection(current, simulated []SubgroupRow) []SubgroupDelta {
	currentByKey := map[string]SubgroupRow{}
	simulatedByKey := map[string]SubgroupRow{}
	var order []string
	for _, r := range current {
		currentByKey[r.Key] = r
		order = append(order, r.Key)
	}
	for _, r := range simulated {
		simulatedByKey[r.Key] = r
		if _, ok := currentByKey[r.Key]; !ok {
			found := false
			for _, k := range order {
				if k == r.Key {
					found = true
					break
				}
			}
			if !found {
				order = append(order, r.Key)
			}
		}
	}

	out := make([]SubgroupDelta, 0, len(order))
	for _, key := range order {
		c, cok := currentByKey[key]
		s, sok := simulatedByKey[key]
		label := key
		if cok && c.Label != "" {
			label = c.Label
		} else if sok && s.Label != "" {
			label = s.Label
		}
		cm := SubgroupMetrics{AdmissionCount: c.AdmissionCount, PatientCount: c.PatientCount, ReadmissionRate: c.ReadmissionRate, MortalityRate: c.MortalityRate, AvgLOSDays: c.AvgLOSDays}
		sm := SubgroupMetrics{AdmissionCount: s.AdmissionCount, PatientCount: s.PatientCount, ReadmissionRate: s.ReadmissionRate, MortalityRate: s.MortalityRate, AvgLOSDays: s.AvgLOSDays}
		delta := SubgroupMetrics{
			AdmissionCount:  sm.AdmissionCount - cm.AdmissionCount,
			PatientCount:    sm.PatientCount - cm.PatientCount,
			ReadmissionRate: roundN(sm.ReadmissionRate-cm.ReadmissionRate, 2),
			MortalityRate:   roundN(sm.MortalityRate-cm.MortalityRate, 2),
			AvgLOSDays:      roundN(sm.AvgLOSDays-cm.AvgLOSDays, 2),
		}
		out = append(out, SubgroupDelta{Key: key, Label: label, Current: cm, Simulated: sm, Delta: delta})
	}
	return out
}

func buildSubgroupComparison(current, simulated map[string][]SubgroupRow) SubgroupComparison {
	return SubgroupComparison{
		Age:         mergeSubgroupSection(current["age"], simulated["age"]),
		Gender:      mergeSubgroupSection(current["gender"], simulated["gender"]),
		Comorbidity: mergeSubgroupSection(current["comorbidity"], simulated["comorbidity"]),
	}
}

// SimulationResult is the full response of Simulate.
type SimulationResult struct {
	Params          Params              `json:"params"`
	BaselineParams  Params              `json:"baseline_params"`
	Current         MetricSnapshot      `json:"current"`
	Simulated       MetricSnapshot      `json:"simulated"`
	Survival        []SurvivalPoint     `json:"survival"`
	Confidence      ConfidencePayload   `json:"confidence"`
	Subgroups       SubgroupComparison  `json:"subgroups"`
}

// Simulate runs the full cohort comparison: baseline vs. simulated
// metrics, survival curves, confidence payload, and subgroup comparison.
// When includeBaseline is false, simulated params serve as their own
// baseline (current == simulated).
func (e *Engine) Simulate(ctx context.Context, simulatedParams Params, includeBaseline bool) (*SimulationResult, error) {
	simulatedParams = simulatedParams.Clamp()
	simulatedMetrics, simulatedStats, err := e.metricsAndStats(ctx, simulatedParams)
	if err != nil {
		return nil, err
	}
	simulatedSubgroups, err := e.subgroups(ctx, simulatedParams)
	if err != nil {
		return nil, err
	}

	baselineParams := simulatedParams
	currentMetrics := simulatedMetrics
	currentStats := simulatedStats
	currentSubgroups := simulatedSubgroups
	if includeBaseline {
		baselineParams = DefaultParams()
		currentMetrics, currentStats, err = e.metricsAndStats(ctx, baselineParams)
		if err != nil {
			return nil, err
		}
		currentSubgroups, err = e.subgroups(ctx, baselineParams)
		if err != nil {
			return nil, err
		}
	}

	currentTable, err := e.lifeTable(ctx, baselineParams)
	if err != nil {
		return nil, err
	}
	var simulatedTable []lifeTableRow
	if baselineParams.Clamp() == simulatedParams.Clamp() {
		simulatedTable = currentTable
	} else {
		simulatedTable, err = e.lifeTable(ctx, simulatedParams)
		if err != nil {
			return nil, err
		}
	}
	survival := BuildSurvivalPayload(baselineParams, simulatedParams, currentTable, simulatedTable)
	confidence := BuildConfidencePayload(currentMetrics, currentStats, simulatedMetrics, simulatedStats, baselineParams, simulatedParams)
	subgroups := buildSubgroupComparison(currentSubgroups, simulatedSubgroups)

	return &SimulationResult{
		Params:         simulatedParams,
		BaselineParams: baselineParams,
		Current:        currentMetrics,
		Simulated:      simulatedMetrics,
		Survival:       survival,
		Confidence:     confidence,
		Subgroups:      subgroups,
	}, nil
}
