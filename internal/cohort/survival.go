package cohort

import "sort"

// lifeTableRow is one (day, event_count, censor_count) bucket from
// life_table_sql.
type lifeTableRow struct {
	Day        float64
	EventCnt   float64
	CensorCnt  float64
}

// SurvivalPoint is one {time, current, simulated} entry in the survival
// payload.
type SurvivalPoint struct {
	Time      float64 `json:"time"`
	Current   float64 `json:"current"`
	Simulated float64 `json:"simulated"`
}

// kmCurveFromLifeTable evaluates a life-table Kaplan-Meier approximation
// at each of timePoints, returning survival percentage (0..100).
func kmCurveFromLifeTable(table []lifeTableRow, timePoints []int) []float64 {
	sorted := append([]lifeTableRow(nil), table...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })

	var total float64
	for _, row := range sorted {
		total += row.EventCnt + row.CensorCnt
	}
	values := make([]float64, len(timePoints))
	if total <= 0 {
		return values
	}

	nRisk := total
	survival := 1.0
	idx := 0
	for i, t := range timePoints {
		for idx < len(sorted) && sorted[idx].Day <= float64(t) {
			row := sorted[idx]
			if nRisk > 0 && row.EventCnt > 0 {
				step := 1.0 - (row.EventCnt / nRisk)
				if step < 0 {
					step = 0
				}
				survival *= step
			}
			nRisk -= row.EventCnt + row.CensorCnt
			if nRisk < 0 {
				nRisk = 0
			}
			idx++
		}
		pct := survival * 100.0
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		values[i] = roundN(pct, 1)
	}
	return values
}

// BuildSurvivalPayload evaluates current/simulated life tables at the
// fixed SurvivalTimePoints cut-points. When baseline and simulated params
// are equal, both arrays are computed from the same table so they are
// bit-identical by construction.
func BuildSurvivalPayload(currentParams, simulatedParams Params, currentTable, simulatedTable []lifeTableRow) []SurvivalPoint {
	points := SurvivalTimePoints
	currentValues := kmCurveFromLifeTable(currentTable, points)

	var simulatedValues []float64
	if currentParams.Clamp() == simulatedParams.Clamp() {
		simulatedValues = append([]float64(nil), currentValues...)
	} else {
		simulatedValues = kmCurveFromLifeTable(simulatedTable, points)
	}

	out := make([]SurvivalPoint, len(points))
	for i, day := range points {
		out[i] = SurvivalPoint{Time: float64(day), Current: currentValues[i], Simulated: simulatedValues[i]}
	}
	return out
}
