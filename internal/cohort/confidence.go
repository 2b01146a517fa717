package cohort

import "math"

// MetricSnapshot is the rounded, caller-facing metric set computed from
// the metrics_sql row.
type MetricSnapshot struct {
	PatientCount       float64 `json:"patient_count"`
	ReadmissionRate    float64 `json:"readmission_rate"`
	MortalityRate      float64 `json:"mortality_rate"`
	AvgLOSDays         float64 `json:"avg_los_days"`
	MedianLOSDays      float64 `json:"median_los_days"`
	Readmission7dRate  float64 `json:"readmission_7d_rate"`
	LongStayRate       float64 `json:"long_stay_rate"`
	ICUAdmissionRate   float64 `json:"icu_admission_rate"`
	ERAdmissionRate    float64 `json:"er_admission_rate"`
}

// rawStats carries the unrounded counts the confidence payload needs
// (n_admissions and per-metric event counts), parsed from the same
// metrics_sql row as MetricSnapshot.
type rawStats struct {
	NAdmissions     float64
	Readmit30Cnt    float64
	DeathCnt        float64
	LOSStddevDays   float64
	ICUAdmissionCnt float64
	ERAdmissionCnt  float64
	Readmit7Cnt     float64
	LongStayCnt     float64
}

// ConfidenceMetric is one row of the confidence payload's metrics array.
type ConfidenceMetric struct {
	Metric         string    `json:"metric"`
	Label          string    `json:"label"`
	Unit           string    `json:"unit"`
	Current        float64   `json:"current"`
	Simulated      float64   `json:"simulated"`
	Difference     float64   `json:"difference"`
	CI             []float64 `json:"ci"`
	PValue         float64   `json:"p_value"`
	EffectSize     float64   `json:"effect_size"`
	EffectSizeType string    `json:"effect_size_type"`
	BootstrapCI    []float64 `json:"bootstrap_ci"`
	Significant    bool      `json:"significant"`
}

// ConfidencePayload is the full bootstrap/effect-size result set.
type ConfidencePayload struct {
	Method             string             `json:"method"`
	Alpha              float64            `json:"alpha"`
	BootstrapIterations int               `json:"bootstrap_iterations"`
	NCurrent           int                `json:"n_current"`
	NSimulated         int                `json:"n_simulated"`
	Metrics            []ConfidenceMetric `json:"metrics"`
}

// BuildConfidencePayload reproduces the Wald CI + p-value + effect size +
// bootstrap computation from the cohort engine's confidence builder.
func BuildConfidencePayload(
	currentMetrics MetricSnapshot, currentStats rawStats,
	simulatedMetrics MetricSnapshot, simulatedStats rawStats,
	baselineParams, simulatedParams Params,
) ConfidencePayload {
	rng := seededRNG(baselineParams, simulatedParams)
	n1 := math.Max(0, currentStats.NAdmissions)
	n2 := math.Max(0, simulatedStats.NAdmissions)

	buildProp := func(metricVal1, metricVal2 float64, metricKey, label string, count1, count2 float64) ConfidenceMetric {
		c1, c2 := math.Max(0, count1), math.Max(0, count2)
		var p1, p2 float64
		if n1 > 0 {
			p1 = c1 / n1
		}
		if n2 > 0 {
			p2 = c2 / n2
		}
		diff := (p2 - p1) * 100.0
		se := math.Sqrt(math.Max(0, (p1*(1-p1)/math.Max(1, n1))+(p2*(1-p2)/math.Max(1, n2))))
		ciLow := diff - zCritical*se*100.0
		ciHigh := diff + zCritical*se*100.0
		var pooled float64
		if n1+n2 > 0 {
			pooled = (c1 + c2) / (n1 + n2)
		}
		sePooled := math.Sqrt(math.Max(0, pooled*(1-pooled)*((1.0/math.Max(1, n1))+(1.0/math.Max(1, n2)))))
		var z float64
		if sePooled > 0 {
			z = (p2 - p1) / sePooled
		}
		pValue := twoSidedPFromZ(z)
		effect := cohenH(p1, p2)
		bootLow, bootHigh := bootstrapPropDiff(rng, c1, n1, c2, n2, bootstrapN)
		return ConfidenceMetric{
			Metric: metricKey, Label: label, Unit: "%",
			Current: roundN(metricVal1, 2), Simulated: roundN(metricVal2, 2), Difference: roundN(diff, 2),
			CI: []float64{roundN(ciLow, 2), roundN(ciHigh, 2)}, PValue: roundN(pValue, 6),
			EffectSize: roundN(effect, 4), EffectSizeType: "cohen_h",
			BootstrapCI: []float64{roundN(bootLow, 2), roundN(bootHigh, 2)},
			Significant: pValue < alpha,
		}
	}

	meanItem := func(mean1, mean2 float64, label string) ConfidenceMetric {
		sd1 := math.Max(0, currentStats.LOSStddevDays)
		sd2 := math.Max(0, simulatedStats.LOSStddevDays)
		diff := mean2 - mean1
		se := math.Sqrt(math.Max(0, (sd1*sd1/math.Max(1, n1))+(sd2*sd2/math.Max(1, n2))))
		ciLow := diff - zCritical*se
		ciHigh := diff + zCritical*se
		var z float64
		if se > 0 {
			z = diff / se
		}
		pValue := twoSidedPFromZ(z)
		effect := cohenD(mean1, mean2, sd1, sd2, n1, n2)
		bootLow, bootHigh := bootstrapMeanDiff(rng, mean1, sd1, n1, mean2, sd2, n2, bootstrapN)
		return ConfidenceMetric{
			Metric: "avg_los_days", Label: label, Unit: "days",
			Current: roundN(mean1, 2), Simulated: roundN(mean2, 2), Difference: roundN(diff, 2),
			CI: []float64{roundN(ciLow, 2), roundN(ciHigh, 2)}, PValue: roundN(pValue, 6),
			EffectSize: roundN(effect, 4), EffectSizeType: "cohen_d",
			BootstrapCI: []float64{roundN(bootLow, 2), roundN(bootHigh, 2)},
			Significant: pValue < alpha,
		}
	}

	metrics := []ConfidenceMetric{
		buildProp(currentMetrics.ReadmissionRate, simulatedMetrics.ReadmissionRate, "readmission_rate", "재입원율(30일)", currentStats.Readmit30Cnt, simulatedStats.Readmit30Cnt),
		buildProp(currentMetrics.Readmission7dRate, simulatedMetrics.Readmission7dRate, "readmission_7d_rate", "재입원율(7일)", currentStats.Readmit7Cnt, simulatedStats.Readmit7Cnt),
		buildProp(currentMetrics.MortalityRate, simulatedMetrics.MortalityRate, "mortality_rate", "사망률", currentStats.DeathCnt, simulatedStats.DeathCnt),
		buildProp(currentMetrics.LongStayRate, simulatedMetrics.LongStayRate, "long_stay_rate", "장기재원 비율(14일+)", currentStats.LongStayCnt, simulatedStats.LongStayCnt),
		buildProp(currentMetrics.ICUAdmissionRate, simulatedMetrics.ICUAdmissionRate, "icu_admission_rate", "ICU 입실 비율", currentStats.ICUAdmissionCnt, simulatedStats.ICUAdmissionCnt),
		buildProp(currentMetrics.ERAdmissionRate, simulatedMetrics.ERAdmissionRate, "er_admission_rate", "응급실 입원 비율", currentStats.ERAdmissionCnt, simulatedStats.ERAdmissionCnt),
		meanItem(currentMetrics.AvgLOSDays, simulatedMetrics.AvgLOSDays, "평균 재원일수"),
	}

	return ConfidencePayload{
		Method:              "Wald CI + normal approximation p-value + effect size + parametric bootstrap",
		Alpha:               alpha,
		BootstrapIterations: bootstrapN,
		NCurrent:            int(math.Round(n1)),
		NSimulated:          int(math.Round(n2)),
		Metrics:             metrics,
	}
}
