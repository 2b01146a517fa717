package chart

import (
	"sort"
)

// Series is one rendered data series: parallel label/value slices plus
// an optional group name.
type Series struct {
	Group  string    `json:"group,omitempty"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Figure is the rendered (but not painted) output of codegen: everything
// a plotting frontend needs, without actually rendering pixels.
type Figure struct {
	ChartType ChartType `json:"chart_type"`
	Title     string    `json:"title,omitempty"`
	XLabel    string    `json:"x_label"`
	YLabel    string    `json:"y_label"`
	Series    []Series  `json:"series"`
	Horizontal bool     `json:"horizontal"`
	Rolled     bool     `json:"rolled_up"` // true if low-frequency categories were bucketed into "기타"
}

const (
	maxBarCategories   = 12
	longLabelThreshold = 14
	manyLabelThreshold = 10
	otherBucketLabel   = "기타"
)

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func toLabel(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat64(v); ok {
		return trimFloat(f)
	}
	return ""
}

// aggregate groups df rows by the spec.X column (spec.Group is not used)
// and reduces spec.Y with spec.Agg ("count" when Agg is empty).
func aggregate(df *DataFrame, spec Spec) map[string]float64 {
	out := map[string]float64{}
	agg := spec.Agg
	if agg == "" {
		agg = "count"
	}
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range df.Rows {
		key := toLabel(row[findColKey(df, spec.X)])
		if key == "" {
			continue
		}
		counts[key]++
		if spec.Y != "" {
			if f, ok := toFloat64(row[findColKey(df, spec.Y)]); ok {
				sums[key] += f
			}
		}
	}
	for k, c := range counts {
		switch agg {
		case "sum":
			out[k] = sums[k]
		case "avg", "mean":
			if c > 0 {
				out[k] = sums[k] / float64(c)
			}
		default:
			out[k] = float64(c)
		}
	}
	return out
}

func findColKey(df *DataFrame, name string) string {
	col, ok := df.findColumn(name)
	if !ok {
		return name
	}
	return col
}

// rollupOthers caps the number of bar/pie categories at maxBarCategories,
// summing (for sum/count aggregates) the remainder into an "기타" bucket,
// so a wide category axis stays readable.
func rollupOthers(values map[string]float64, agg string) (map[string]float64, bool) {
	if len(values) <= maxBarCategories {
		return values, false
	}
	type kv struct {
		k string
		v float64
	}
	entries := make([]kv, 0, len(values))
	for k, v := range values {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].v > entries[j].v })

	out := map[string]float64{}
	var otherSum float64
	for i, e := range entries {
		if i < maxBarCategories-1 {
			out[e.k] = e.v
			continue
		}
		otherSum += e.v
	}
	if agg == "sum" || agg == "count" || agg == "" {
		out[otherBucketLabel] = otherSum
	}
	return out, true
}

func anyLongOrMany(labels []string) bool {
	if len(labels) > manyLabelThreshold {
		return true
	}
	for _, l := range labels {
		if len(l) > longLabelThreshold {
			return true
		}
	}
	return false
}

// Render deterministically maps spec to a Figure by aggregating df,
// applying the category rollup cap and the horizontal-bar switch.
func Render(spec Spec, df *DataFrame) Figure {
	fig := Figure{ChartType: spec.ChartType, XLabel: spec.X, YLabel: spec.Y}

	switch spec.ChartType {
	case ChartBar, ChartBarStacked, ChartPie, ChartNestedPie:
		values := aggregate(df, spec)
		rolled, didRoll := rollupOthers(values, spec.Agg)
		fig.Rolled = didRoll

		labels := make([]string, 0, len(rolled))
		for k := range rolled {
			labels = append(labels, k)
		}
		sort.Slice(labels, func(i, j int) bool { return rolled[labels[i]] > rolled[labels[j]] })

		vals := make([]float64, len(labels))
		for i, l := range labels {
			vals[i] = rolled[l]
		}
		fig.Series = []Series{{Labels: labels, Values: vals}}
		if spec.ChartType == ChartBar || spec.ChartType == ChartBarStacked {
			fig.Horizontal = anyLongOrMany(labels)
			if fig.Horizontal {
				fig.ChartType = ChartBarHorizontal
			}
		}

	case ChartHist:
		var vals []float64
		col := findColKey(df, spec.X)
		for _, row := range df.Rows {
			if f, ok := toFloat64(row[col]); ok {
				vals = append(vals, f)
			}
		}
		fig.Series = []Series{{Values: vals}}

	case ChartScatter, ChartDynamicScatter:
		xCol, yCol := findColKey(df, spec.X), findColKey(df, spec.Y)
		var labels []string
		var vals []float64
		for _, row := range df.Rows {
			xf, xok := toFloat64(row[xCol])
			yf, yok := toFloat64(row[yCol])
			if xok && yok {
				labels = append(labels, trimFloat(xf))
				vals = append(vals, yf)
			}
		}
		fig.Series = []Series{{Labels: labels, Values: vals}}

	case ChartLine, ChartLineScatter, ChartBox:
		xCol, yCol := findColKey(df, spec.X), findColKey(df, spec.Y)
		if spec.Group != "" {
			groupCol := findColKey(df, spec.Group)
			byGroup := map[string]*Series{}
			var order []string
			for _, row := range df.Rows {
				g := toLabel(row[groupCol])
				if g == "" {
					continue
				}
				s, ok := byGroup[g]
				if !ok {
					s = &Series{Group: g}
					byGroup[g] = s
					order = append(order, g)
				}
				xf, xok := toFloat64(row[xCol])
				yf, yok := toFloat64(row[yCol])
				if xok && yok {
					s.Labels = append(s.Labels, trimFloat(xf))
					s.Values = append(s.Values, yf)
				}
			}
			sort.Strings(order)
			for _, g := range order {
				fig.Series = append(fig.Series, *byGroup[g])
			}
		} else {
			var labels []string
			var vals []float64
			for _, row := range df.Rows {
				xf, xok := toFloat64(row[xCol])
				yf, yok := toFloat64(row[yCol])
				if xok && yok {
					labels = append(labels, trimFloat(xf))
					vals = append(vals, yf)
				}
			}
			fig.Series = []Series{{Labels: labels, Values: vals}}
		}

	case ChartPyramid:
		values := aggregate(df, spec)
		labels := make([]string, 0, len(values))
		for k := range values {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		vals := make([]float64, len(labels))
		for i, l := range labels {
			vals[i] = values[l]
		}
		fig.Series = []Series{{Labels: labels, Values: vals}}

	default:
		values := aggregate(df, spec)
		labels := make([]string, 0, len(values))
		for k := range values {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		vals := make([]float64, len(labels))
		for i, l := range labels {
			vals[i] = values[l]
		}
		fig.Series = []Series{{Labels: labels, Values: vals}}
	}

	return fig
}
