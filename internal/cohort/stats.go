package cohort

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
)

const (
	zCritical        = 1.959963984540054
	alpha            = 0.05
	bootstrapN       = 800
	bootstrapPctLow  = 0.025
	bootstrapPctHigh = 0.975
)

func normalCDF(v float64) float64 {
	return 0.5 * (1.0 + math.Erf(v/math.Sqrt2))
}

func twoSidedPFromZ(v float64) float64 {
	p := 2.0 * (1.0 - normalCDF(math.Abs(v)))
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if q <= 0 {
		return values[0]
	}
	if q >= 1 {
		return values[len(values)-1]
	}
	pos := float64(len(values)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return values[lo]
	}
	weight := pos - float64(lo)
	return values[lo]*(1-weight) + values[hi]*weight
}

func cohenH(p1, p2 float64) float64 {
	p1 = clamp01(p1)
	p2 = clamp01(p2)
	return 2.0 * (math.Asin(math.Sqrt(p2)) - math.Asin(math.Sqrt(p1)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func cohenD(mean1, mean2, sd1, sd2, n1, n2 float64) float64 {
	if n1 <= 1 || n2 <= 1 {
		return 0
	}
	pooledVar := (((n1 - 1) * sd1 * sd1) + ((n2 - 1) * sd2 * sd2)) / (n1 + n2 - 2)
	pooledSD := math.Sqrt(math.Max(0, pooledVar))
	if pooledSD <= 0 {
		return 0
	}
	return (mean2 - mean1) / pooledSD
}

// betaVariate draws from a Beta(alpha, beta) distribution via two Gamma
// draws, X/(X+Y), so runs with equal seeds are bit-identical.
func betaVariate(rng *rand.Rand, a, b float64) float64 {
	x := gammaVariate(rng, a)
	y := gammaVariate(rng, b)
	if x+y == 0 {
		return 0
	}
	return x / (x + y)
}

// gammaVariate implements Marsaglia & Tsang's method for shape >= 1, with
// a boost transform for shape < 1.
func gammaVariate(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		return gammaVariate(rng, shape+1) * math.Pow(u, 1.0/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*(x*x*x*x) {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}

func bootstrapPropDiff(rng *rand.Rand, success1, n1, success2, n2 float64, iterations int) (float64, float64) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 0
	}
	a1 := math.Max(1, success1+1)
	b1 := math.Max(1, (n1-success1)+1)
	a2 := math.Max(1, success2+1)
	b2 := math.Max(1, (n2-success2)+1)
	diffs := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		p1 := betaVariate(rng, a1, b1)
		p2 := betaVariate(rng, a2, b2)
		diffs[i] = (p2 - p1) * 100.0
	}
	sort.Float64s(diffs)
	return percentile(diffs, bootstrapPctLow), percentile(diffs, bootstrapPctHigh)
}

func bootstrapMeanDiff(rng *rand.Rand, mean1, sd1, n1, mean2, sd2, n2 float64, iterations int) (float64, float64) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 0
	}
	se1 := sd1 / math.Sqrt(math.Max(1, n1))
	se2 := sd2 / math.Sqrt(math.Max(1, n2))
	diffs := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		m1 := mean1 + se1*rng.NormFloat64()
		m2 := mean2 + se2*rng.NormFloat64()
		diffs[i] = m2 - m1
	}
	sort.Float64s(diffs)
	return percentile(diffs, bootstrapPctLow), percentile(diffs, bootstrapPctHigh)
}

// seededRNG derives a deterministic math/rand source from
// sha256(baselineJSON || "::" || simulatedJSON) so bootstrap runs are
// reproducible for identical inputs.
func seededRNG(baseline, simulated Params) *rand.Rand {
	baselineJSON, _ := json.Marshal(baseline.Clamp())
	simulatedJSON, _ := json.Marshal(simulated.Clamp())
	sum := sha256.Sum256(append(append(baselineJSON, []byte("::")...), simulatedJSON...))
	seedHex := hex.EncodeToString(sum[:])[:16]
	var seed uint64
	for _, c := range seedHex {
		seed = seed*16 + uint64(hexDigit(c))
	}
	return rand.New(rand.NewSource(int64(seed)))
}

func hexDigit(c rune) uint64 {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0')
	case c >= 'a' && c <= 'f':
		return uint64(c-'a') + 10
	default:
		return 0
	}
}

func roundN(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}
