package reserving

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// DefaultSimulations is the bootstrap draw count.
const DefaultSimulations = 1000

// Bootstrap perturbation parameters. Draws perturb a fixed base
// reserve instead of resampling triangle residuals, so the band
// reflects the configured spread only.
const (
	bootstrapBase      = 1_000_000.0
	bootstrapSpreadLow = 0.8
	bootstrapSpreadHi  = 1.2
)

// ConfidenceResult summarizes the simulated reserve distribution.
type ConfidenceResult struct {
	Error           string  `json:"error,omitempty"`
	Percentile75    float64 `json:"percentile_75"`
	Percentile90    float64 `json:"percentile_90"`
	Percentile95    float64 `json:"percentile_95"`
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"std_dev"`
	SimulationCount int     `json:"simulation_count"`
}

// ConfidenceIntervals runs n bootstrap draws and reports percentiles at
// the int(n*p) order statistic, the mean, and the population standard
// deviation.
func ConfidenceIntervals(rng *rand.Rand, n int) *ConfidenceResult {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if n <= 0 {
		n = DefaultSimulations
	}
	draws := make([]float64, n)
	for i := range draws {
		variation := bootstrapSpreadLow + rng.Float64()*(bootstrapSpreadHi-bootstrapSpreadLow)
		draws[i] = bootstrapBase * variation
	}
	sort.Float64s(draws)

	var sum float64
	for _, d := range draws {
		sum += d
	}
	mean := sum / float64(n)

	var ss float64
	for _, d := range draws {
		diff := d - mean
		ss += diff * diff
	}

	return &ConfidenceResult{
		Percentile75:    draws[orderIndex(n, 0.75)],
		Percentile90:    draws[orderIndex(n, 0.90)],
		Percentile95:    draws[orderIndex(n, 0.95)],
		Mean:            mean,
		StdDev:          math.Sqrt(ss / float64(n)),
		SimulationCount: n,
	}
}

func orderIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
