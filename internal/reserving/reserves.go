package reserving

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/opensource-finance/heron/internal/triangle"
)

// AdequacyTests are the individual pass/fail checks.
type AdequacyTests struct {
	MethodologyConsistency bool `json:"methodology_consistency"`
	BenchmarkComparison    bool `json:"benchmark_comparison"`
	OverallAdequate        bool `json:"overall_adequate"`
}

// AdequacyResult reports how well the two methodologies agree.
type AdequacyResult struct {
	Error                    string        `json:"error,omitempty"`
	AdequacyRatio            float64       `json:"adequacy_ratio"`
	Status                   string        `json:"status"`
	MethodologyDifferencePct float64       `json:"methodology_difference_pct"`
	RecommendedReserves      float64       `json:"recommended_reserves"`
	ChainLadderReserves      float64       `json:"chain_ladder_reserves"`
	BFReserves               float64       `json:"bf_reserves"`
	IndustryBenchmark        float64       `json:"industry_benchmark"`
	AdequacyTests            AdequacyTests `json:"adequacy_tests"`
}

// ComparisonResult contrasts total IBNR between methodologies.
type ComparisonResult struct {
	Error                   string  `json:"error,omitempty"`
	ChainLadderIBNR         float64 `json:"chain_ladder_ibnr"`
	BornhuetterFergusonIBNR float64 `json:"bornhuetter_ferguson_ibnr"`
	Difference              float64 `json:"difference"`
	DifferencePercentage    float64 `json:"difference_percentage"`
	RecommendedReserve      float64 `json:"recommended_reserve"`
	Consistency             string  `json:"consistency"`
}

// Summary is the portfolio roll-up of the full reserving run.
type Summary struct {
	TotalIBNRChainLadder float64 `json:"total_ibnr_chain_ladder"`
	TotalIBNRBF          float64 `json:"total_ibnr_bf"`
	Confidence75Pct      float64 `json:"confidence_75_pct"`
	Confidence90Pct      float64 `json:"confidence_90_pct"`
	Confidence95Pct      float64 `json:"confidence_95_pct"`
	ReserveAdequacyRatio float64 `json:"reserve_adequacy_ratio"`
	RecommendedReserves  float64 `json:"recommended_reserves"`
}

// Result combines every reserving stage.
type Result struct {
	Error                 string             `json:"error,omitempty"`
	ChainLadder           *ChainLadderResult `json:"chain_ladder,omitempty"`
	BornhuetterFerguson   *BFResult          `json:"bornhuetter_ferguson,omitempty"`
	ConfidenceIntervals   *ConfidenceResult  `json:"confidence_intervals,omitempty"`
	ReserveAdequacy       *AdequacyResult    `json:"reserve_adequacy,omitempty"`
	MethodologyComparison *ComparisonResult  `json:"methodology_comparison,omitempty"`
	Summary               *Summary           `json:"summary,omitempty"`
}

// ReserveAdequacy compares the reserve levels both methods produce.
func ReserveAdequacy(cl *ChainLadderResult, bf *BFResult) *AdequacyResult {
	var clReserves, bfReserves float64
	if cl != nil && cl.Summary != nil {
		clReserves = cl.Summary.TotalIBNR
	}
	if bf != nil {
		bfReserves = bf.TotalIBNR
	}

	maxReserve := math.Max(math.Max(clReserves, bfReserves), 1)
	difference := math.Abs(clReserves-bfReserves) / maxReserve
	benchmark := math.Max(clReserves, bfReserves) * 0.1
	adequacyRatio := math.Min(clReserves, bfReserves) / maxReserve

	status := "Inadequate"
	if adequacyRatio > 0.8 {
		status = "Adequate"
	}

	return &AdequacyResult{
		AdequacyRatio:            adequacyRatio,
		Status:                   status,
		MethodologyDifferencePct: difference * 100,
		RecommendedReserves:      math.Max(clReserves, bfReserves),
		ChainLadderReserves:      clReserves,
		BFReserves:               bfReserves,
		IndustryBenchmark:        benchmark,
		AdequacyTests: AdequacyTests{
			MethodologyConsistency: difference < 0.2,
			BenchmarkComparison:    math.Max(clReserves, bfReserves) >= benchmark,
			OverallAdequate:        adequacyRatio > 0.8 && difference < 0.2,
		},
	}
}

// CompareMethodologies contrasts total IBNR from both methods.
func CompareMethodologies(cl *ChainLadderResult, bf *BFResult) *ComparisonResult {
	var clIBNR, bfIBNR float64
	if cl != nil && cl.Summary != nil {
		clIBNR = cl.Summary.TotalIBNR
	}
	if bf != nil {
		bfIBNR = bf.TotalIBNR
	}

	if clIBNR == 0 && bfIBNR == 0 {
		return &ComparisonResult{Error: "no reserves calculated by either method"}
	}

	difference := math.Abs(clIBNR - bfIBNR)
	avg := (clIBNR + bfIBNR) / 2
	var differencePct float64
	if avg > 0 {
		differencePct = difference / avg * 100
	}

	consistency := "Poor"
	if differencePct < 20 {
		consistency = "Good"
	}

	return &ComparisonResult{
		ChainLadderIBNR:         clIBNR,
		BornhuetterFergusonIBNR: bfIBNR,
		Difference:              difference,
		DifferencePercentage:    differencePct,
		RecommendedReserve:      math.Max(clIBNR, bfIBNR),
		Consistency:             consistency,
	}
}

// CalculateReserves runs the full reserving pipeline on built
// triangles. Stage failures degrade to error fields inside the stage
// results; the composite keeps going with zero reserves.
func CalculateReserves(triangles *triangle.Result, rng *rand.Rand) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Error: fmt.Sprintf("failed to calculate reserves: %v", r)}
		}
	}()

	cl := ChainLadder(triangles)
	bf := BornhuetterFerguson(triangles, cl)
	ci := ConfidenceIntervals(rng, DefaultSimulations)
	adequacy := ReserveAdequacy(cl, bf)
	comparison := CompareMethodologies(cl, bf)

	var clIBNR float64
	if cl.Summary != nil {
		clIBNR = cl.Summary.TotalIBNR
	}

	return &Result{
		ChainLadder:           cl,
		BornhuetterFerguson:   bf,
		ConfidenceIntervals:   ci,
		ReserveAdequacy:       adequacy,
		MethodologyComparison: comparison,
		Summary: &Summary{
			TotalIBNRChainLadder: clIBNR,
			TotalIBNRBF:          bf.TotalIBNR,
			Confidence75Pct:      ci.Percentile75,
			Confidence90Pct:      ci.Percentile90,
			Confidence95Pct:      ci.Percentile95,
			ReserveAdequacyRatio: adequacy.AdequacyRatio,
			RecommendedReserves:  math.Max(clIBNR, bf.TotalIBNR),
		},
	}
}
