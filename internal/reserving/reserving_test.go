package reserving

import (
	"math"
	"math/rand"
	"testing"

	"github.com/opensource-finance/heron/internal/triangle"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// triangleFixture builds a small incurred triangle directly:
//
//	        dev 1   dev 2
//	2021     1000     500
//	2022     2000       0
func triangleFixture() *triangle.Result {
	return &triangle.Result{
		IncurredTriangle: &triangle.Table{
			Structure: triangle.Structure,
			Data: map[int]map[int]float64{
				2021: {1: 1000, 2: 500},
				2022: {1: 2000, 2: 0},
			},
		},
	}
}

func TestChainLadderFactorsAndUltimates(t *testing.T) {
	res := ChainLadder(triangleFixture())
	if res.Error != "" {
		t.Fatalf("ChainLadder error: %s", res.Error)
	}

	// Cumulative rows: 2021 = [1000, 1500], 2022 = [2000, 2000].
	// Both rows have positive adjacent cells, so the volume-weighted
	// factor is (1500+2000)/(1000+2000) = 7/6.
	f, ok := res.DevelopmentFactors["1-2"]
	if !ok {
		t.Fatalf("missing factor 1-2, got %v", res.DevelopmentFactors)
	}
	if !almostEqual(f, 3500.0/3000.0) {
		t.Errorf("factor 1-2 = %v, want 7/6", f)
	}

	// Zero incremental cells keep the cumulative diagonal at the last
	// period, so both years are fully developed: tail 1.05 only.
	if got := res.UltimateValues["2021"]; !almostEqual(got, 1575) {
		t.Errorf("ultimate 2021 = %v, want 1575", got)
	}
	if got := res.IBNRValues["2021"]; !almostEqual(got, 75) {
		t.Errorf("ibnr 2021 = %v, want 75", got)
	}
	if got := res.UltimateValues["2022"]; !almostEqual(got, 2100) {
		t.Errorf("ultimate 2022 = %v, want 2100", got)
	}
	if got := res.IBNRValues["2022"]; !almostEqual(got, 100) {
		t.Errorf("ibnr 2022 = %v, want 100", got)
	}

	s := res.Summary
	if !almostEqual(s.TotalCurrent, 3500) {
		t.Errorf("total_current = %v, want 3500", s.TotalCurrent)
	}
	if !almostEqual(s.TotalUltimate, 3675) {
		t.Errorf("total_ultimate = %v, want 3675", s.TotalUltimate)
	}
	if !almostEqual(s.TotalIBNR, 175) {
		t.Errorf("total_ibnr = %v, want 175", s.TotalIBNR)
	}
	if s.IBNRPercentage != 5 {
		t.Errorf("ibnr_percentage = %d, want 5", s.IBNRPercentage)
	}
	if !almostEqual(s.OverallDevelopmentFactor, 1.05) {
		t.Errorf("overall_development_factor = %v, want 1.05", s.OverallDevelopmentFactor)
	}
}

func TestChainLadderReserveRelease(t *testing.T) {
	// A full reserve release pulls the cumulative diagonal back to an
	// earlier period: the remaining factors apply and the long tail
	// kicks in.
	res := ChainLadder(&triangle.Result{
		IncurredTriangle: &triangle.Table{
			Structure: triangle.Structure,
			Data: map[int]map[int]float64{
				2020: {1: 100, 2: 50, 3: 25},
				2022: {1: 200, 2: -200, 3: 0},
			},
		},
	})
	if res.Error != "" {
		t.Fatalf("ChainLadder error: %s", res.Error)
	}

	// Cumulative: 2020 = [100, 150, 175], 2022 = [200, 0, 0].
	// Factors come from 2020 alone: 1-2 = 1.5, 2-3 = 175/150.
	f12 := res.DevelopmentFactors["1-2"]
	f23 := res.DevelopmentFactors["2-3"]
	if !almostEqual(f12, 1.5) {
		t.Errorf("factor 1-2 = %v, want 1.5", f12)
	}

	// 2022 latest diagonal is period 1 with two periods remaining:
	// both factors apply plus the 1.10 tail.
	want := 200 * f12 * f23 * 1.10
	if got := res.UltimateValues["2022"]; !almostEqual(got, want) {
		t.Errorf("ultimate 2022 = %v, want %v", got, want)
	}
}

func TestChainLadderNoTriangle(t *testing.T) {
	if res := ChainLadder(nil); res.Error == "" {
		t.Error("expected error for nil triangles")
	}
	if res := ChainLadder(&triangle.Result{}); res.Error == "" {
		t.Error("expected error for missing incurred triangle")
	}
}

func TestBornhuetterFergusonFloor(t *testing.T) {
	fixture := triangleFixture()
	cl := ChainLadder(fixture)
	res := BornhuetterFerguson(fixture, cl)
	if res.Error != "" {
		t.Fatalf("BF error: %s", res.Error)
	}

	// Both years fall under the 50-policy floor (incurred / 100 < 50),
	// so expected loss per policy = mean(1500/50, 2000/50) = 35.
	if !almostEqual(res.Assumptions.BaseLossRatio, 35) {
		t.Errorf("base_loss_ratio = %v, want 35", res.Assumptions.BaseLossRatio)
	}

	// percent developed = min(0.95, 6/7) = 6/7.
	// 2021: paid = 1125, expected ultimate = 50*35 = 1750,
	// bf = 1125 + 625/7 = 1214.29 -> floored at 1500*1.02 = 1530.
	if got := res.UltimateLosses["2021"]; !almostEqual(got, 1530) {
		t.Errorf("bf ultimate 2021 = %v, want 1530", got)
	}
	if got := res.IBNRReserves["2021"]; !almostEqual(got, 30) {
		t.Errorf("bf ibnr 2021 = %v, want 30", got)
	}

	// 2022: paid = 1500, bf = 1500 + 250/7 = 1535.71 ->
	// floored at 2000*1.02 = 2040, IBNR = 40.
	if got := res.UltimateLosses["2022"]; !almostEqual(got, 2040) {
		t.Errorf("bf ultimate 2022 = %v, want 2040", got)
	}
	if !almostEqual(res.TotalIBNR, 70) {
		t.Errorf("total_ibnr = %v, want 70", res.TotalIBNR)
	}
}

func TestBornhuetterFergusonEmptyTriangle(t *testing.T) {
	res := BornhuetterFerguson(&triangle.Result{}, nil)
	if res.Methodology != "Bornhuetter-Ferguson" {
		t.Errorf("methodology = %q", res.Methodology)
	}
	if len(res.UltimateLosses) != 0 || res.TotalIBNR != 0 {
		t.Error("empty triangle must produce zero reserves")
	}
	if res.Assumptions.BaseLossRatio != 0.65 {
		t.Errorf("default base_loss_ratio = %v, want 0.65", res.Assumptions.BaseLossRatio)
	}
}

func TestConfidenceIntervals(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	res := ConfidenceIntervals(rng, 1000)

	if res.SimulationCount != 1000 {
		t.Errorf("simulation_count = %d, want 1000", res.SimulationCount)
	}
	for name, v := range map[string]float64{
		"percentile_75": res.Percentile75,
		"percentile_90": res.Percentile90,
		"percentile_95": res.Percentile95,
		"mean":          res.Mean,
	} {
		if v < 800_000 || v > 1_200_000 {
			t.Errorf("%s = %v outside the perturbation band", name, v)
		}
	}
	if !(res.Percentile75 <= res.Percentile90 && res.Percentile90 <= res.Percentile95) {
		t.Error("percentiles out of order")
	}
	if res.StdDev <= 0 {
		t.Errorf("std_dev = %v, want > 0", res.StdDev)
	}
}

func TestReserveAdequacy(t *testing.T) {
	cl := &ChainLadderResult{Summary: &ChainLadderSummary{TotalIBNR: 900}}
	bf := &BFResult{TotalIBNR: 1000}

	res := ReserveAdequacy(cl, bf)
	if !almostEqual(res.AdequacyRatio, 0.9) {
		t.Errorf("adequacy_ratio = %v, want 0.9", res.AdequacyRatio)
	}
	if res.Status != "Adequate" {
		t.Errorf("status = %q, want Adequate", res.Status)
	}
	if !res.AdequacyTests.OverallAdequate {
		t.Error("overall_adequate = false, want true")
	}
	if !almostEqual(res.RecommendedReserves, 1000) {
		t.Errorf("recommended_reserves = %v, want 1000", res.RecommendedReserves)
	}
}

func TestReserveAdequacyDivergent(t *testing.T) {
	cl := &ChainLadderResult{Summary: &ChainLadderSummary{TotalIBNR: 100}}
	bf := &BFResult{TotalIBNR: 1000}

	res := ReserveAdequacy(cl, bf)
	if res.Status != "Inadequate" {
		t.Errorf("status = %q, want Inadequate", res.Status)
	}
	if res.AdequacyTests.MethodologyConsistency {
		t.Error("methodology_consistency = true for a 90% gap")
	}
}

func TestCompareMethodologies(t *testing.T) {
	cl := &ChainLadderResult{Summary: &ChainLadderSummary{TotalIBNR: 900}}
	bf := &BFResult{TotalIBNR: 1100}

	res := CompareMethodologies(cl, bf)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !almostEqual(res.Difference, 200) {
		t.Errorf("difference = %v, want 200", res.Difference)
	}
	if !almostEqual(res.DifferencePercentage, 20) {
		t.Errorf("difference_percentage = %v, want 20", res.DifferencePercentage)
	}
	if res.Consistency != "Poor" {
		t.Errorf("consistency = %q, want Poor (20%% is not < 20%%)", res.Consistency)
	}
	if !almostEqual(res.RecommendedReserve, 1100) {
		t.Errorf("recommended_reserve = %v, want 1100", res.RecommendedReserve)
	}
}

func TestCompareMethodologiesNoReserves(t *testing.T) {
	res := CompareMethodologies(&ChainLadderResult{}, &BFResult{})
	if res.Error == "" {
		t.Error("expected error when both methods produce zero")
	}
}

func TestCalculateReservesComposite(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	res := CalculateReserves(triangleFixture(), rng)
	if res.Error != "" {
		t.Fatalf("CalculateReserves error: %s", res.Error)
	}

	if res.ChainLadder == nil || res.BornhuetterFerguson == nil ||
		res.ConfidenceIntervals == nil || res.ReserveAdequacy == nil ||
		res.MethodologyComparison == nil || res.Summary == nil {
		t.Fatal("composite result missing a stage")
	}

	if !almostEqual(res.Summary.TotalIBNRChainLadder, res.ChainLadder.Summary.TotalIBNR) {
		t.Error("summary chain ladder IBNR does not match stage result")
	}
	want := math.Max(res.ChainLadder.Summary.TotalIBNR, res.BornhuetterFerguson.TotalIBNR)
	if !almostEqual(res.Summary.RecommendedReserves, want) {
		t.Errorf("recommended_reserves = %v, want %v", res.Summary.RecommendedReserves, want)
	}
}

func TestCalculateReservesDegradesOnBadInput(t *testing.T) {
	res := CalculateReserves(nil, rand.New(rand.NewSource(7)))
	if res.Error != "" {
		t.Fatalf("composite must not fail outright: %s", res.Error)
	}
	if res.ChainLadder.Error == "" {
		t.Error("chain ladder stage should carry the error")
	}
	if res.Summary.TotalIBNRChainLadder != 0 {
		t.Error("missing triangle must yield zero reserves")
	}
}
