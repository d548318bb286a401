package reserving

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/opensource-finance/heron/internal/triangle"
)

// Standard exposure assumptions for the policy-count proxy.
const (
	bfAvgClaimSize     = 2000.0
	bfClaimFrequency   = 0.05
	bfMinPolicies      = 50.0
	bfPaymentRatio     = 0.75
	bfMaxDeveloped     = 0.95
	bfDefaultDeveloped = 0.80
	bfUltimateFloor    = 1.02
)

// BFAssumptions records the inputs the BF projection was built on.
type BFAssumptions struct {
	BaseLossRatio     float64 `json:"base_loss_ratio"`
	DevelopmentMethod string  `json:"development_method"`
	ExposureProxy     string  `json:"exposure_proxy,omitempty"`
	AvgClaimSize      float64 `json:"avg_claim_size,omitempty"`
	ClaimFrequency    string  `json:"claim_frequency,omitempty"`
	PaymentRatio      string  `json:"payment_ratio,omitempty"`
}

// BFResult holds the Bornhuetter-Ferguson projection per accident year.
type BFResult struct {
	Methodology        string             `json:"methodology"`
	UltimateLosses     map[string]float64 `json:"ultimate_losses"`
	IBNRReserves       map[string]float64 `json:"ibnr_reserves"`
	TotalIBNR          float64            `json:"total_ibnr"`
	ExpectedLossRatios map[string]float64 `json:"expected_loss_ratios"`
	Assumptions        *BFAssumptions     `json:"assumptions"`
	Error              string             `json:"error,omitempty"`
}

func emptyBFResult(errMsg string) *BFResult {
	return &BFResult{
		Methodology:        "Bornhuetter-Ferguson",
		UltimateLosses:     map[string]float64{},
		IBNRReserves:       map[string]float64{},
		ExpectedLossRatios: map[string]float64{},
		Error:              errMsg,
		Assumptions: &BFAssumptions{
			BaseLossRatio:     0.65,
			DevelopmentMethod: "Chain Ladder derived",
		},
	}
}

// BornhuetterFerguson blends expected losses from a policy-count proxy
// with the observed development implied by the Chain Ladder factors.
func BornhuetterFerguson(triangles *triangle.Result, cl *ChainLadderResult) (res *BFResult) {
	defer func() {
		if r := recover(); r != nil {
			res = emptyBFResult(fmt.Sprintf("BF calculation failed: %v", r))
		}
	}()

	if triangles == nil || triangles.IncurredTriangle == nil || len(triangles.IncurredTriangle.Data) == 0 {
		return emptyBFResult("")
	}

	years, _, cum := cumulative(triangles.IncurredTriangle)

	// Exposure proxy: estimated policies from current incurred under the
	// standard frequency/severity assumptions, floored.
	currentByYear := make(map[string]float64, len(years))
	policiesByYear := make(map[string]float64, len(years))
	lossPerPolicy := make(map[string]float64, len(years))
	for _, ay := range years {
		key := strconv.Itoa(ay)
		current, _ := latestDiagonal(cum[ay])
		currentByYear[key] = current
		policies := math.Max(bfMinPolicies, current/(bfAvgClaimSize*bfClaimFrequency))
		policiesByYear[key] = policies
		if policies > 0 {
			lossPerPolicy[key] = current / policies
		}
	}

	// Expected loss per policy: mean over the three most recent years.
	expectedLossPerPolicy := 100.0
	if len(lossPerPolicy) > 0 {
		keys := make([]string, 0, len(lossPerPolicy))
		for k := range lossPerPolicy {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 3 {
			keys = keys[len(keys)-3:]
		}
		var sum float64
		for _, k := range keys {
			sum += lossPerPolicy[k]
		}
		expectedLossPerPolicy = sum / float64(len(keys))
	}

	// Percent developed from the product of all Chain Ladder factors.
	cumDevFactor := 1.0
	if cl != nil {
		for _, f := range cl.DevelopmentFactors {
			cumDevFactor *= f
		}
	}
	percentDeveloped := bfDefaultDeveloped
	if cumDevFactor > 1 {
		percentDeveloped = math.Min(bfMaxDeveloped, 1.0/cumDevFactor)
	}

	ultimates := make(map[string]float64, len(years))
	ibnr := make(map[string]float64, len(years))
	for _, ay := range years {
		key := strconv.Itoa(ay)
		current := currentByYear[key]
		paid := current * bfPaymentRatio
		expectedUltimate := policiesByYear[key] * expectedLossPerPolicy

		ultimate := paid + (expectedUltimate-paid)*(1-percentDeveloped)
		ultimate = math.Max(current*bfUltimateFloor, ultimate)

		ultimates[key] = ultimate
		ibnr[key] = math.Max(0, ultimate-current)
	}

	var totalIBNR float64
	for _, v := range ibnr {
		totalIBNR += v
	}

	return &BFResult{
		Methodology:        "Bornhuetter-Ferguson",
		UltimateLosses:     ultimates,
		IBNRReserves:       ibnr,
		TotalIBNR:          totalIBNR,
		ExpectedLossRatios: lossPerPolicy,
		Assumptions: &BFAssumptions{
			BaseLossRatio:     expectedLossPerPolicy,
			DevelopmentMethod: "Chain Ladder derived",
			ExposureProxy:     "Policy count from claim frequency",
			AvgClaimSize:      bfAvgClaimSize,
			ClaimFrequency:    "5%",
			PaymentRatio:      "75%",
		},
	}
}
