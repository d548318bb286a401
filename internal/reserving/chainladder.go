// Package reserving estimates IBNR reserves from incremental loss
// triangles using the Chain Ladder and Bornhuetter-Ferguson
// methodologies, with adequacy testing and a bootstrap confidence band.
package reserving

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/opensource-finance/heron/internal/triangle"
)

// ChainLadderSummary aggregates the portfolio-level Chain Ladder view.
type ChainLadderSummary struct {
	TotalCurrent             float64 `json:"total_current"`
	TotalUltimate            float64 `json:"total_ultimate"`
	TotalIBNR                float64 `json:"total_ibnr"`
	OverallDevelopmentFactor float64 `json:"overall_development_factor"`
	IBNRPercentage           int     `json:"ibnr_percentage"`
}

// ChainLadderResult holds volume-weighted development factors and the
// projected ultimates per accident year.
type ChainLadderResult struct {
	Error              string              `json:"error,omitempty"`
	DevelopmentFactors map[string]float64  `json:"development_factors,omitempty"`
	UltimateValues     map[string]float64  `json:"ultimate_values,omitempty"`
	IBNRValues         map[string]float64  `json:"ibnr_values,omitempty"`
	Summary            *ChainLadderSummary `json:"summary,omitempty"`
}

// Tail factors applied past the last observed development period. The
// larger tail applies when more than one period of development remains.
const (
	tailFactorLong  = 1.10
	tailFactorShort = 1.05
)

// cumulative converts an incremental triangle into running sums per
// accident year over the sorted development periods. Returns the sorted
// accident years, sorted development periods, and the cumulative cells.
func cumulative(t *triangle.Table) (years, periods []int, cum map[int][]float64) {
	yearSet := make(map[int]bool)
	periodSet := make(map[int]bool)
	for ay, row := range t.Data {
		yearSet[ay] = true
		for dy := range row {
			periodSet[dy] = true
		}
	}
	years = sortedInts(yearSet)
	periods = sortedInts(periodSet)

	cum = make(map[int][]float64, len(years))
	for _, ay := range years {
		row := make([]float64, len(periods))
		var running float64
		for i, dy := range periods {
			running += t.Data[ay][dy]
			row[i] = running
		}
		cum[ay] = row
	}
	return years, periods, cum
}

// ChainLadder projects ultimate losses from the incurred triangle.
// Structural problems land in the Error field; the caller decides
// whether to continue with zero reserves.
func ChainLadder(triangles *triangle.Result) (res *ChainLadderResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &ChainLadderResult{Error: fmt.Sprintf("failed to calculate chain ladder: %v", r)}
		}
	}()

	if triangles == nil || triangles.IncurredTriangle == nil {
		return &ChainLadderResult{Error: "no incurred triangle data available"}
	}
	if len(triangles.IncurredTriangle.Data) == 0 {
		return &ChainLadderResult{Error: "no incurred triangle data to analyze"}
	}

	years, periods, cum := cumulative(triangles.IncurredTriangle)

	// Volume-weighted age-to-age factors over rows where both adjacent
	// cumulative cells are positive.
	factors := make(map[string]float64)
	factorAt := make([]float64, len(periods)) // 0 = no factor observed
	for i := 0; i < len(periods)-1; i++ {
		var sumCurrent, sumNext float64
		for _, ay := range years {
			c, n := cum[ay][i], cum[ay][i+1]
			if c > 0 && n > 0 {
				sumCurrent += c
				sumNext += n
			}
		}
		if sumCurrent > 0 {
			f := sumNext / sumCurrent
			factors[fmt.Sprintf("%d-%d", periods[i], periods[i+1])] = f
			factorAt[i] = f
		}
	}

	ultimates := make(map[string]float64, len(years))
	ibnr := make(map[string]float64, len(years))
	var totalCurrent float64

	for _, ay := range years {
		latest, latestIdx := latestDiagonal(cum[ay])
		key := strconv.Itoa(ay)

		if latest <= 0 {
			ultimates[key] = 0
			ibnr[key] = 0
			continue
		}
		totalCurrent += latest

		ultimate := latest
		for i := latestIdx; i < len(periods)-1; i++ {
			if factorAt[i] > 0 {
				ultimate *= factorAt[i]
			}
		}
		tail := tailFactorShort
		if latestIdx < len(periods)-2 {
			tail = tailFactorLong
		}
		ultimate *= tail

		ultimates[key] = ultimate
		ibnr[key] = math.Max(0, ultimate-latest)
	}

	var totalUltimate, totalIBNR float64
	for _, v := range ultimates {
		totalUltimate += v
	}
	for _, v := range ibnr {
		totalIBNR += v
	}

	summary := &ChainLadderSummary{
		TotalCurrent:             totalCurrent,
		TotalUltimate:            totalUltimate,
		TotalIBNR:                totalIBNR,
		OverallDevelopmentFactor: 1.0,
	}
	if totalCurrent > 0 {
		summary.OverallDevelopmentFactor = totalUltimate / totalCurrent
		summary.IBNRPercentage = int(totalIBNR / totalCurrent * 100)
	}

	return &ChainLadderResult{
		DevelopmentFactors: factors,
		UltimateValues:     ultimates,
		IBNRValues:         ibnr,
		Summary:            summary,
	}
}

// latestDiagonal returns the last positive cumulative value in a row
// and its period index, or (0, -1) when the row never develops.
func latestDiagonal(row []float64) (float64, int) {
	for i := len(row) - 1; i >= 0; i-- {
		if row[i] > 0 {
			return row[i], i
		}
	}
	return 0, -1
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
