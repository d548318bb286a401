package risk

import (
	"fmt"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/stats"
)

// FrequencyTrend compares claim counts between two periods.
type FrequencyTrend struct {
	HistoricalCount int     `json:"historical_count"`
	CurrentCount    int     `json:"current_count"`
	ChangePercent   float64 `json:"change_percent"`
	TrendDirection  string  `json:"trend_direction"`
}

// SeverityTrend compares average paid amounts between two periods.
type SeverityTrend struct {
	HistoricalAverage float64 `json:"historical_average"`
	CurrentAverage    float64 `json:"current_average"`
	ChangePercent     float64 `json:"change_percent"`
	TrendDirection    string  `json:"trend_direction"`
}

// DistributionShift is the share change of one segment between periods.
type DistributionShift struct {
	HistoricalPercent float64 `json:"historical_percent"`
	CurrentPercent    float64 `json:"current_percent"`
	Change            float64 `json:"change"`
}

// StabilityAnalysis tracks how the portfolio mix drifts over time.
type StabilityAnalysis struct {
	LineOfBusinessDistribution map[string]DistributionShift `json:"line_of_business_distribution,omitempty"`
}

// Trends holds the period-over-period comparisons.
type Trends struct {
	FrequencyTrend      *FrequencyTrend   `json:"frequency_trend,omitempty"`
	SeverityTrend       *SeverityTrend    `json:"severity_trend,omitempty"`
	RiskFactorStability StabilityAnalysis `json:"risk_factor_stability"`
}

// TrendsResult is the DetectRiskTrends output.
type TrendsResult struct {
	Error           string   `json:"error,omitempty"`
	Trends          Trends   `json:"trends"`
	AnalysisDate    string   `json:"analysis_date"`
	Recommendations []string `json:"recommendation"`
}

// DetectRiskTrends compares a historical claims period against the
// current one and recommends follow-up actions.
func DetectRiskTrends(historical, current domain.ClaimsTable) (res *TrendsResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &TrendsResult{Error: fmt.Sprintf("failed to detect risk trends: %v", r)}
		}
	}()

	var trends Trends

	if len(historical) > 0 && len(current) > 0 {
		trends.FrequencyTrend = frequencyTrend(historical, current)

		if historical.HasColumn("paidtotal") && current.HasColumn("paidtotal") {
			trends.SeverityTrend = severityTrend(historical, current)
		}
	}

	trends.RiskFactorStability = stabilityAnalysis(historical, current)

	return &TrendsResult{
		Trends:          trends,
		AnalysisDate:    time.Now().Format(time.RFC3339),
		Recommendations: trendRecommendations(trends),
	}
}

func frequencyTrend(historical, current domain.ClaimsTable) *FrequencyTrend {
	histCount := len(historical)
	currCount := len(current)

	change := 0.0
	if histCount > 0 {
		change = float64(currCount-histCount) / float64(histCount) * 100
	}

	return &FrequencyTrend{
		HistoricalCount: histCount,
		CurrentCount:    currCount,
		ChangePercent:   change,
		TrendDirection:  direction(change, 5),
	}
}

func severityTrend(historical, current domain.ClaimsTable) *SeverityTrend {
	histAvg := meanPaid(historical)
	currAvg := meanPaid(current)

	change := 0.0
	if histAvg > 0 {
		change = (currAvg - histAvg) / histAvg * 100
	}

	return &SeverityTrend{
		HistoricalAverage: histAvg,
		CurrentAverage:    currAvg,
		ChangePercent:     change,
		TrendDirection:    direction(change, 10),
	}
}

func meanPaid(table domain.ClaimsTable) float64 {
	var paid []float64
	for _, rec := range table {
		if rec.Has("paidtotal") {
			paid = append(paid, rec.Float("paidtotal"))
		}
	}
	return stats.Mean(paid)
}

func direction(changePercent, band float64) string {
	switch {
	case changePercent > band:
		return "increasing"
	case changePercent < -band:
		return "decreasing"
	default:
		return "stable"
	}
}

// stabilityAnalysis compares the line_of_business mix between periods.
func stabilityAnalysis(historical, current domain.ClaimsTable) StabilityAnalysis {
	var out StabilityAnalysis

	if !historical.HasColumn("line_of_business") || !current.HasColumn("line_of_business") {
		return out
	}

	histShare := lobShares(historical)
	currShare := lobShares(current)

	shifts := map[string]DistributionShift{}
	for lob := range histShare {
		shifts[lob] = DistributionShift{}
	}
	for lob := range currShare {
		shifts[lob] = DistributionShift{}
	}
	for lob := range shifts {
		h := histShare[lob] * 100
		c := currShare[lob] * 100
		shifts[lob] = DistributionShift{
			HistoricalPercent: h,
			CurrentPercent:    c,
			Change:            c - h,
		}
	}

	out.LineOfBusinessDistribution = shifts
	return out
}

func lobShares(table domain.ClaimsTable) map[string]float64 {
	counts := map[string]int{}
	total := 0
	for _, rec := range table {
		if rec.Has("line_of_business") {
			counts[rec.Str("line_of_business")]++
			total++
		}
	}

	shares := make(map[string]float64, len(counts))
	for lob, n := range counts {
		shares[lob] = float64(n) / float64(total)
	}
	return shares
}

func trendRecommendations(trends Trends) []string {
	var recs []string

	if ft := trends.FrequencyTrend; ft != nil {
		switch ft.TrendDirection {
		case "increasing":
			recs = append(recs, "Monitor increasing claim frequency - consider underwriting review")
		case "decreasing":
			recs = append(recs, "Decreasing claim frequency is positive - maintain current practices")
		}
	}

	if st := trends.SeverityTrend; st != nil {
		switch st.TrendDirection {
		case "increasing":
			recs = append(recs, "Rising claim severity detected - review reserve adequacy")
		case "decreasing":
			recs = append(recs, "Decreasing claim severity - potential reserve release opportunity")
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Risk trends appear stable - continue monitoring")
	}
	return recs
}
