// Package risk segments a claims portfolio by categorical, temporal,
// and amount-derived factors, scores each factor with a variance-based
// significance heuristic, and surfaces high-risk segments and emerging
// patterns.
package risk

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/stats"
)

// significanceThreshold is the pseudo p-value below which a factor
// counts as significant.
const significanceThreshold = 0.05

// categoricalFactors are the raw claim columns segmented directly.
var categoricalFactors = []string{
	"lineofbusiness",
	"claimstatus",
	"losstype",
	"causeofloss",
	"garagestate",
	"accidentstate",
}

// Factor is one analyzed risk dimension with per-segment metrics.
type Factor struct {
	FactorName        string             `json:"factor_name"`
	Segments          []string           `json:"segments"`
	LossRatios        map[string]float64 `json:"loss_ratios"`
	FrequencyRates    map[string]int     `json:"frequency_rates"`
	SignificanceScore float64            `json:"significance_score"`
	IsSignificant     bool               `json:"is_significant"`
}

// HighRiskSegment names the worst segment of a significant factor.
type HighRiskSegment struct {
	Factor    string  `json:"factor"`
	Segment   string  `json:"segment"`
	LossRatio float64 `json:"loss_ratio"`
}

// Pattern is an emerging portfolio pattern worth investigating.
type Pattern struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// PortfolioMetrics are portfolio-level aggregates.
type PortfolioMetrics struct {
	AverageClaimAmount float64 `json:"average_claim_amount"`
	MedianClaimAmount  float64 `json:"median_claim_amount"`
	TotalPaid          float64 `json:"total_paid"`
	ClaimCount         int     `json:"claim_count"`
	AnalysisPeriodDays int     `json:"analysis_period_days,omitempty"`
	ClaimsPerDay       float64 `json:"claims_per_day,omitempty"`
}

// Insights groups the portfolio-level findings.
type Insights struct {
	HighRiskSegments []HighRiskSegment `json:"high_risk_segments"`
	EmergingPatterns []Pattern         `json:"emerging_patterns"`
	PortfolioMetrics PortfolioMetrics  `json:"portfolio_metrics"`
}

// Summary counts the analyzed factors.
type Summary struct {
	TotalFactorsAnalyzed int `json:"total_factors_analyzed"`
	SignificantFactors   int `json:"significant_factors"`
	TotalClaims          int `json:"total_claims"`
}

// Result is the full risk factor analysis.
type Result struct {
	Error          string   `json:"error,omitempty"`
	FactorAnalyses []Factor `json:"risk_factor_analyses"`
	RankedFactors  []Factor `json:"ranked_factors"`
	Insights       Insights `json:"risk_insights"`
	Summary        Summary  `json:"summary"`
}

// AnalyzeRiskFactors segments the portfolio along every available risk
// factor and ranks the factors by significance score.
func AnalyzeRiskFactors(table domain.ClaimsTable) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Error: fmt.Sprintf("failed to analyze risk factors: %v", r)}
		}
	}()

	if len(table) == 0 {
		return &Result{
			FactorAnalyses: []Factor{},
			RankedFactors:  []Factor{},
			Insights: Insights{
				HighRiskSegments: []HighRiskSegment{},
				EmergingPatterns: []Pattern{},
			},
		}
	}

	rows, err := claims.Normalize(table)
	if err != nil {
		return &Result{Error: err.Error()}
	}
	rows = deriveColumns(rows)

	factors := identifyFactors(rows)

	analyses := make([]Factor, 0, len(factors))
	for _, factor := range factors {
		analyses = append(analyses, analyzeFactor(rows, factor))
	}

	ranked := make([]Factor, len(analyses))
	copy(ranked, analyses)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SignificanceScore > ranked[j].SignificanceScore
	})

	significant := 0
	for _, a := range analyses {
		if a.IsSignificant {
			significant++
		}
	}

	return &Result{
		FactorAnalyses: analyses,
		RankedFactors:  ranked,
		Insights: Insights{
			HighRiskSegments: highRiskSegments(analyses),
			EmergingPatterns: emergingPatterns(rows),
			PortfolioMetrics: portfolioMetrics(rows),
		},
		Summary: Summary{
			TotalFactorsAnalyzed: len(analyses),
			SignificantFactors:   significant,
			TotalClaims:          len(rows),
		},
	}
}

// deriveColumns adds accident_year, accident_month, is_weekend, and
// amount_category to cloned records where the source columns allow.
func deriveColumns(table domain.ClaimsTable) domain.ClaimsTable {
	out := make(domain.ClaimsTable, 0, len(table))
	for _, rec := range table {
		c := rec.Clone()
		if d, ok := c.Date("note_date"); ok {
			c["accident_year"] = strconv.Itoa(d.Year())
			c["accident_month"] = strconv.Itoa(int(d.Month()))
			wd := d.Weekday()
			c["is_weekend"] = strconv.FormatBool(wd == time.Saturday || wd == time.Sunday)
		}
		if c.Has("paidtotal") {
			if label, ok := amountCategory(c.Float("paidtotal")); ok {
				c["amount_category"] = label
			}
		}
		out = append(out, c)
	}
	return out
}

// amountCategory buckets a paid amount into severity bands. Amounts at
// a band edge fall into the lower band; non-positive amounts are
// excluded.
func amountCategory(paid float64) (string, bool) {
	switch {
	case paid <= 0:
		return "", false
	case paid <= 1000:
		return "Small", true
	case paid <= 5000:
		return "Medium", true
	case paid <= 25000:
		return "Large", true
	default:
		return "Very Large", true
	}
}

func identifyFactors(table domain.ClaimsTable) []string {
	var factors []string
	for _, col := range categoricalFactors {
		if table.HasColumn(col) {
			factors = append(factors, col)
		}
	}
	if table.HasColumn("accident_year") {
		factors = append(factors, "accident_year", "accident_month", "is_weekend")
	}
	if table.HasColumn("amount_category") {
		factors = append(factors, "amount_category")
	}
	return factors
}

// analyzeFactor segments the table on one factor and scores the spread
// of mean paid amounts across segments.
func analyzeFactor(table domain.ClaimsTable, factor string) Factor {
	hasPaid := table.HasColumn("paidtotal")

	var segments []string
	lossRatios := map[string]float64{}
	frequencies := map[string]int{}
	paidBySegment := map[string][]float64{}

	for _, rec := range table {
		if !rec.Has(factor) {
			continue
		}
		seg := rec.Str(factor)
		if _, seen := frequencies[seg]; !seen {
			segments = append(segments, seg)
		}
		frequencies[seg]++
		if hasPaid && rec.Has("paidtotal") {
			paidBySegment[seg] = append(paidBySegment[seg], rec.Float("paidtotal"))
		}
	}

	// Loss ratio per segment is a simplified proxy: mean paid over a
	// nominal 10000 exposure unit. Real premium data would replace it.
	for _, seg := range segments {
		lossRatios[seg] = stats.Mean(paidBySegment[seg]) / 10000
	}

	var segmentData [][]float64
	if hasPaid {
		for _, seg := range segments {
			if vals := paidBySegment[seg]; len(vals) > 0 {
				segmentData = append(segmentData, vals)
			}
		}
	}

	score := significanceScore(segmentData)

	if segments == nil {
		segments = []string{}
	}
	return Factor{
		FactorName:        factor,
		Segments:          segments,
		LossRatios:        lossRatios,
		FrequencyRates:    frequencies,
		SignificanceScore: score,
		IsSignificant:     score < significanceThreshold,
	}
}

// significanceScore converts the coefficient of variation of segment
// means into a p-value-like score: 0 is very significant, 1 is not.
// Fewer than two populated segments score 1.
func significanceScore(segmentData [][]float64) float64 {
	if len(segmentData) < 2 {
		return 1.0
	}

	means := make([]float64, 0, len(segmentData))
	for _, seg := range segmentData {
		means = append(means, stats.Mean(seg))
	}

	cv := stats.StdPop(means) / (stats.Mean(means) + 0.001)

	p := 1.0 - cv
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// highRiskSegments picks the worst segment of each significant factor
// and keeps the top five by loss ratio.
func highRiskSegments(analyses []Factor) []HighRiskSegment {
	var out []HighRiskSegment
	for _, a := range analyses {
		if !a.IsSignificant || len(a.Segments) == 0 {
			continue
		}
		maxSeg := a.Segments[0]
		for _, seg := range a.Segments[1:] {
			if a.LossRatios[seg] > a.LossRatios[maxSeg] {
				maxSeg = seg
			}
		}
		out = append(out, HighRiskSegment{
			Factor:    a.FactorName,
			Segment:   maxSeg,
			LossRatio: a.LossRatios[maxSeg],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LossRatio > out[j].LossRatio
	})
	if len(out) > 5 {
		out = out[:5]
	}
	if out == nil {
		out = []HighRiskSegment{}
	}
	return out
}

// emergingPatterns flags claim frequency spikes and severity outliers.
func emergingPatterns(table domain.ClaimsTable) []Pattern {
	patterns := []Pattern{}

	if table.HasColumn("accident_date") {
		counts := monthlyCounts(table)
		if len(counts) > 3 {
			recent := stats.Mean(counts[len(counts)-3:])
			historical := stats.Mean(counts)
			if len(counts) > 6 {
				historical = stats.Mean(counts[:len(counts)-3])
			}
			if recent > historical*1.2 {
				patterns = append(patterns, Pattern{
					Type:        "increasing_frequency",
					Description: fmt.Sprintf("Claim frequency increased by %.1f%% in recent months", (recent/historical-1)*100),
					Severity:    "medium",
				})
			}
		}
	}

	if table.HasColumn("paidtotal") {
		var paid []float64
		for _, rec := range table {
			if rec.Has("paidtotal") {
				paid = append(paid, rec.Float("paidtotal"))
			}
		}
		q75 := stats.Percentile(paid, 75)
		q25 := stats.Percentile(paid, 25)
		threshold := q75 + 1.5*(q75-q25)

		outliers := 0
		for _, v := range paid {
			if v > threshold {
				outliers++
			}
		}
		if float64(outliers) > float64(len(table))*0.05 {
			patterns = append(patterns, Pattern{
				Type:        "high_severity_outliers",
				Description: fmt.Sprintf("%d claims (%.1f%%) exceed normal severity range", outliers, float64(outliers)/float64(len(table))*100),
				Severity:    "high",
			})
		}
	}

	return patterns
}

// monthlyCounts groups claims by accident month, oldest first.
func monthlyCounts(table domain.ClaimsTable) []float64 {
	byMonth := map[int]int{}
	for _, rec := range table {
		if d, ok := rec.Date("accident_date"); ok {
			byMonth[d.Year()*12+int(d.Month())]++
		}
	}

	months := make([]int, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Ints(months)

	counts := make([]float64, 0, len(months))
	for _, m := range months {
		counts = append(counts, float64(byMonth[m]))
	}
	return counts
}

func portfolioMetrics(table domain.ClaimsTable) PortfolioMetrics {
	var m PortfolioMetrics

	if table.HasColumn("paidtotal") {
		var paid []float64
		for _, rec := range table {
			if rec.Has("paidtotal") {
				paid = append(paid, rec.Float("paidtotal"))
			}
		}
		m.AverageClaimAmount = stats.Mean(paid)
		m.MedianClaimAmount = stats.Median(paid)
		m.TotalPaid = stats.Sum(paid)
		m.ClaimCount = len(table)
	}

	if table.HasColumn("accident_date") {
		var min, max time.Time
		seen := false
		for _, rec := range table {
			d, ok := rec.Date("accident_date")
			if !ok {
				continue
			}
			if !seen || d.Before(min) {
				min = d
			}
			if !seen || d.After(max) {
				max = d
			}
			seen = true
		}
		if seen {
			days := int(max.Sub(min).Hours() / 24)
			m.AnalysisPeriodDays = days
			if days > 0 {
				m.ClaimsPerDay = float64(len(table)) / float64(days)
			}
		}
	}

	return m
}
