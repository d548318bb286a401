package risk

import (
	"math"
	"strings"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAmountCategory(t *testing.T) {
	cases := []struct {
		paid  float64
		label string
		ok    bool
	}{
		{-50, "", false},
		{0, "", false},
		{500, "Small", true},
		{1000, "Small", true},
		{1001, "Medium", true},
		{5000, "Medium", true},
		{25000, "Large", true},
		{25001, "Very Large", true},
	}
	for _, c := range cases {
		label, ok := amountCategory(c.paid)
		if label != c.label || ok != c.ok {
			t.Errorf("amountCategory(%v) = %q, %v, want %q, %v", c.paid, label, ok, c.label, c.ok)
		}
	}
}

func TestAnalyzeFactorSegmentation(t *testing.T) {
	table := domain.ClaimsTable{
		{"lineofbusiness": "AUTO", "paidtotal": 100.0},
		{"lineofbusiness": "PROP", "paidtotal": 10000.0},
		{"lineofbusiness": "AUTO", "paidtotal": 100.0},
		{"lineofbusiness": "PROP", "paidtotal": 10000.0},
	}

	f := analyzeFactor(table, "lineofbusiness")

	// Segments keep first-seen order.
	if len(f.Segments) != 2 || f.Segments[0] != "AUTO" || f.Segments[1] != "PROP" {
		t.Fatalf("segments = %v", f.Segments)
	}
	if f.FrequencyRates["AUTO"] != 2 || f.FrequencyRates["PROP"] != 2 {
		t.Errorf("frequency_rates = %v", f.FrequencyRates)
	}
	if !almostEqual(f.LossRatios["AUTO"], 0.01) {
		t.Errorf("AUTO loss ratio = %v, want 0.01", f.LossRatios["AUTO"])
	}
	if !almostEqual(f.LossRatios["PROP"], 1.0) {
		t.Errorf("PROP loss ratio = %v, want 1.0", f.LossRatios["PROP"])
	}

	// Segment means 100 and 10000 spread far apart, so the pseudo
	// p-value lands well under the threshold.
	if !f.IsSignificant {
		t.Errorf("significance_score = %v, want significant", f.SignificanceScore)
	}
}

func TestSignificanceScoreEdges(t *testing.T) {
	if got := significanceScore(nil); got != 1.0 {
		t.Errorf("no segments: score = %v, want 1.0", got)
	}
	if got := significanceScore([][]float64{{100, 200}}); got != 1.0 {
		t.Errorf("single segment: score = %v, want 1.0", got)
	}

	// Identical segment means leave no variation: score 1.0.
	if got := significanceScore([][]float64{{500}, {500}}); !almostEqual(got, 1.0) {
		t.Errorf("identical means: score = %v, want 1.0", got)
	}
}

func TestDeriveColumnsFromNoteDate(t *testing.T) {
	// 2023-06-10 is a Saturday.
	table := deriveColumns(domain.ClaimsTable{
		{"note_date": "2023-06-10", "paidtotal": 750.0},
		{"note_date": "2023-06-12"},
		{"note_date": "garbage"},
	})

	if table[0].Str("accident_year") != "2023" || table[0].Str("accident_month") != "6" {
		t.Errorf("derived year/month = %q/%q", table[0].Str("accident_year"), table[0].Str("accident_month"))
	}
	if table[0].Str("is_weekend") != "true" {
		t.Errorf("is_weekend = %q, want true for Saturday", table[0].Str("is_weekend"))
	}
	if table[0].Str("amount_category") != "Small" {
		t.Errorf("amount_category = %q, want Small", table[0].Str("amount_category"))
	}
	if table[1].Str("is_weekend") != "false" {
		t.Errorf("is_weekend = %q, want false for Monday", table[1].Str("is_weekend"))
	}
	if table[2].Has("accident_year") {
		t.Error("unparseable note_date must not derive columns")
	}
}

func TestAnalyzeRiskFactorsRankingAndInsights(t *testing.T) {
	table := domain.ClaimsTable{
		{"lineofbusiness": "AUTO", "claimstatus": "OPEN", "paidtotal": 100.0},
		{"lineofbusiness": "PROP", "claimstatus": "OPEN", "paidtotal": 10000.0},
		{"lineofbusiness": "AUTO", "claimstatus": "OPEN", "paidtotal": 100.0},
		{"lineofbusiness": "PROP", "claimstatus": "OPEN", "paidtotal": 10000.0},
	}

	res := AnalyzeRiskFactors(table)
	if res.Error != "" {
		t.Fatalf("AnalyzeRiskFactors error: %s", res.Error)
	}

	if res.Summary.TotalClaims != 4 {
		t.Errorf("total_claims = %d", res.Summary.TotalClaims)
	}
	if res.Summary.TotalFactorsAnalyzed != len(res.FactorAnalyses) {
		t.Errorf("summary factor count mismatch")
	}

	// claimstatus has one segment (score 1.0); lineofbusiness spreads
	// wide (score near 0). Ranking is descending by score.
	if len(res.RankedFactors) < 2 {
		t.Fatalf("ranked factors = %d", len(res.RankedFactors))
	}
	for i := 1; i < len(res.RankedFactors); i++ {
		if res.RankedFactors[i].SignificanceScore > res.RankedFactors[i-1].SignificanceScore {
			t.Fatalf("ranked factors out of order at %d", i)
		}
	}

	// The significant lineofbusiness factor surfaces PROP as high risk.
	found := false
	for _, seg := range res.Insights.HighRiskSegments {
		if seg.Factor == "lineofbusiness" {
			found = true
			if seg.Segment != "PROP" {
				t.Errorf("high risk segment = %q, want PROP", seg.Segment)
			}
			if !almostEqual(seg.LossRatio, 1.0) {
				t.Errorf("high risk loss ratio = %v, want 1.0", seg.LossRatio)
			}
		}
	}
	if !found {
		t.Errorf("lineofbusiness missing from high risk segments: %+v", res.Insights.HighRiskSegments)
	}

	pm := res.Insights.PortfolioMetrics
	if !almostEqual(pm.AverageClaimAmount, 5050) || !almostEqual(pm.TotalPaid, 20200) {
		t.Errorf("portfolio metrics = %+v", pm)
	}
	if pm.ClaimCount != 4 {
		t.Errorf("claim_count = %d", pm.ClaimCount)
	}
}

func TestAnalyzeRiskFactorsAliasedDateColumn(t *testing.T) {
	res := AnalyzeRiskFactors(domain.ClaimsTable{
		{"lossdate": "2024-01-05", "paidtotal": 200.0},
		{"lossdate": "2024-01-06", "paidtotal": 300.0},
	})
	if res.Error != "" {
		t.Fatalf("AnalyzeRiskFactors error: %s", res.Error)
	}

	found := false
	for _, f := range res.FactorAnalyses {
		if f.FactorName == "accident_year" {
			found = true
		}
	}
	if !found {
		t.Error("lossdate alias did not produce date-derived factors")
	}
}

func TestAnalyzeRiskFactorsEmpty(t *testing.T) {
	res := AnalyzeRiskFactors(nil)
	if res.Error != "" {
		t.Fatalf("empty input must not error: %s", res.Error)
	}
	if len(res.FactorAnalyses) != 0 || res.Summary.TotalClaims != 0 {
		t.Error("empty input must produce an empty result")
	}
}

func TestEmergingPatternOutliers(t *testing.T) {
	table := make(domain.ClaimsTable, 0, 19)
	for i := 0; i < 18; i++ {
		table = append(table, domain.ClaimRecord{"paidtotal": 100.0})
	}
	table = append(table, domain.ClaimRecord{"paidtotal": 100000.0})

	patterns := emergingPatterns(table)
	found := false
	for _, p := range patterns {
		if p.Type == "high_severity_outliers" {
			found = true
			if p.Severity != "high" {
				t.Errorf("severity = %q", p.Severity)
			}
			if !strings.Contains(p.Description, "1 claims") {
				t.Errorf("description = %q", p.Description)
			}
		}
	}
	if !found {
		t.Errorf("outlier pattern missing: %+v", patterns)
	}
}

func TestEmergingPatternFrequencySpike(t *testing.T) {
	table := domain.ClaimsTable{}
	months := []string{"2023-01", "2023-02", "2023-03", "2023-04"}
	for _, m := range months {
		table = append(table, domain.ClaimRecord{"accident_date": m + "-15"})
	}
	// Three recent months with five claims each.
	for _, m := range []string{"2023-05", "2023-06", "2023-07"} {
		for i := 0; i < 5; i++ {
			table = append(table, domain.ClaimRecord{"accident_date": m + "-15"})
		}
	}

	patterns := emergingPatterns(table)
	found := false
	for _, p := range patterns {
		if p.Type == "increasing_frequency" {
			found = true
			// Recent average 5 against historical 1: +400%.
			if !strings.Contains(p.Description, "400.0%") {
				t.Errorf("description = %q", p.Description)
			}
		}
	}
	if !found {
		t.Errorf("frequency pattern missing: %+v", patterns)
	}
}

func TestDetectRiskTrends(t *testing.T) {
	historical := make(domain.ClaimsTable, 0, 10)
	for i := 0; i < 10; i++ {
		historical = append(historical, domain.ClaimRecord{
			"paidtotal":        1000.0,
			"line_of_business": "AUTO",
		})
	}
	current := make(domain.ClaimsTable, 0, 20)
	for i := 0; i < 20; i++ {
		lob := "AUTO"
		if i < 10 {
			lob = "PROP"
		}
		current = append(current, domain.ClaimRecord{
			"paidtotal":        1500.0,
			"line_of_business": lob,
		})
	}

	res := DetectRiskTrends(historical, current)
	if res.Error != "" {
		t.Fatalf("DetectRiskTrends error: %s", res.Error)
	}

	ft := res.Trends.FrequencyTrend
	if ft == nil {
		t.Fatal("frequency_trend missing")
	}
	if ft.ChangePercent != 100 || ft.TrendDirection != "increasing" {
		t.Errorf("frequency trend = %+v", ft)
	}

	st := res.Trends.SeverityTrend
	if st == nil {
		t.Fatal("severity_trend missing")
	}
	if !almostEqual(st.ChangePercent, 50) || st.TrendDirection != "increasing" {
		t.Errorf("severity trend = %+v", st)
	}

	dist := res.Trends.RiskFactorStability.LineOfBusinessDistribution
	if dist == nil {
		t.Fatal("line_of_business_distribution missing")
	}
	auto := dist["AUTO"]
	if !almostEqual(auto.HistoricalPercent, 100) || !almostEqual(auto.CurrentPercent, 50) || !almostEqual(auto.Change, -50) {
		t.Errorf("AUTO shift = %+v", auto)
	}
	prop := dist["PROP"]
	if !almostEqual(prop.HistoricalPercent, 0) || !almostEqual(prop.CurrentPercent, 50) {
		t.Errorf("PROP shift = %+v", prop)
	}

	if len(res.Recommendations) != 2 {
		t.Fatalf("recommendations = %v", res.Recommendations)
	}
	if !strings.Contains(res.Recommendations[0], "underwriting review") {
		t.Errorf("recommendation[0] = %q", res.Recommendations[0])
	}
	if !strings.Contains(res.Recommendations[1], "reserve adequacy") {
		t.Errorf("recommendation[1] = %q", res.Recommendations[1])
	}
	if res.AnalysisDate == "" {
		t.Error("analysis_date empty")
	}
}

func TestDetectRiskTrendsEmptyPeriods(t *testing.T) {
	res := DetectRiskTrends(nil, domain.ClaimsTable{{"paidtotal": 100.0}})
	if res.Error != "" {
		t.Fatalf("DetectRiskTrends error: %s", res.Error)
	}
	if res.Trends.FrequencyTrend != nil || res.Trends.SeverityTrend != nil {
		t.Error("trends computed without a historical period")
	}
	if len(res.Recommendations) != 1 || !strings.Contains(res.Recommendations[0], "stable") {
		t.Errorf("recommendations = %v", res.Recommendations)
	}
}
