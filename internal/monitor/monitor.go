// Package monitor tracks actuarial KPIs over a claims portfolio,
// raises threshold alerts, and builds the oversight dashboard metrics.
package monitor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/stats"
)

// KPI is a tracked indicator with its target band and current status.
type KPI struct {
	Name           string  `json:"name"`
	CurrentValue   float64 `json:"current_value"`
	TargetValue    float64 `json:"target_value"`
	ThresholdUpper float64 `json:"threshold_upper"`
	ThresholdLower float64 `json:"threshold_lower"`
	Status         string  `json:"status"`
	Trend          string  `json:"trend"`
}

// Alert is raised for every KPI above its upper threshold.
type Alert struct {
	AlertID     string         `json:"alert_id"`
	AlertType   string         `json:"alert_type"`
	Severity    string         `json:"severity"`
	Message     string         `json:"message"`
	TriggeredAt string         `json:"triggered_at"`
	DataContext map[string]any `json:"data_context"`
}

// SummaryStatistics are the headline portfolio totals.
type SummaryStatistics struct {
	TotalClaims     int     `json:"total_claims"`
	TotalIncurred   float64 `json:"total_incurred"`
	TotalPaid       float64 `json:"total_paid"`
	TotalReserves   float64 `json:"total_reserves"`
	AvgClaimSize    float64 `json:"avg_claim_size"`
	MedianClaimSize float64 `json:"median_claim_size"`
	MaxClaimSize    float64 `json:"max_claim_size"`
}

// ClaimDistribution buckets claims by incurred amount.
type ClaimDistribution struct {
	SmallClaims0To10K       int                `json:"small_claims_0_10k"`
	MediumClaims10KTo50K    int                `json:"medium_claims_10k_50k"`
	LargeClaims50KTo100K    int                `json:"large_claims_50k_100k"`
	VeryLargeClaims100KPlus int                `json:"very_large_claims_100k_plus"`
	Percentiles             map[string]float64 `json:"percentiles"`
}

// LOBStats summarizes one line of business.
type LOBStats struct {
	ClaimCount        int     `json:"claim_count"`
	TotalIncurred     float64 `json:"total_incurred"`
	AvgSeverity       float64 `json:"avg_severity"`
	PercentageOfTotal float64 `json:"percentage_of_total"`
}

// YearStats summarizes one accident year.
type YearStats struct {
	ClaimCount    int     `json:"claim_count"`
	TotalIncurred float64 `json:"total_incurred"`
	AvgSeverity   float64 `json:"avg_severity"`
}

// TrendAnalysis covers the accident-year spread.
type TrendAnalysis struct {
	YearsCovered   int    `json:"years_covered"`
	MostActiveYear string `json:"most_active_year,omitempty"`
}

// TemporalAnalysis groups claims by policy-derived accident year.
type TemporalAnalysis struct {
	ByAccidentYear map[string]YearStats `json:"by_accident_year"`
	TrendAnalysis  TrendAnalysis        `json:"trend_analysis"`
}

// StatusCount is one claim status with its portfolio share.
type StatusCount struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// OpenVsClosed splits the portfolio by lifecycle state.
type OpenVsClosed struct {
	OpenClaims     int     `json:"open_claims"`
	ClosedClaims   int     `json:"closed_claims"`
	OpenPercentage float64 `json:"open_percentage"`
}

// StatusBreakdown covers the claim status mix.
type StatusBreakdown struct {
	StatusDistribution map[string]StatusCount `json:"status_distribution"`
	OpenVsClosed       OpenVsClosed           `json:"open_vs_closed"`
}

// PerformanceIndicators are throughput-oriented metrics.
type PerformanceIndicators struct {
	ClaimsPerDay       float64 `json:"claims_per_day"`
	AvgReservePerClaim float64 `json:"avg_reserve_per_claim"`
	SettlementRate     float64 `json:"settlement_rate"`
}

// DashboardMetrics is the full oversight dashboard payload.
type DashboardMetrics struct {
	SummaryStatistics      SummaryStatistics     `json:"summary_statistics"`
	ClaimDistribution      *ClaimDistribution    `json:"claim_distribution,omitempty"`
	LineOfBusinessAnalysis map[string]LOBStats   `json:"line_of_business_analysis,omitempty"`
	TemporalAnalysis       *TemporalAnalysis     `json:"temporal_analysis,omitempty"`
	StatusBreakdown        *StatusBreakdown      `json:"status_breakdown,omitempty"`
	PerformanceIndicators  PerformanceIndicators `json:"performance_indicators"`
}

// Summary is returned instead of metrics when there is no data or the
// run fails.
type Summary struct {
	TotalAlerts    int    `json:"total_alerts"`
	CriticalAlerts int    `json:"critical_alerts"`
	KPIStatus      string `json:"kpi_status"`
}

// Result is the monitor_development output.
type Result struct {
	Error            string            `json:"error,omitempty"`
	Alerts           []Alert           `json:"alerts"`
	KPIs             []KPI             `json:"kpis"`
	DashboardMetrics *DashboardMetrics `json:"dashboard_metrics,omitempty"`
	Summary          *Summary          `json:"summary,omitempty"`
}

const largeClaimsThreshold = 50000

// Monitor evaluates KPIs against the configured thresholds and targets.
type Monitor struct {
	cfg domain.MonitoringConfig
	now func() time.Time
}

// NewMonitor builds a monitor with the config normalized against the
// defaults.
func NewMonitor(cfg domain.MonitoringConfig) *Monitor {
	return &Monitor{cfg: cfg.Normalize(), now: time.Now}
}

// MonitorDevelopment computes the KPI set, threshold alerts, and
// dashboard metrics for one claims snapshot.
func MonitorDevelopment(table domain.ClaimsTable, cfg domain.MonitoringConfig) *Result {
	return NewMonitor(cfg).MonitorDevelopment(table)
}

// MonitorDevelopment implements the monitoring run. An empty snapshot
// returns an empty report rather than an error.
func (m *Monitor) MonitorDevelopment(table domain.ClaimsTable) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{
				Error:   fmt.Sprintf("monitoring failed: %v", r),
				Alerts:  []Alert{},
				KPIs:    []KPI{},
				Summary: &Summary{KPIStatus: "Error"},
			}
		}
	}()

	if len(table) == 0 {
		return &Result{
			Alerts:  []Alert{},
			KPIs:    []KPI{},
			Summary: &Summary{KPIStatus: "No data"},
		}
	}

	rows, err := claims.Normalize(table)
	if err != nil {
		return &Result{
			Error:   fmt.Sprintf("monitoring failed: %s", err),
			Alerts:  []Alert{},
			KPIs:    []KPI{},
			Summary: &Summary{KPIStatus: "Error"},
		}
	}

	kpis := m.calculateKPIs(rows)
	alerts := m.checkAlerts(kpis)

	return &Result{
		Alerts:           alerts,
		KPIs:             kpis,
		DashboardMetrics: dashboardMetrics(rows),
	}
}

func (m *Monitor) calculateKPIs(table domain.ClaimsTable) []KPI {
	kpis := []KPI{}

	hasIncurred := table.HasColumn("totalincurred")
	hasPaid := table.HasColumn("paidtotal")

	if hasIncurred && hasPaid {
		totalIncurred := columnSum(table, "totalincurred")
		totalPaid := columnSum(table, "paidtotal")
		totalReserves := 0.0
		if table.HasColumn("reservetotal") {
			totalReserves = columnSum(table, "reservetotal")
		}

		lossRatio := 0.0
		if totalIncurred > 0 {
			lossRatio = totalPaid / totalIncurred
		}
		kpis = append(kpis, KPI{
			Name:           "loss_ratio",
			CurrentValue:   lossRatio,
			TargetValue:    m.cfg.KPITargets.LossRatio,
			ThresholdUpper: m.cfg.AlertThresholds.LossRatio,
			ThresholdLower: 0.4,
			Status:         aboveOrNormal(lossRatio, m.cfg.AlertThresholds.LossRatio),
			Trend:          "stable",
		})

		kpis = append(kpis, KPI{
			Name:           "payment_ratio",
			CurrentValue:   lossRatio,
			TargetValue:    0.75,
			ThresholdUpper: 0.95,
			ThresholdLower: 0.50,
			Status:         aboveOrNormal(lossRatio, 0.95),
			Trend:          "stable",
		})

		reserveRatio := 0.0
		if totalIncurred > 0 {
			reserveRatio = totalReserves / totalIncurred
		}
		kpis = append(kpis, KPI{
			Name:           "reserve_ratio",
			CurrentValue:   reserveRatio,
			TargetValue:    0.25,
			ThresholdUpper: 0.50,
			ThresholdLower: 0.10,
			Status:         bandStatus(reserveRatio, 0.50, 0.10),
			Trend:          "stable",
		})

		avgSeverity := columnMean(table, "totalincurred")
		kpis = append(kpis, KPI{
			Name:           "avg_severity",
			CurrentValue:   avgSeverity,
			TargetValue:    m.cfg.KPITargets.AvgSeverity,
			ThresholdUpper: m.cfg.KPITargets.AvgSeverity * 1.5,
			ThresholdLower: m.cfg.KPITargets.AvgSeverity * 0.5,
			Status:         aboveOrNormal(avgSeverity, m.cfg.KPITargets.AvgSeverity*1.5),
			Trend:          "stable",
		})
	}

	claimCount := float64(len(table))
	kpis = append(kpis, KPI{
		Name:           "claim_frequency",
		CurrentValue:   claimCount,
		TargetValue:    100.0,
		ThresholdUpper: 200.0,
		ThresholdLower: 50.0,
		Status:         bandStatus(claimCount, 200, 50),
		Trend:          "stable",
	})

	if hasIncurred {
		large := 0
		for _, rec := range table {
			if rec.Float("totalincurred") > largeClaimsThreshold {
				large++
			}
		}
		largePct := float64(large) / float64(len(table)) * 100
		kpis = append(kpis, KPI{
			Name:           "large_claims_percentage",
			CurrentValue:   largePct,
			TargetValue:    5.0,
			ThresholdUpper: 15.0,
			ThresholdLower: 1.0,
			Status:         aboveOrNormal(largePct, 15.0),
			Trend:          "stable",
		})
	}

	if table.HasColumn("claimstatus") {
		open := 0
		for _, rec := range table {
			if strings.EqualFold(rec.Str("claimstatus"), "open") {
				open++
			}
		}
		openPct := float64(open) / float64(len(table)) * 100
		kpis = append(kpis, KPI{
			Name:           "open_claims_ratio",
			CurrentValue:   openPct,
			TargetValue:    30.0,
			ThresholdUpper: 60.0,
			ThresholdLower: 10.0,
			Status:         aboveOrNormal(openPct, 60.0),
			Trend:          "stable",
		})
	}

	if table.HasColumn("policyeffectivedate") && table.HasColumn("note_date") {
		var delays []float64
		for _, rec := range table {
			policy, ok1 := rec.Date("policyeffectivedate")
			report, ok2 := rec.Date("note_date")
			if ok1 && ok2 {
				delays = append(delays, math.Floor(report.Sub(policy).Hours()/24))
			}
		}
		if len(delays) > 0 {
			avgDelay := stats.Mean(delays)
			kpis = append(kpis, KPI{
				Name:           "avg_reporting_delay_days",
				CurrentValue:   avgDelay,
				TargetValue:    30.0,
				ThresholdUpper: 90.0,
				ThresholdLower: 5.0,
				Status:         aboveOrNormal(avgDelay, 90.0),
				Trend:          "stable",
			})
		}
	}

	return kpis
}

func (m *Monitor) checkAlerts(kpis []KPI) []Alert {
	alerts := []Alert{}
	now := m.now()

	for _, kpi := range kpis {
		if kpi.Status != "above_threshold" {
			continue
		}
		alerts = append(alerts, Alert{
			AlertID:     fmt.Sprintf("kpi_%s_%s", kpi.Name, now.Format("20060102_150405")),
			AlertType:   "kpi_threshold",
			Severity:    "warning",
			Message:     fmt.Sprintf("KPI %s exceeded threshold: %.3f > %.3f", kpi.Name, kpi.CurrentValue, kpi.ThresholdUpper),
			TriggeredAt: now.Format(time.RFC3339),
			DataContext: map[string]any{
				"kpi_name":  kpi.Name,
				"current":   kpi.CurrentValue,
				"threshold": kpi.ThresholdUpper,
			},
		})
	}

	return alerts
}

func dashboardMetrics(table domain.ClaimsTable) *DashboardMetrics {
	metrics := &DashboardMetrics{
		SummaryStatistics:      summaryStatistics(table),
		ClaimDistribution:      claimDistribution(table),
		LineOfBusinessAnalysis: lineOfBusinessAnalysis(table),
		TemporalAnalysis:       temporalAnalysis(table),
		StatusBreakdown:        statusBreakdown(table),
	}

	if len(table) > 0 {
		// A 30-day reporting window is assumed for throughput.
		metrics.PerformanceIndicators.ClaimsPerDay = float64(len(table)) / 30
	}
	if table.HasColumn("reservetotal") {
		metrics.PerformanceIndicators.AvgReservePerClaim = columnMean(table, "reservetotal")
	}
	metrics.PerformanceIndicators.SettlementRate = settlementRate(table)

	return metrics
}

func summaryStatistics(table domain.ClaimsTable) SummaryStatistics {
	s := SummaryStatistics{TotalClaims: len(table)}

	if table.HasColumn("totalincurred") {
		incurred := columnValues(table, "totalincurred")
		s.TotalIncurred = stats.Sum(incurred)
		s.AvgClaimSize = stats.Mean(incurred)
		s.MedianClaimSize = stats.Median(incurred)
		s.MaxClaimSize = stats.Max(incurred)
	}
	if table.HasColumn("paidtotal") {
		s.TotalPaid = columnSum(table, "paidtotal")
	}
	if table.HasColumn("reservetotal") {
		s.TotalReserves = columnSum(table, "reservetotal")
	}

	return s
}

func claimDistribution(table domain.ClaimsTable) *ClaimDistribution {
	if !table.HasColumn("totalincurred") || len(table) == 0 {
		return nil
	}

	amounts := columnValues(table, "totalincurred")

	d := &ClaimDistribution{
		Percentiles: map[string]float64{
			"25th": stats.Percentile(amounts, 25),
			"50th": stats.Percentile(amounts, 50),
			"75th": stats.Percentile(amounts, 75),
			"90th": stats.Percentile(amounts, 90),
			"95th": stats.Percentile(amounts, 95),
		},
	}
	for _, v := range amounts {
		switch {
		case v <= 10000:
			d.SmallClaims0To10K++
		case v <= 50000:
			d.MediumClaims10KTo50K++
		case v <= 100000:
			d.LargeClaims50KTo100K++
		default:
			d.VeryLargeClaims100KPlus++
		}
	}

	return d
}

func lineOfBusinessAnalysis(table domain.ClaimsTable) map[string]LOBStats {
	if !table.HasColumn("lineofbusiness") || len(table) == 0 {
		return nil
	}

	byLOB := map[string][]float64{}
	counts := map[string]int{}
	for _, rec := range table {
		if !rec.Has("lineofbusiness") {
			continue
		}
		lob := rec.Str("lineofbusiness")
		counts[lob]++
		if rec.Has("totalincurred") {
			byLOB[lob] = append(byLOB[lob], rec.Float("totalincurred"))
		}
	}

	out := make(map[string]LOBStats, len(counts))
	for lob, n := range counts {
		out[lob] = LOBStats{
			ClaimCount:        n,
			TotalIncurred:     stats.Sum(byLOB[lob]),
			AvgSeverity:       stats.Mean(byLOB[lob]),
			PercentageOfTotal: float64(n) / float64(len(table)) * 100,
		}
	}
	return out
}

func temporalAnalysis(table domain.ClaimsTable) *TemporalAnalysis {
	if !table.HasColumn("policyeffectivedate") || len(table) == 0 {
		return nil
	}

	byYear := map[string]YearStats{}
	for _, rec := range table {
		d, ok := rec.Date("policyeffectivedate")
		if !ok {
			continue
		}
		year := strconv.Itoa(d.Year())
		ys := byYear[year]
		ys.ClaimCount++
		if rec.Has("totalincurred") {
			ys.TotalIncurred += rec.Float("totalincurred")
		}
		byYear[year] = ys
	}

	years := make([]string, 0, len(byYear))
	for year, ys := range byYear {
		if ys.ClaimCount > 0 {
			ys.AvgSeverity = ys.TotalIncurred / float64(ys.ClaimCount)
			byYear[year] = ys
		}
		years = append(years, year)
	}
	sort.Strings(years)

	mostActive := ""
	for _, year := range years {
		if mostActive == "" || byYear[year].ClaimCount > byYear[mostActive].ClaimCount {
			mostActive = year
		}
	}

	return &TemporalAnalysis{
		ByAccidentYear: byYear,
		TrendAnalysis: TrendAnalysis{
			YearsCovered:   len(byYear),
			MostActiveYear: mostActive,
		},
	}
}

func statusBreakdown(table domain.ClaimsTable) *StatusBreakdown {
	if !table.HasColumn("claimstatus") || len(table) == 0 {
		return nil
	}

	counts := map[string]int{}
	for _, rec := range table {
		if rec.Has("claimstatus") {
			counts[rec.Str("claimstatus")]++
		}
	}

	total := len(table)
	dist := make(map[string]StatusCount, len(counts))
	for status, n := range counts {
		dist[status] = StatusCount{
			Count:      n,
			Percentage: float64(n) / float64(total) * 100,
		}
	}

	return &StatusBreakdown{
		StatusDistribution: dist,
		OpenVsClosed: OpenVsClosed{
			OpenClaims:     counts["Open"],
			ClosedClaims:   counts["Close"] + counts["Closed"],
			OpenPercentage: float64(counts["Open"]) / float64(total) * 100,
		},
	}
}

// settlementRate is the share of claims whose status reads as closed or
// settled.
func settlementRate(table domain.ClaimsTable) float64 {
	if !table.HasColumn("claimstatus") || len(table) == 0 {
		return 0
	}

	closed := 0
	for _, rec := range table {
		status := strings.ToLower(rec.Str("claimstatus"))
		if strings.Contains(status, "close") || strings.Contains(status, "settled") {
			closed++
		}
	}
	return float64(closed) / float64(len(table)) * 100
}

func aboveOrNormal(value, upper float64) string {
	if value > upper {
		return "above_threshold"
	}
	return "normal"
}

func bandStatus(value, upper, lower float64) string {
	switch {
	case value > upper:
		return "above_threshold"
	case value < lower:
		return "below_threshold"
	default:
		return "normal"
	}
}

func columnValues(table domain.ClaimsTable, key string) []float64 {
	var vals []float64
	for _, rec := range table {
		if rec.Has(key) {
			vals = append(vals, rec.Float(key))
		}
	}
	return vals
}

func columnSum(table domain.ClaimsTable, key string) float64 {
	return stats.Sum(columnValues(table, key))
}

func columnMean(table domain.ClaimsTable, key string) float64 {
	return stats.Mean(columnValues(table, key))
}
