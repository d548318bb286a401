package monitor

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testTable() domain.ClaimsTable {
	return domain.ClaimsTable{
		{
			"totalincurred": 10000.0, "paidtotal": 9000.0, "reservetotal": 1000.0,
			"claimstatus": "Open", "lineofbusiness": "AUTO",
			"policyeffectivedate": "2023-01-01", "note_date": "2023-05-01",
		},
		{
			"totalincurred": 10000.0, "paidtotal": 9000.0, "reservetotal": 1000.0,
			"claimstatus": "Open", "lineofbusiness": "AUTO",
			"policyeffectivedate": "2023-01-01", "note_date": "2023-05-01",
		},
		{
			"totalincurred": 10000.0, "paidtotal": 9000.0, "reservetotal": 1000.0,
			"claimstatus": "Closed", "lineofbusiness": "PROP",
			"policyeffectivedate": "2024-01-01", "note_date": "2024-04-30",
		},
		{
			"totalincurred": 10000.0, "paidtotal": 9000.0, "reservetotal": 1000.0,
			"claimstatus": "Settled", "lineofbusiness": "PROP",
			"policyeffectivedate": "2023-06-01", "note_date": "2023-09-29",
		},
	}
}

func frozenMonitor() *Monitor {
	m := NewMonitor(domain.MonitoringConfig{})
	m.now = func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return m
}

func findKPI(t *testing.T, kpis []KPI, name string) KPI {
	t.Helper()
	for _, k := range kpis {
		if k.Name == name {
			return k
		}
	}
	t.Fatalf("KPI %q missing", name)
	return KPI{}
}

func TestMonitorDevelopmentKPIs(t *testing.T) {
	res := frozenMonitor().MonitorDevelopment(testTable())
	if res.Error != "" {
		t.Fatalf("MonitorDevelopment error: %s", res.Error)
	}

	if len(res.KPIs) != 8 {
		t.Fatalf("kpis = %d, want 8", len(res.KPIs))
	}

	lr := findKPI(t, res.KPIs, "loss_ratio")
	if !almostEqual(lr.CurrentValue, 0.9) {
		t.Errorf("loss_ratio = %v, want 0.9", lr.CurrentValue)
	}
	if lr.Status != "above_threshold" {
		t.Errorf("loss_ratio status = %q", lr.Status)
	}
	if lr.TargetValue != 0.65 || lr.ThresholdUpper != 0.8 {
		t.Errorf("loss_ratio band = %v/%v", lr.TargetValue, lr.ThresholdUpper)
	}

	pr := findKPI(t, res.KPIs, "payment_ratio")
	if pr.Status != "normal" {
		t.Errorf("payment_ratio status = %q at %v", pr.Status, pr.CurrentValue)
	}

	rr := findKPI(t, res.KPIs, "reserve_ratio")
	if !almostEqual(rr.CurrentValue, 0.1) || rr.Status != "normal" {
		t.Errorf("reserve_ratio = %v status %q", rr.CurrentValue, rr.Status)
	}

	sev := findKPI(t, res.KPIs, "avg_severity")
	if sev.CurrentValue != 10000 || sev.Status != "above_threshold" {
		t.Errorf("avg_severity = %v status %q", sev.CurrentValue, sev.Status)
	}
	if sev.ThresholdUpper != 7500 || sev.ThresholdLower != 2500 {
		t.Errorf("avg_severity band = %v/%v", sev.ThresholdUpper, sev.ThresholdLower)
	}

	freq := findKPI(t, res.KPIs, "claim_frequency")
	if freq.CurrentValue != 4 || freq.Status != "below_threshold" {
		t.Errorf("claim_frequency = %v status %q", freq.CurrentValue, freq.Status)
	}

	large := findKPI(t, res.KPIs, "large_claims_percentage")
	if large.CurrentValue != 0 || large.Status != "normal" {
		t.Errorf("large_claims_percentage = %v status %q", large.CurrentValue, large.Status)
	}

	open := findKPI(t, res.KPIs, "open_claims_ratio")
	if !almostEqual(open.CurrentValue, 50) || open.Status != "normal" {
		t.Errorf("open_claims_ratio = %v status %q", open.CurrentValue, open.Status)
	}

	delay := findKPI(t, res.KPIs, "avg_reporting_delay_days")
	if !almostEqual(delay.CurrentValue, 120) || delay.Status != "above_threshold" {
		t.Errorf("avg_reporting_delay_days = %v status %q", delay.CurrentValue, delay.Status)
	}
}

func TestMonitorDevelopmentAlerts(t *testing.T) {
	res := frozenMonitor().MonitorDevelopment(testTable())
	if res.Error != "" {
		t.Fatalf("MonitorDevelopment error: %s", res.Error)
	}

	// loss_ratio, avg_severity, and avg_reporting_delay_days breach
	// their upper thresholds.
	if len(res.Alerts) != 3 {
		t.Fatalf("alerts = %d, want 3: %+v", len(res.Alerts), res.Alerts)
	}

	a := res.Alerts[0]
	if a.AlertID != "kpi_loss_ratio_20260601_120000" {
		t.Errorf("alert_id = %q", a.AlertID)
	}
	if a.AlertType != "kpi_threshold" || a.Severity != "warning" {
		t.Errorf("alert type/severity = %q/%q", a.AlertType, a.Severity)
	}
	if !strings.Contains(a.Message, "loss_ratio exceeded threshold: 0.900 > 0.800") {
		t.Errorf("message = %q", a.Message)
	}
	if a.DataContext["kpi_name"] != "loss_ratio" {
		t.Errorf("data_context = %v", a.DataContext)
	}
}

func TestMonitorDevelopmentDashboard(t *testing.T) {
	res := frozenMonitor().MonitorDevelopment(testTable())
	if res.Error != "" {
		t.Fatalf("MonitorDevelopment error: %s", res.Error)
	}
	dm := res.DashboardMetrics
	if dm == nil {
		t.Fatal("dashboard_metrics missing")
	}

	ss := dm.SummaryStatistics
	if ss.TotalClaims != 4 || ss.TotalIncurred != 40000 || ss.TotalPaid != 36000 || ss.TotalReserves != 4000 {
		t.Errorf("summary_statistics = %+v", ss)
	}
	if ss.AvgClaimSize != 10000 || ss.MedianClaimSize != 10000 || ss.MaxClaimSize != 10000 {
		t.Errorf("claim size stats = %+v", ss)
	}

	cd := dm.ClaimDistribution
	if cd == nil || cd.SmallClaims0To10K != 4 || cd.MediumClaims10KTo50K != 0 {
		t.Errorf("claim_distribution = %+v", cd)
	}
	if cd.Percentiles["50th"] != 10000 {
		t.Errorf("median percentile = %v", cd.Percentiles["50th"])
	}

	auto := dm.LineOfBusinessAnalysis["AUTO"]
	if auto.ClaimCount != 2 || auto.TotalIncurred != 20000 || !almostEqual(auto.PercentageOfTotal, 50) {
		t.Errorf("AUTO lob = %+v", auto)
	}

	ta := dm.TemporalAnalysis
	if ta == nil {
		t.Fatal("temporal_analysis missing")
	}
	if ta.TrendAnalysis.YearsCovered != 2 || ta.TrendAnalysis.MostActiveYear != "2023" {
		t.Errorf("trend_analysis = %+v", ta.TrendAnalysis)
	}
	if ta.ByAccidentYear["2023"].ClaimCount != 3 || ta.ByAccidentYear["2023"].AvgSeverity != 10000 {
		t.Errorf("2023 stats = %+v", ta.ByAccidentYear["2023"])
	}

	sb := dm.StatusBreakdown
	if sb == nil {
		t.Fatal("status_breakdown missing")
	}
	if sb.OpenVsClosed.OpenClaims != 2 || sb.OpenVsClosed.ClosedClaims != 1 {
		t.Errorf("open_vs_closed = %+v", sb.OpenVsClosed)
	}
	if !almostEqual(sb.OpenVsClosed.OpenPercentage, 50) {
		t.Errorf("open_percentage = %v", sb.OpenVsClosed.OpenPercentage)
	}
	if sb.StatusDistribution["Settled"].Count != 1 {
		t.Errorf("status_distribution = %+v", sb.StatusDistribution)
	}

	pi := dm.PerformanceIndicators
	if !almostEqual(pi.ClaimsPerDay, 4.0/30.0) {
		t.Errorf("claims_per_day = %v", pi.ClaimsPerDay)
	}
	if pi.AvgReservePerClaim != 1000 {
		t.Errorf("avg_reserve_per_claim = %v", pi.AvgReservePerClaim)
	}
	// Closed and Settled both count toward settlement.
	if !almostEqual(pi.SettlementRate, 50) {
		t.Errorf("settlement_rate = %v", pi.SettlementRate)
	}
}

func TestMonitorDevelopmentEmpty(t *testing.T) {
	res := MonitorDevelopment(nil, domain.MonitoringConfig{})
	if res.Error != "" {
		t.Fatalf("empty input must not error: %s", res.Error)
	}
	if res.Summary == nil || res.Summary.KPIStatus != "No data" {
		t.Errorf("summary = %+v", res.Summary)
	}
	if len(res.KPIs) != 0 || len(res.Alerts) != 0 {
		t.Error("empty input must produce no KPIs or alerts")
	}
	if res.DashboardMetrics != nil {
		t.Error("dashboard_metrics must be omitted without data")
	}
}

func TestMonitorDevelopmentDateAlias(t *testing.T) {
	table := domain.ClaimsTable{
		{
			"totalincurred": 1000.0, "paidtotal": 500.0,
			"policyeffectivedate": "2023-01-01", "lossdate": "2023-03-02",
		},
	}

	res := frozenMonitor().MonitorDevelopment(table)
	if res.Error != "" {
		t.Fatalf("MonitorDevelopment error: %s", res.Error)
	}
	delay := findKPI(t, res.KPIs, "avg_reporting_delay_days")
	if !almostEqual(delay.CurrentValue, 60) {
		t.Errorf("avg_reporting_delay_days = %v, want 60", delay.CurrentValue)
	}
}

func TestMonitorDevelopmentWithoutFinancialColumns(t *testing.T) {
	table := domain.ClaimsTable{
		{"claimnumber": "A"},
		{"claimnumber": "B"},
	}

	res := frozenMonitor().MonitorDevelopment(table)
	if res.Error != "" {
		t.Fatalf("MonitorDevelopment error: %s", res.Error)
	}
	// Only the operational claim_frequency KPI applies.
	if len(res.KPIs) != 1 || res.KPIs[0].Name != "claim_frequency" {
		t.Errorf("kpis = %+v", res.KPIs)
	}
}
