package analysis

import (
	"math/rand"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/monitor"
	"github.com/opensource-finance/heron/internal/triangle"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(
		domain.FraudConfig{},
		domain.LitigationConfig{},
		domain.MonitoringConfig{},
		nil,
		rand.New(rand.NewSource(1)),
	)
}

func reserveTable() domain.ClaimsTable {
	return domain.ClaimsTable{
		{"policyeffectivedate": "2021-01-01", "note_date": "2021-02-15", "totalincurred": 1000.0, "paidtotal": 750.0},
		{"policyeffectivedate": "2021-01-01", "note_date": "2022-03-01", "totalincurred": 500.0, "paidtotal": 250.0},
		{"policyeffectivedate": "2022-01-01", "note_date": "2022-02-15", "totalincurred": 2000.0, "paidtotal": 1500.0},
	}
}

func TestRunDispatchesEveryOperation(t *testing.T) {
	e := newTestEngine(t)
	table := reserveTable()

	for _, op := range domain.Operations() {
		result, err := e.Run(op, table)
		if err != nil {
			t.Fatalf("Run(%s): %v", op, err)
		}
		if result == nil {
			t.Fatalf("Run(%s) returned nil result", op)
		}
	}
}

func TestRunUnknownOperation(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Run(domain.Operation("explode"), nil); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestRunBuildTriangles(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Run(domain.OpBuildTriangles, reserveTable())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tri, ok := result.(*triangle.Result)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if tri.Error != "" {
		t.Fatalf("triangle error: %s", tri.Error)
	}
	if tri.IncurredTriangle.Data[2021][1] != 1000 {
		t.Errorf("incurred[2021][1] = %v", tri.IncurredTriangle.Data[2021][1])
	}
}

func TestRunMonitorDevelopment(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Run(domain.OpMonitorDevelopment, reserveTable())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	mon, ok := result.(*monitor.Result)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if mon.Error != "" {
		t.Fatalf("monitor error: %s", mon.Error)
	}
	if len(mon.KPIs) == 0 {
		t.Error("no KPIs computed")
	}
}

func TestRunJSON(t *testing.T) {
	e := newTestEngine(t)

	raw, err := e.RunJSON(domain.OpCalculateReserves, reserveTable())
	if err != nil {
		t.Fatalf("RunJSON: %v", err)
	}

	var payload struct {
		Summary struct {
			TotalIBNRChainLadder float64 `json:"total_ibnr_chain_ladder"`
			RecommendedReserves  float64 `json:"recommended_reserves"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if payload.Summary.RecommendedReserves <= 0 {
		t.Errorf("recommended_reserves = %v, want > 0", payload.Summary.RecommendedReserves)
	}
}
