// Package analysis dispatches named analysis operations to the
// actuarial engines and renders their results for storage and
// transport.
package analysis

import (
	"fmt"
	"math/rand"

	json "github.com/goccy/go-json"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/litigation"
	"github.com/opensource-finance/heron/internal/monitor"
	"github.com/opensource-finance/heron/internal/reserving"
	"github.com/opensource-finance/heron/internal/risk"
	"github.com/opensource-finance/heron/internal/triangle"
)

// Engine runs analysis operations against claims snapshots. It is safe
// for concurrent use; the fraud rule set carries its own lock.
type Engine struct {
	fraudCfg domain.FraudConfig
	litCfg   domain.LitigationConfig
	monCfg   domain.MonitoringConfig
	rules    *fraud.RuleSet
	rng      *rand.Rand
}

// NewEngine builds an engine. rules may be nil when custom fraud rules
// are not loaded; rng may be nil for time-seeded confidence draws.
func NewEngine(fraudCfg domain.FraudConfig, litCfg domain.LitigationConfig, monCfg domain.MonitoringConfig, rules *fraud.RuleSet, rng *rand.Rand) *Engine {
	return &Engine{
		fraudCfg: fraudCfg.Normalize(),
		litCfg:   litCfg.Normalize(),
		monCfg:   monCfg.Normalize(),
		rules:    rules,
		rng:      rng,
	}
}

// Rules exposes the custom fraud rule set for reloads.
func (e *Engine) Rules() *fraud.RuleSet {
	return e.rules
}

// WithConfig derives an engine with per-request config overrides,
// sharing the rule set and random source. Zero-valued fields fall back
// to defaults via Normalize.
func (e *Engine) WithConfig(fraudCfg domain.FraudConfig, litCfg domain.LitigationConfig, monCfg domain.MonitoringConfig) *Engine {
	return &Engine{
		fraudCfg: fraudCfg.Normalize(),
		litCfg:   litCfg.Normalize(),
		monCfg:   monCfg.Normalize(),
		rules:    e.rules,
		rng:      e.rng,
	}
}

// Run executes one operation over the claims table and returns the
// engine-specific result struct.
func (e *Engine) Run(op domain.Operation, table domain.ClaimsTable) (any, error) {
	switch op {
	case domain.OpBuildTriangles:
		return triangle.Build(table), nil
	case domain.OpCalculateReserves:
		return reserving.CalculateReserves(triangle.Build(table), e.rng), nil
	case domain.OpScoreFraud:
		return fraud.ScoreFraud(table, e.fraudCfg, e.rules), nil
	case domain.OpDetectLitigation:
		return litigation.DetectLitigation(table, e.litCfg), nil
	case domain.OpAnalyzeRisk:
		return risk.AnalyzeRiskFactors(table), nil
	case domain.OpMonitorDevelopment:
		return monitor.MonitorDevelopment(table, e.monCfg), nil
	default:
		return nil, fmt.Errorf("unsupported operation: %s", op)
	}
}

// RunJSON executes one operation and marshals the result for storage.
func (e *Engine) RunJSON(op domain.Operation, table domain.ClaimsTable) (json.RawMessage, error) {
	result, err := e.Run(op, table)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal %s result: %w", op, err)
	}
	return raw, nil
}
