package fraud

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/heron/internal/domain"
)

// RuleSet holds tenant-defined CEL red-flag rules, compiled once and
// hot-reloadable from the repository. Rules extend the built-in scorer:
// a triggered rule adds its weight (the 1.0 cap still applies) and its
// flag label.
type RuleSet struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    *domain.FraudRule
	program cel.Program
}

// RuleHit is one triggered custom rule.
type RuleHit struct {
	Name   string
	Weight float64
	Flag   string
}

// NewRuleSet creates an empty rule set with the claim-variable
// environment.
func NewRuleSet() (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("paid", cel.DoubleType),
		cel.Variable("incurred", cel.DoubleType),
		cel.Variable("medical", cel.DoubleType),
		cel.Variable("driver_age", cel.IntType),
		cel.Variable("vehicle_year", cel.IntType),
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &RuleSet{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (rs *RuleSet) ValidateRule(rule *domain.FraudRule) error {
	if rule == nil {
		return fmt.Errorf("fraud rule is required")
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	rs.mu.RLock()
	defer rs.mu.RUnlock()

	_, err := rs.compile(rule)
	return err
}

// LoadRule compiles and loads one rule.
func (rs *RuleSet) LoadRule(rule *domain.FraudRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	compiled, err := rs.compile(rule)
	if err != nil {
		return err
	}
	rs.compiled[rule.ID] = compiled
	return nil
}

// ReloadRules replaces the loaded set with the enabled rules given.
// Used for hot reload from the repository.
func (rs *RuleSet) ReloadRules(rules []*domain.FraudRule) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	next := make(map[string]*compiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := rs.compile(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = compiled
	}
	rs.compiled = next
	return nil
}

// RuleCount returns the number of loaded rules.
func (rs *RuleSet) RuleCount() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.compiled)
}

// Evaluate runs every loaded rule against a claim and returns the hits
// sorted by rule ID for deterministic scoring order. Evaluation errors
// mean the rule simply does not fire.
func (rs *RuleSet) Evaluate(rec domain.ClaimRecord, paid, incurred float64, text string) []RuleHit {
	rs.mu.RLock()
	rules := make([]*compiledRule, 0, len(rs.compiled))
	for _, r := range rs.compiled {
		rules = append(rules, r)
	}
	rs.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].rule.ID < rules[j].rule.ID
	})

	activation := map[string]any{
		"claim":        map[string]any(rec),
		"paid":         paid,
		"incurred":     incurred,
		"medical":      rec.Float("medpdtotal"),
		"driver_age":   rec.Int("driverage"),
		"vehicle_year": rec.Int("vehicleyear"),
		"text":         text,
	}

	var hits []RuleHit
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			continue
		}
		if triggered, ok := out.(types.Bool); ok && bool(triggered) {
			hits = append(hits, RuleHit{
				Name:   r.rule.Name,
				Weight: r.rule.Weight,
				Flag:   r.rule.Flag,
			})
		}
	}
	return hits
}

func (rs *RuleSet) compile(rule *domain.FraudRule) (*compiledRule, error) {
	ast, issues := rs.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := rs.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &compiledRule{rule: rule, program: program}, nil
}
