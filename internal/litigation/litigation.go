// Package litigation detects litigation and claim-friction signals in
// claim-note text: generic keyword scoring, strong representation and
// lawsuit signals, and an independent friction classification.
package litigation

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
)

// Signal is the per-claim litigation assessment.
type Signal struct {
	ClaimID         string   `json:"claim_id"`
	HasLitigation   bool     `json:"has_litigation"`
	HasHighFriction bool     `json:"has_high_friction"`
	ConfidenceScore float64  `json:"confidence_score"`
	Indicators      []string `json:"indicators"`
}

// SignalsSummary covers the full scored portfolio.
type SignalsSummary struct {
	TotalClaims                   int     `json:"total_claims"`
	StrictLitigationClaims        int     `json:"strict_litigation_claims"`
	HighFrictionClaims            int     `json:"high_friction_claims"`
	EitherStrictOrHighFriction    int     `json:"either_strict_or_high_friction"`
	LitigationRateStrict          float64 `json:"litigation_rate_strict"`
	LitigationRateBroad           float64 `json:"litigation_rate_broad"`
	AvgLitigationConfidenceStrict float64 `json:"avg_litigation_confidence_strict"`
}

// SignalsResult holds every signal plus the extended summary.
type SignalsResult struct {
	Error   string         `json:"error,omitempty"`
	Signals []Signal       `json:"signals"`
	Summary SignalsSummary `json:"summary"`
}

// DetectSummary is the condensed summary of DetectLitigation.
type DetectSummary struct {
	TotalClaims        int     `json:"total_claims"`
	LitigationClaims   int     `json:"litigation_claims"`
	HighFrictionClaims int     `json:"high_friction_claims"`
	LitigationRate     float64 `json:"litigation_rate"`
	FrictionRate       float64 `json:"friction_rate"`
}

// Result is the DetectLitigation output: flagged claims truncated to
// the configured limit, with portfolio rates over all claims.
type Result struct {
	Error              string        `json:"error,omitempty"`
	LitigationFlags    []Signal      `json:"litigation_flags"`
	HighFrictionClaims []Signal      `json:"high_friction_claims"`
	Summary            DetectSummary `json:"summary"`
}

// Detector scores claims against the configured thresholds.
type Detector struct {
	cfg domain.LitigationConfig
}

// NewDetector builds a detector with the config normalized against the
// defaults.
func NewDetector(cfg domain.LitigationConfig) *Detector {
	return &Detector{cfg: cfg.Normalize()}
}

// Confidence scores a lowercased text blob. Generic keywords add small
// increments; representation and lawsuit signals add the strong weight
// independently. Without a strong signal the score is capped at the
// low threshold; with one, discovery and demand terms add the weak
// weight before the 1.0 cap.
func (d *Detector) Confidence(text string) float64 {
	t := strings.ToLower(text)
	score := 0.0

	for _, kw := range genericKeywords {
		if strings.Contains(t, kw) {
			score += 0.01
		}
	}

	repHit := containsAny(t, repTerms)
	suitHit := containsAny(t, suitTerms)

	if repHit {
		score += d.cfg.ScoreWeights.StrongSignalWeight
	}
	if suitHit {
		score += d.cfg.ScoreWeights.StrongSignalWeight
	}

	if !repHit && !suitHit {
		if score > d.cfg.ConfidenceThresholds.Low {
			return d.cfg.ConfidenceThresholds.Low
		}
		return score
	}

	if containsAny(t, discoveryTerms) {
		score += d.cfg.ScoreWeights.WeakSignalWeight
	}
	if containsAny(t, demandTerms) {
		score += d.cfg.ScoreWeights.WeakSignalWeight
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// ScoreClaim assesses one claim record.
func (d *Detector) ScoreClaim(rec domain.ClaimRecord) Signal {
	text := claims.Text(rec, "claimantname", "note_text", "lossdescription", "injurydescription")

	conf := d.Confidence(text)

	var indicators []string
	for _, kw := range genericKeywords {
		if strings.Contains(text, kw) {
			indicators = append(indicators, kw)
		}
	}

	id := rec.Str("claimnumber")
	if id == "" {
		id = rec.Str("claim_id")
	}

	return Signal{
		ClaimID:         id,
		HasLitigation:   conf > d.cfg.ConfidenceThresholds.High,
		HasHighFriction: containsAny(text, frictionTerms),
		ConfidenceScore: conf,
		Indicators:      indicators,
	}
}

// AnalyzeSignals scores every claim and summarizes strict, broad, and
// friction rates. Never panics past this boundary.
func AnalyzeSignals(table domain.ClaimsTable, cfg domain.LitigationConfig) (res *SignalsResult) {
	defer func() {
		if r := recover(); r != nil {
			res = &SignalsResult{
				Error:   fmt.Sprintf("failed to analyze litigation signals: %v", r),
				Signals: []Signal{},
			}
		}
	}()

	if len(table) == 0 {
		return &SignalsResult{Signals: []Signal{}}
	}

	d := NewDetector(cfg)

	signals := make([]Signal, 0, len(table))
	for _, rec := range table {
		signals = append(signals, d.ScoreClaim(rec))
	}

	var strict, friction, broad int
	var strictConfSum float64
	for _, s := range signals {
		if s.HasLitigation {
			strict++
			strictConfSum += s.ConfidenceScore
		}
		if s.HasHighFriction {
			friction++
		}
		if s.HasLitigation || s.HasHighFriction {
			broad++
		}
	}

	total := len(signals)
	summary := SignalsSummary{
		TotalClaims:                total,
		StrictLitigationClaims:     strict,
		HighFrictionClaims:         friction,
		EitherStrictOrHighFriction: broad,
	}
	if total > 0 {
		summary.LitigationRateStrict = float64(strict) / float64(total)
		summary.LitigationRateBroad = float64(broad) / float64(total)
	}
	if strict > 0 {
		summary.AvgLitigationConfidenceStrict = strictConfSum / float64(strict)
	}

	return &SignalsResult{Signals: signals, Summary: summary}
}

// DetectLitigation filters the analyzed signals down to flagged claims,
// truncated to the configured result limit.
func DetectLitigation(table domain.ClaimsTable, cfg domain.LitigationConfig) *Result {
	analyzed := AnalyzeSignals(table, cfg)
	if analyzed.Error != "" {
		return &Result{
			Error:              analyzed.Error,
			LitigationFlags:    []Signal{},
			HighFrictionClaims: []Signal{},
		}
	}

	limit := cfg.Normalize().Limits.MaxResults

	var litigationFlags, frictionFlags []Signal
	for _, s := range analyzed.Signals {
		if s.HasLitigation {
			litigationFlags = append(litigationFlags, s)
		}
		if s.HasHighFriction {
			frictionFlags = append(frictionFlags, s)
		}
	}

	totalLitigation := len(litigationFlags)
	totalFriction := len(frictionFlags)
	if len(litigationFlags) > limit {
		litigationFlags = litigationFlags[:limit]
	}
	if len(frictionFlags) > limit {
		frictionFlags = frictionFlags[:limit]
	}
	if litigationFlags == nil {
		litigationFlags = []Signal{}
	}
	if frictionFlags == nil {
		frictionFlags = []Signal{}
	}

	summary := DetectSummary{
		TotalClaims:        analyzed.Summary.TotalClaims,
		LitigationClaims:   totalLitigation,
		HighFrictionClaims: totalFriction,
	}
	if summary.TotalClaims > 0 {
		summary.LitigationRate = float64(totalLitigation) / float64(summary.TotalClaims)
		summary.FrictionRate = float64(totalFriction) / float64(summary.TotalClaims)
	}

	return &Result{
		LitigationFlags:    litigationFlags,
		HighFrictionClaims: frictionFlags,
		Summary:            summary,
	}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
