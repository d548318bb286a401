// Package fraud scores insurance claims for fraud indicators using
// additive weighted rules over amounts, demographics, injuries, and
// claim-note text, plus portfolio-level organized fraud detection.
// Tenant-defined CEL rules extend the built-in set.
package fraud

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/litigation"
)

// Hardcoded severity gates of the injury and narrative rules.
const (
	severeInjuryMinIncurred = 10000.0
	softTissueMinIncurred   = 5000.0
	thirdPartyMinIncurred   = 25000.0
	weatherMinIncurred      = 10000.0
	weatherWeight           = 0.1
	anomalyBlend            = 0.3
	maxRankedClaims         = 50
)

// Score is the per-claim fraud assessment.
type Score struct {
	ClaimID          string   `json:"claim_id"`
	FraudProbability float64  `json:"fraud_probability"`
	RiskFactors      []string `json:"risk_factors"`
	AnomalyScore     float64  `json:"anomaly_score"`
	RedFlags         []string `json:"red_flags"`
}

// Summary aggregates the scored portfolio. High risk is probability
// above 0.7, medium is (0.3, 0.7], flagged is anything above 0.3.
type Summary struct {
	TotalClaims       int     `json:"total_claims"`
	HighRiskClaims    int     `json:"high_risk_claims"`
	MediumRiskClaims  int     `json:"medium_risk_claims"`
	FlaggedClaims     int     `json:"flagged_claims"`
	AverageFraudScore float64 `json:"average_fraud_score"`
}

// Result is the full fraud analysis output. FraudScores and
// RankedClaims both hold the top claims by probability; the summary
// covers every scored claim.
type Result struct {
	Error                    string          `json:"error,omitempty"`
	FraudScores              []Score         `json:"fraud_scores"`
	RankedClaims             []Score         `json:"ranked_claims"`
	OrganizedFraudIndicators *OrganizedFraud `json:"organized_fraud_indicators"`
	Summary                  Summary         `json:"summary"`
}

// Scorer evaluates claims against the configured rule set.
type Scorer struct {
	cfg   domain.FraudConfig
	rules *RuleSet

	// now supplies the current year for vehicle-age rules.
	now func() time.Time
}

// NewScorer builds a scorer with the config normalized against the
// defaults. rules may be nil.
func NewScorer(cfg domain.FraudConfig, rules *RuleSet) *Scorer {
	return &Scorer{
		cfg:   cfg.Normalize(),
		rules: rules,
		now:   time.Now,
	}
}

// ScoreClaim evaluates one claim. Rules fire independently; their
// weights accumulate and the probability is capped at 1.0.
func (s *Scorer) ScoreClaim(rec domain.ClaimRecord) Score {
	var riskFactors, redFlags []string
	score := 0.0

	paid := rec.Float("paidtotal")
	incurred := rec.Float("totalincurred")

	if paid > 0 && math.Mod(paid, s.cfg.AmountThresholds.Low) == 0 {
		riskFactors = append(riskFactors, "round_number_amount")
		redFlags = append(redFlags, fmt.Sprintf("Round number amount: $%s", formatAmount(paid)))
		score += s.cfg.ScoreWeights.AmountAnomaly
	}
	if paid > s.cfg.AmountThresholds.High {
		riskFactors = append(riskFactors, "moderately_high_amount")
		redFlags = append(redFlags, fmt.Sprintf("High claim amount: $%s", formatAmount(paid)))
		score += s.cfg.ScoreWeights.AmountAnomaly
	}
	if paid > s.cfg.AmountThresholds.VeryHigh {
		riskFactors = append(riskFactors, "unusually_high_amount")
		redFlags = append(redFlags, fmt.Sprintf("Very high claim amount: $%s", formatAmount(paid)))
		score += s.cfg.ScoreWeights.AmountAnomaly
	}

	if incurred > 0 {
		medShare := rec.Float("medpdtotal") / incurred
		if medShare > s.cfg.Ratios.MedicalShareHigh && incurred > s.cfg.AmountThresholds.Medium {
			riskFactors = append(riskFactors, "high_medical_share")
			redFlags = append(redFlags, fmt.Sprintf("High medical share: %.2f", medShare))
			score += s.cfg.ScoreWeights.RatioAnomaly
		}
	}

	if age := rec.Int("driverage"); age != 0 &&
		(age < s.cfg.AgeThresholds.YoungDriver || age > s.cfg.AgeThresholds.SeniorDriver) {
		riskFactors = append(riskFactors, "high_risk_driver_age")
		redFlags = append(redFlags, fmt.Sprintf("High-risk driver age: %d", age))
		score += s.cfg.ScoreWeights.DemographicAnomaly
	}

	if vehicleYear := rec.Int("vehicleyear"); vehicleYear != 0 {
		vehicleAge := s.now().UTC().Year() - vehicleYear
		if vehicleAge < 0 {
			vehicleAge = 0
		}
		if vehicleAge < s.cfg.VehicleThresholds.NewVehicle && incurred > s.cfg.AmountThresholds.High {
			riskFactors = append(riskFactors, "new_vehicle_high_severity")
			redFlags = append(redFlags, fmt.Sprintf("High severity on new vehicle (age %d)", vehicleAge))
			score += s.cfg.ScoreWeights.PatternAnomaly
		}
		if vehicleAge > s.cfg.VehicleThresholds.OldVehicle && paid > s.cfg.AmountThresholds.Medium {
			riskFactors = append(riskFactors, "old_vehicle_high_payout")
			redFlags = append(redFlags, fmt.Sprintf("High payout on old vehicle (age %d)", vehicleAge))
			score += s.cfg.ScoreWeights.PatternAnomaly
		}
	}

	bodyPart := strings.ToUpper(rec.Str("bodypartproductcode"))
	lossType := strings.ToUpper(rec.Str("losstype"))
	injuryDesc := strings.ToLower(rec.Str("injurydescription"))

	if (severeBodyParts[bodyPart] || containsAny(injuryDesc, severeInjuryTerms)) &&
		incurred > severeInjuryMinIncurred {
		riskFactors = append(riskFactors, "severe_injury_high_cost")
		redFlags = append(redFlags, "Severe injury with high cost")
		score += s.cfg.ScoreWeights.SevereInjury
	}

	if containsAny(injuryDesc, softTissueTerms) && incurred > softTissueMinIncurred {
		riskFactors = append(riskFactors, "soft_tissue_high_cost")
		redFlags = append(redFlags, "Soft tissue injury with high cost")
		score += s.cfg.ScoreWeights.SoftTissue
	}

	if strings.Contains(lossType, "3PTY") && incurred > thirdPartyMinIncurred {
		riskFactors = append(riskFactors, "third_party_bi_high_severity")
		redFlags = append(redFlags, "High-severity third-party BI claim")
		score += s.cfg.ScoreWeights.ThirdPartyBI
	}

	text := claims.Text(rec, "note_text", "lossdescription", "injurydescription")

	if containsAny(text, fraudKeywords) {
		riskFactors = append(riskFactors, "fraud_keywords")
		redFlags = append(redFlags, "Fraud-related keywords in notes")
		score += s.cfg.ScoreWeights.KeywordMatch
	}
	if containsAny(text, litigation.Keywords) {
		riskFactors = append(riskFactors, "litigation_keywords")
		redFlags = append(redFlags, "Litigation keywords in notes")
		score += s.cfg.ScoreWeights.KeywordMatch
	}
	if containsAny(text, totalLossTerms) {
		riskFactors = append(riskFactors, "total_loss_language")
		redFlags = append(redFlags, "Total loss language")
		score += s.cfg.ScoreWeights.TotalLoss
	}
	if containsAny(text, weatherTerms) && incurred > weatherMinIncurred {
		riskFactors = append(riskFactors, "severe_weather_high_cost")
		redFlags = append(redFlags, "Weather narrative with high cost")
		score += weatherWeight
	}

	anomaly := anomalyScore(paid, incurred)
	if anomaly > 0 {
		riskFactors = append(riskFactors, "paid_incurred_ratio_anomaly")
		redFlags = append(redFlags, fmt.Sprintf("Unusual paid/incurred ratio: %.2f", anomaly))
	}
	score += anomaly * anomalyBlend

	if s.rules != nil {
		hits := s.rules.Evaluate(rec, paid, incurred, text)
		for _, hit := range hits {
			riskFactors = append(riskFactors, "custom_rule:"+hit.Name)
			redFlags = append(redFlags, hit.Flag)
			score += hit.Weight
		}
	}

	return Score{
		ClaimID:          claimID(rec),
		FraudProbability: math.Min(1.0, score),
		RiskFactors:      riskFactors,
		AnomalyScore:     anomaly,
		RedFlags:         redFlags,
	}
}

// anomalyScore measures how far the paid/incurred ratio sits from the
// expected 0.75, only once the ratio leaves the plausible [0.3, 1.0]
// band.
func anomalyScore(paid, incurred float64) float64 {
	if incurred <= 0 {
		return 0
	}
	ratio := paid / incurred
	if ratio > 1.0 || ratio < 0.3 {
		return math.Min(1.0, math.Abs(ratio-0.75)*2.0)
	}
	return 0
}

func claimID(rec domain.ClaimRecord) string {
	if id := rec.Str("claimnumber"); id != "" {
		return id
	}
	if id := rec.Str("claim_number"); id != "" {
		return id
	}
	return "unknown"
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// formatAmount renders a dollar amount with thousands separators and
// no decimals.
func formatAmount(v float64) string {
	neg := v < 0
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// ScoreFraud scores every claim in the table, ranks them by
// probability, and detects organized fraud patterns. Never panics past
// this boundary.
func ScoreFraud(table domain.ClaimsTable, cfg domain.FraudConfig, rules *RuleSet) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{
				Error:                    fmt.Sprintf("failed to analyze fraud risk: %v", r),
				FraudScores:              []Score{},
				RankedClaims:             []Score{},
				OrganizedFraudIndicators: &OrganizedFraud{Indicators: []OrganizedIndicator{}},
			}
		}
	}()

	if len(table) == 0 {
		return &Result{
			FraudScores:              []Score{},
			RankedClaims:             []Score{},
			OrganizedFraudIndicators: &OrganizedFraud{Indicators: []OrganizedIndicator{}},
		}
	}

	scorer := NewScorer(cfg, rules)

	all := make([]Score, 0, len(table))
	for _, rec := range table {
		all = append(all, scorer.ScoreClaim(rec))
	}

	ranked := make([]Score, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FraudProbability > ranked[j].FraudProbability
	})
	if len(ranked) > maxRankedClaims {
		ranked = ranked[:maxRankedClaims]
	}

	var sum float64
	var high, medium, flagged int
	for _, sc := range all {
		sum += sc.FraudProbability
		switch {
		case sc.FraudProbability > 0.7:
			high++
		case sc.FraudProbability > 0.3:
			medium++
		}
		if sc.FraudProbability > 0.3 {
			flagged++
		}
	}

	return &Result{
		FraudScores:              ranked,
		RankedClaims:             ranked,
		OrganizedFraudIndicators: DetectOrganizedFraud(table, all),
		Summary: Summary{
			TotalClaims:       len(all),
			HighRiskClaims:    high,
			MediumRiskClaims:  medium,
			FlaggedClaims:     flagged,
			AverageFraudScore: sum / float64(len(all)),
		},
	}
}
