package fraud

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/heron/internal/domain"
)

// OrganizedIndicator is one portfolio-level fraud pattern.
type OrganizedIndicator struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// OrganizedFraud groups portfolio-level indicators.
type OrganizedFraud struct {
	Indicators        []OrganizedIndicator `json:"indicators"`
	TotalIndicators   int                  `json:"total_indicators"`
	HighSeverityCount int                  `json:"high_severity_count"`
}

// Duplicate-amount and cluster gates.
const (
	duplicateMinCount     = 3
	duplicateHighCount    = 5
	duplicateMinAmount    = 1000.0
	fraudClusterMinClaims = 3
	fraudClusterThreshold = 0.7
)

// DetectOrganizedFraud looks for coordinated patterns across the
// portfolio: repeated identical paid amounts and clusters of
// high-probability claims. Indicators are ordered by occurrence count
// descending, then amount.
func DetectOrganizedFraud(table domain.ClaimsTable, scores []Score) *OrganizedFraud {
	indicators := []OrganizedIndicator{}

	if table.HasColumn("paidtotal") {
		counts := make(map[float64]int)
		for _, rec := range table {
			counts[rec.Float("paidtotal")]++
		}

		type amountCount struct {
			amount float64
			count  int
		}
		var repeated []amountCount
		for amount, count := range counts {
			if count >= duplicateMinCount && amount > duplicateMinAmount {
				repeated = append(repeated, amountCount{amount: amount, count: count})
			}
		}
		sort.Slice(repeated, func(i, j int) bool {
			if repeated[i].count != repeated[j].count {
				return repeated[i].count > repeated[j].count
			}
			return repeated[i].amount < repeated[j].amount
		})

		for _, rc := range repeated {
			severity := "medium"
			if rc.count >= duplicateHighCount {
				severity = "high"
			}
			indicators = append(indicators, OrganizedIndicator{
				Type:        "duplicate_amounts",
				Description: fmt.Sprintf("%d claims with identical amount: $%s", rc.count, formatAmount(rc.amount)),
				Severity:    severity,
			})
		}
	}

	highFraud := 0
	for _, s := range scores {
		if s.FraudProbability > fraudClusterThreshold {
			highFraud++
		}
	}
	if highFraud >= fraudClusterMinClaims {
		indicators = append(indicators, OrganizedIndicator{
			Type:        "high_fraud_cluster",
			Description: fmt.Sprintf("%d claims with high fraud probability", highFraud),
			Severity:    "high",
		})
	}

	highSeverity := 0
	for _, ind := range indicators {
		if ind.Severity == "high" {
			highSeverity++
		}
	}

	return &OrganizedFraud{
		Indicators:        indicators,
		TotalIndicators:   len(indicators),
		HighSeverityCount: highSeverity,
	}
}
