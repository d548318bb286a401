package domain

import (
	"fmt"
	"time"
)

// FraudConfig tunes the built-in fraud scorer. Callers may send a
// partial config; zero-valued fields fall back to the defaults via
// Normalize. Field names match the JSON override contract.
type FraudConfig struct {
	AmountThresholds  AmountThresholds  `json:"amount_thresholds"`
	ScoreWeights      FraudScoreWeights `json:"score_weights"`
	AgeThresholds     AgeThresholds     `json:"age_thresholds"`
	VehicleThresholds VehicleThresholds `json:"vehicle_thresholds"`
	Ratios            FraudRatios       `json:"ratios"`
}

// AmountThresholds are the paid/incurred bands used by the amount rules.
type AmountThresholds struct {
	Low      float64 `json:"low"`
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	VeryHigh float64 `json:"very_high"`
}

// FraudScoreWeights are the additive contributions per triggered rule.
type FraudScoreWeights struct {
	AmountAnomaly      float64 `json:"amount_anomaly"`
	PatternAnomaly     float64 `json:"pattern_anomaly"`
	RatioAnomaly       float64 `json:"ratio_anomaly"`
	DemographicAnomaly float64 `json:"demographic_anomaly"`
	KeywordMatch       float64 `json:"keyword_match"`
	SevereInjury       float64 `json:"severe_injury"`
	SoftTissue         float64 `json:"soft_tissue"`
	ThirdPartyBI       float64 `json:"third_party_bi"`
	TotalLoss          float64 `json:"total_loss"`
}

// AgeThresholds bound the driver-age demographic rule.
type AgeThresholds struct {
	YoungDriver  int `json:"young_driver"`
	SeniorDriver int `json:"senior_driver"`
}

// VehicleThresholds bound the vehicle-age rules, in years.
type VehicleThresholds struct {
	NewVehicle int `json:"new_vehicle"`
	OldVehicle int `json:"old_vehicle"`
}

// FraudRatios holds ratio cutoffs for the medical-share rule.
type FraudRatios struct {
	MedicalShareHigh float64 `json:"medical_share_high"`
}

// DefaultFraudConfig returns the standard scorer tuning.
func DefaultFraudConfig() FraudConfig {
	return FraudConfig{
		AmountThresholds: AmountThresholds{
			Low:      1000,
			Medium:   5000,
			High:     20000,
			VeryHigh: 50000,
		},
		ScoreWeights: FraudScoreWeights{
			AmountAnomaly:      0.2,
			PatternAnomaly:     0.3,
			RatioAnomaly:       0.1,
			DemographicAnomaly: 0.08,
			KeywordMatch:       0.1,
			SevereInjury:       0.15,
			SoftTissue:         0.15,
			ThirdPartyBI:       0.15,
			TotalLoss:          0.1,
		},
		AgeThresholds: AgeThresholds{
			YoungDriver:  25,
			SeniorDriver: 70,
		},
		VehicleThresholds: VehicleThresholds{
			NewVehicle: 3,
			OldVehicle: 15,
		},
		Ratios: FraudRatios{
			MedicalShareHigh: 0.7,
		},
	}
}

// Normalize fills zero-valued fields from the defaults and returns the
// merged config. The receiver is not modified.
func (c FraudConfig) Normalize() FraudConfig {
	d := DefaultFraudConfig()
	if c.AmountThresholds.Low == 0 {
		c.AmountThresholds.Low = d.AmountThresholds.Low
	}
	if c.AmountThresholds.Medium == 0 {
		c.AmountThresholds.Medium = d.AmountThresholds.Medium
	}
	if c.AmountThresholds.High == 0 {
		c.AmountThresholds.High = d.AmountThresholds.High
	}
	if c.AmountThresholds.VeryHigh == 0 {
		c.AmountThresholds.VeryHigh = d.AmountThresholds.VeryHigh
	}
	if c.ScoreWeights.AmountAnomaly == 0 {
		c.ScoreWeights.AmountAnomaly = d.ScoreWeights.AmountAnomaly
	}
	if c.ScoreWeights.PatternAnomaly == 0 {
		c.ScoreWeights.PatternAnomaly = d.ScoreWeights.PatternAnomaly
	}
	if c.ScoreWeights.RatioAnomaly == 0 {
		c.ScoreWeights.RatioAnomaly = d.ScoreWeights.RatioAnomaly
	}
	if c.ScoreWeights.DemographicAnomaly == 0 {
		c.ScoreWeights.DemographicAnomaly = d.ScoreWeights.DemographicAnomaly
	}
	if c.ScoreWeights.KeywordMatch == 0 {
		c.ScoreWeights.KeywordMatch = d.ScoreWeights.KeywordMatch
	}
	if c.ScoreWeights.SevereInjury == 0 {
		c.ScoreWeights.SevereInjury = d.ScoreWeights.SevereInjury
	}
	if c.ScoreWeights.SoftTissue == 0 {
		c.ScoreWeights.SoftTissue = d.ScoreWeights.SoftTissue
	}
	if c.ScoreWeights.ThirdPartyBI == 0 {
		c.ScoreWeights.ThirdPartyBI = d.ScoreWeights.ThirdPartyBI
	}
	if c.ScoreWeights.TotalLoss == 0 {
		c.ScoreWeights.TotalLoss = d.ScoreWeights.TotalLoss
	}
	if c.AgeThresholds.YoungDriver == 0 {
		c.AgeThresholds.YoungDriver = d.AgeThresholds.YoungDriver
	}
	if c.AgeThresholds.SeniorDriver == 0 {
		c.AgeThresholds.SeniorDriver = d.AgeThresholds.SeniorDriver
	}
	if c.VehicleThresholds.NewVehicle == 0 {
		c.VehicleThresholds.NewVehicle = d.VehicleThresholds.NewVehicle
	}
	if c.VehicleThresholds.OldVehicle == 0 {
		c.VehicleThresholds.OldVehicle = d.VehicleThresholds.OldVehicle
	}
	if c.Ratios.MedicalShareHigh == 0 {
		c.Ratios.MedicalShareHigh = d.Ratios.MedicalShareHigh
	}
	return c
}

// Validate checks a normalized fraud config for coherent bands.
func (c FraudConfig) Validate() error {
	t := c.AmountThresholds
	if !(t.Low > 0 && t.Low < t.Medium && t.Medium < t.High && t.High < t.VeryHigh) {
		return fmt.Errorf("amount_thresholds must be positive and ascending")
	}
	w := c.ScoreWeights
	for name, v := range map[string]float64{
		"amount_anomaly":      w.AmountAnomaly,
		"pattern_anomaly":     w.PatternAnomaly,
		"ratio_anomaly":       w.RatioAnomaly,
		"demographic_anomaly": w.DemographicAnomaly,
		"keyword_match":       w.KeywordMatch,
		"severe_injury":       w.SevereInjury,
		"soft_tissue":         w.SoftTissue,
		"third_party_bi":      w.ThirdPartyBI,
		"total_loss":          w.TotalLoss,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("score_weights.%s out of range [0,1]: %v", name, v)
		}
	}
	if c.AgeThresholds.YoungDriver >= c.AgeThresholds.SeniorDriver {
		return fmt.Errorf("age_thresholds: young_driver must be below senior_driver")
	}
	if c.VehicleThresholds.NewVehicle >= c.VehicleThresholds.OldVehicle {
		return fmt.Errorf("vehicle_thresholds: new_vehicle must be below old_vehicle")
	}
	if c.Ratios.MedicalShareHigh <= 0 || c.Ratios.MedicalShareHigh > 1 {
		return fmt.Errorf("ratios.medical_share_high out of range (0,1]")
	}
	return nil
}

// LitigationConfig tunes the litigation signal detector.
type LitigationConfig struct {
	ConfidenceThresholds ConfidenceThresholds   `json:"confidence_thresholds"`
	ScoreWeights         LitigationScoreWeights `json:"score_weights"`
	Limits               ResultLimits           `json:"limits"`
}

// ConfidenceThresholds bound litigation confidence classification.
type ConfidenceThresholds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// LitigationScoreWeights are the signal contributions.
type LitigationScoreWeights struct {
	StrongSignalWeight float64 `json:"strong_signal_weight"`
	WeakSignalWeight   float64 `json:"weak_signal_weight"`
}

// ResultLimits caps ranked output length.
type ResultLimits struct {
	MaxResults int `json:"max_results"`
}

// DefaultLitigationConfig returns the standard detector tuning.
func DefaultLitigationConfig() LitigationConfig {
	return LitigationConfig{
		ConfidenceThresholds: ConfidenceThresholds{High: 0.7, Low: 0.15},
		ScoreWeights:         LitigationScoreWeights{StrongSignalWeight: 0.7, WeakSignalWeight: 0.15},
		Limits:               ResultLimits{MaxResults: 100},
	}
}

// Normalize fills zero-valued fields from the defaults.
func (c LitigationConfig) Normalize() LitigationConfig {
	d := DefaultLitigationConfig()
	if c.ConfidenceThresholds.High == 0 {
		c.ConfidenceThresholds.High = d.ConfidenceThresholds.High
	}
	if c.ConfidenceThresholds.Low == 0 {
		c.ConfidenceThresholds.Low = d.ConfidenceThresholds.Low
	}
	if c.ScoreWeights.StrongSignalWeight == 0 {
		c.ScoreWeights.StrongSignalWeight = d.ScoreWeights.StrongSignalWeight
	}
	if c.ScoreWeights.WeakSignalWeight == 0 {
		c.ScoreWeights.WeakSignalWeight = d.ScoreWeights.WeakSignalWeight
	}
	if c.Limits.MaxResults == 0 {
		c.Limits.MaxResults = d.Limits.MaxResults
	}
	return c
}

// Validate checks a normalized litigation config.
func (c LitigationConfig) Validate() error {
	if c.ConfidenceThresholds.Low <= 0 || c.ConfidenceThresholds.High > 1 ||
		c.ConfidenceThresholds.Low >= c.ConfidenceThresholds.High {
		return fmt.Errorf("confidence_thresholds must satisfy 0 < low < high <= 1")
	}
	if c.ScoreWeights.StrongSignalWeight <= 0 || c.ScoreWeights.StrongSignalWeight > 1 {
		return fmt.Errorf("score_weights.strong_signal_weight out of range (0,1]")
	}
	if c.ScoreWeights.WeakSignalWeight <= 0 || c.ScoreWeights.WeakSignalWeight > 1 {
		return fmt.Errorf("score_weights.weak_signal_weight out of range (0,1]")
	}
	if c.Limits.MaxResults <= 0 {
		return fmt.Errorf("limits.max_results must be positive")
	}
	return nil
}

// MonitoringConfig tunes KPI targets and alert thresholds.
type MonitoringConfig struct {
	AlertThresholds AlertThresholds `json:"alert_thresholds"`
	KPITargets      KPITargets      `json:"kpi_targets"`
}

// AlertThresholds are the per-KPI upper bands that raise alerts.
type AlertThresholds struct {
	LossRatio        float64 `json:"loss_ratio"`
	FrequencySpike   float64 `json:"frequency_spike"`
	SeverityIncrease float64 `json:"severity_increase"`
	ReserveAdequacy  float64 `json:"reserve_adequacy"`
}

// KPITargets are the per-KPI target values.
type KPITargets struct {
	LossRatio      float64 `json:"loss_ratio"`
	ClaimFrequency float64 `json:"claim_frequency"`
	AvgSeverity    float64 `json:"avg_severity"`
	ReserveRatio   float64 `json:"reserve_ratio"`
}

// DefaultMonitoringConfig returns the standard monitoring tuning.
func DefaultMonitoringConfig() MonitoringConfig {
	return MonitoringConfig{
		AlertThresholds: AlertThresholds{
			LossRatio:        0.8,
			FrequencySpike:   2.0,
			SeverityIncrease: 0.3,
			ReserveAdequacy:  0.9,
		},
		KPITargets: KPITargets{
			LossRatio:      0.65,
			ClaimFrequency: 0.05,
			AvgSeverity:    5000,
			ReserveRatio:   0.15,
		},
	}
}

// Normalize fills zero-valued fields from the defaults.
func (c MonitoringConfig) Normalize() MonitoringConfig {
	d := DefaultMonitoringConfig()
	if c.AlertThresholds.LossRatio == 0 {
		c.AlertThresholds.LossRatio = d.AlertThresholds.LossRatio
	}
	if c.AlertThresholds.FrequencySpike == 0 {
		c.AlertThresholds.FrequencySpike = d.AlertThresholds.FrequencySpike
	}
	if c.AlertThresholds.SeverityIncrease == 0 {
		c.AlertThresholds.SeverityIncrease = d.AlertThresholds.SeverityIncrease
	}
	if c.AlertThresholds.ReserveAdequacy == 0 {
		c.AlertThresholds.ReserveAdequacy = d.AlertThresholds.ReserveAdequacy
	}
	if c.KPITargets.LossRatio == 0 {
		c.KPITargets.LossRatio = d.KPITargets.LossRatio
	}
	if c.KPITargets.ClaimFrequency == 0 {
		c.KPITargets.ClaimFrequency = d.KPITargets.ClaimFrequency
	}
	if c.KPITargets.AvgSeverity == 0 {
		c.KPITargets.AvgSeverity = d.KPITargets.AvgSeverity
	}
	if c.KPITargets.ReserveRatio == 0 {
		c.KPITargets.ReserveRatio = d.KPITargets.ReserveRatio
	}
	return c
}

// Validate checks a normalized monitoring config.
func (c MonitoringConfig) Validate() error {
	if c.AlertThresholds.LossRatio <= 0 || c.AlertThresholds.FrequencySpike <= 0 ||
		c.AlertThresholds.SeverityIncrease <= 0 || c.AlertThresholds.ReserveAdequacy <= 0 {
		return fmt.Errorf("alert_thresholds must be positive")
	}
	if c.KPITargets.LossRatio <= 0 || c.KPITargets.ClaimFrequency <= 0 ||
		c.KPITargets.AvgSeverity <= 0 || c.KPITargets.ReserveRatio <= 0 {
		return fmt.Errorf("kpi_targets must be positive")
	}
	return nil
}

// FraudRule is a tenant-defined CEL red-flag rule, evaluated after the
// built-in scorer. A triggered rule adds Weight to the fraud score
// (still capped at 1.0) and appends Flag to the claim's red flags.
type FraudRule struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Weight      float64   `json:"weight"`
	Flag        string    `json:"flag"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks structural fields; expression compilation happens in
// the rule set.
func (r *FraudRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Expression == "" {
		return fmt.Errorf("rule expression is required")
	}
	if r.Weight <= 0 || r.Weight > 1 {
		return fmt.Errorf("rule weight out of range (0,1]: %v", r.Weight)
	}
	if r.Flag == "" {
		return fmt.Errorf("rule flag label is required")
	}
	return nil
}
