package brain

import (
	"errors"
	"fmt"
)

// Heuristics holds every threshold, weight and constant of the rule engine.
type Heuristics struct {
	// Attribution
	WinnerMultiplier float64 `mapstructure:"winner_multiplier" json:"winnerMultiplier"`
	LoserMultiplier  float64 `mapstructure:"loser_multiplier" json:"loserMultiplier"`
	LTVFactorMin     float64 `mapstructure:"ltv_factor_min" json:"ltvFactorMin"`
	LTVFactorMax     float64 `mapstructure:"ltv_factor_max" json:"ltvFactorMax"`
	LTVBaselineGap   int     `mapstructure:"ltv_baseline_gap_months" json:"ltvBaselineGapMonths"`
	TrendMinDays     int     `mapstructure:"trend_min_days" json:"trendMinDays"`
	TrendTolerance   float64 `mapstructure:"trend_tolerance" json:"trendTolerance"`

	// Windows shared by the fatigue and decay detectors.
	RecentWindowDays   int `mapstructure:"recent_window_days" json:"recentWindowDays"`
	BaselineWindowDays int `mapstructure:"baseline_window_days" json:"baselineWindowDays"`
	MinHistoryDays     int `mapstructure:"min_history_days" json:"minHistoryDays"`

	// Creative fatigue
	FatigueCVRDrop        float64 `mapstructure:"fatigue_cvr_drop" json:"fatigueCvrDrop"`
	FatigueCPAIncrease    float64 `mapstructure:"fatigue_cpa_increase" json:"fatigueCpaIncrease"`
	FatigueFrequency      float64 `mapstructure:"fatigue_frequency" json:"fatigueFrequency"`
	FatigueCVRWeight      float64 `mapstructure:"fatigue_cvr_weight" json:"fatigueCvrWeight"`
	FatigueCVRScale       float64 `mapstructure:"fatigue_cvr_scale" json:"fatigueCvrScale"`
	FatigueCPAWeight      float64 `mapstructure:"fatigue_cpa_weight" json:"fatigueCpaWeight"`
	FatigueCPAScale       float64 `mapstructure:"fatigue_cpa_scale" json:"fatigueCpaScale"`
	FatigueFreqWeight     float64 `mapstructure:"fatigue_freq_weight" json:"fatigueFreqWeight"`
	FatigueFreqFloor      float64 `mapstructure:"fatigue_freq_floor" json:"fatigueFreqFloor"`
	FatigueFreqScale      float64 `mapstructure:"fatigue_freq_scale" json:"fatigueFreqScale"`
	FatigueProbabilityCap float64 `mapstructure:"fatigue_probability_cap" json:"fatigueProbabilityCap"`
	Fatigue14dMultiplier  float64 `mapstructure:"fatigue_14d_multiplier" json:"fatigue14dMultiplier"`
	DropMultiplier        float64 `mapstructure:"drop_multiplier" json:"dropMultiplier"`
	DropCap               float64 `mapstructure:"drop_cap" json:"dropCap"`
	FatigueHighAbove      float64 `mapstructure:"fatigue_high_above" json:"fatigueHighAbove"`
	FatigueMediumAbove    float64 `mapstructure:"fatigue_medium_above" json:"fatigueMediumAbove"`

	// ROI decay
	DecayThreshold       float64 `mapstructure:"decay_threshold" json:"decayThreshold"`
	DecaySpendIncrease   float64 `mapstructure:"decay_spend_increase" json:"decaySpendIncrease"`
	DecayHigh            float64 `mapstructure:"decay_high" json:"decayHigh"`
	DecayHighWithSpend   float64 `mapstructure:"decay_high_with_spend" json:"decayHighWithSpend"`
	DecayHighSpend       float64 `mapstructure:"decay_high_spend" json:"decayHighSpend"`
	DecayMedium          float64 `mapstructure:"decay_medium" json:"decayMedium"`
	DecayMediumWithSpend float64 `mapstructure:"decay_medium_with_spend" json:"decayMediumWithSpend"`
	DecayMediumSpend     float64 `mapstructure:"decay_medium_spend" json:"decayMediumSpend"`

	// LTV drift
	DriftRecentCohorts int     `mapstructure:"drift_recent_cohorts" json:"driftRecentCohorts"`
	DriftBaselineAge   int     `mapstructure:"drift_baseline_age_months" json:"driftBaselineAgeMonths"`
	DriftMinCohorts    int     `mapstructure:"drift_min_cohorts" json:"driftMinCohorts"`
	DriftThreshold     float64 `mapstructure:"drift_threshold" json:"driftThreshold"`
	DriftHigh          float64 `mapstructure:"drift_high" json:"driftHigh"`
	DriftMedium        float64 `mapstructure:"drift_medium" json:"driftMedium"`

	// Global risk aggregation
	RedHighCount      int `mapstructure:"red_high_count" json:"redHighCount"`
	YellowHighCount   int `mapstructure:"yellow_high_count" json:"yellowHighCount"`
	YellowMediumCount int `mapstructure:"yellow_medium_count" json:"yellowMediumCount"`
	RiskHighPoints    int `mapstructure:"risk_high_points" json:"riskHighPoints"`
	RiskMediumPoints  int `mapstructure:"risk_medium_points" json:"riskMediumPoints"`
	RiskLowPoints     int `mapstructure:"risk_low_points" json:"riskLowPoints"`

	// Recommendations
	ShiftFraction          float64 `mapstructure:"shift_fraction" json:"shiftFraction"`
	ShiftUrgentScore       int     `mapstructure:"shift_urgent_score" json:"shiftUrgentScore"`
	ShiftUrgencyScore      int     `mapstructure:"shift_urgency_score" json:"shiftUrgencyScore"`
	ShiftConfidenceScore   int     `mapstructure:"shift_confidence_score" json:"shiftConfidenceScore"`
	PauseMinProbability    float64 `mapstructure:"pause_min_probability" json:"pauseMinProbability"`
	PauseUrgentAbove       float64 `mapstructure:"pause_urgent_above" json:"pauseUrgentAbove"`
	PauseUrgentScore       int     `mapstructure:"pause_urgent_score" json:"pauseUrgentScore"`
	PauseUrgencyScore      int     `mapstructure:"pause_urgency_score" json:"pauseUrgencyScore"`
	PauseHorizonDays       int     `mapstructure:"pause_horizon_days" json:"pauseHorizonDays"`
	AssumedDailySpend      float64 `mapstructure:"assumed_daily_spend" json:"assumedDailySpend"`
	UseObservedSpend       bool    `mapstructure:"use_observed_spend" json:"useObservedSpend"`
	ScaleMultiplier        float64 `mapstructure:"scale_multiplier" json:"scaleMultiplier"`
	ScaleFraction          float64 `mapstructure:"scale_fraction" json:"scaleFraction"`
	ScaleUrgencyScore      int     `mapstructure:"scale_urgency_score" json:"scaleUrgencyScore"`
	ScaleConfidenceScore   int     `mapstructure:"scale_confidence_score" json:"scaleConfidenceScore"`
	RetentionHighImpact    float64 `mapstructure:"retention_high_impact" json:"retentionHighImpact"`
	RetentionMediumImpact  float64 `mapstructure:"retention_medium_impact" json:"retentionMediumImpact"`
	RetentionHighUrgency   int     `mapstructure:"retention_high_urgency" json:"retentionHighUrgency"`
	RetentionMediumUrgency int     `mapstructure:"retention_medium_urgency" json:"retentionMediumUrgency"`
	RetentionConfidence    int     `mapstructure:"retention_confidence" json:"retentionConfidence"`

	// Scoring
	ImpactWeight     float64 `mapstructure:"impact_weight" json:"impactWeight"`
	SeverityWeight   float64 `mapstructure:"severity_weight" json:"severityWeight"`
	ConfidenceWeight float64 `mapstructure:"confidence_weight" json:"confidenceWeight"`
	UrgencyWeight    float64 `mapstructure:"urgency_weight" json:"urgencyWeight"`
	ImpactCeiling    float64 `mapstructure:"impact_ceiling" json:"impactCeiling"`
	TopActions       int     `mapstructure:"top_actions" json:"topActions"`
}

// DefaultHeuristics returns the production rule set.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		WinnerMultiplier: 1.15,
		LoserMultiplier:  0.85,
		LTVFactorMin:     0.5,
		LTVFactorMax:     2.0,
		LTVBaselineGap:   6,
		TrendMinDays:     14,
		TrendTolerance:   0.05,

		RecentWindowDays:   7,
		BaselineWindowDays: 14,
		MinHistoryDays:     14,

		FatigueCVRDrop:        0.20,
		FatigueCPAIncrease:    0.25,
		FatigueFrequency:      3.5,
		FatigueCVRWeight:      0.4,
		FatigueCVRScale:       0.4,
		FatigueCPAWeight:      0.3,
		FatigueCPAScale:       0.5,
		FatigueFreqWeight:     0.3,
		FatigueFreqFloor:      3,
		FatigueFreqScale:      2,
		FatigueProbabilityCap: 0.95,
		Fatigue14dMultiplier:  1.3,
		DropMultiplier:        1.5,
		DropCap:               0.5,
		FatigueHighAbove:      0.8,
		FatigueMediumAbove:    0.6,

		DecayThreshold:       0.15,
		DecaySpendIncrease:   0.10,
		DecayHigh:            0.30,
		DecayHighWithSpend:   0.20,
		DecayHighSpend:       0.20,
		DecayMedium:          0.20,
		DecayMediumWithSpend: 0.15,
		DecayMediumSpend:     0.10,

		DriftRecentCohorts: 3,
		DriftBaselineAge:   6,
		DriftMinCohorts:    4,
		DriftThreshold:     0.10,
		DriftHigh:          0.20,
		DriftMedium:        0.15,

		RedHighCount:      3,
		YellowHighCount:   1,
		YellowMediumCount: 2,
		RiskHighPoints:    30,
		RiskMediumPoints:  15,
		RiskLowPoints:     5,

		ShiftFraction:          0.10,
		ShiftUrgentScore:       90,
		ShiftUrgencyScore:      60,
		ShiftConfidenceScore:   85,
		PauseMinProbability:    0.6,
		PauseUrgentAbove:       0.8,
		PauseUrgentScore:       95,
		PauseUrgencyScore:      70,
		PauseHorizonDays:       7,
		AssumedDailySpend:      500,
		UseObservedSpend:       true,
		ScaleMultiplier:        1.2,
		ScaleFraction:          0.10,
		ScaleUrgencyScore:      40,
		ScaleConfidenceScore:   80,
		RetentionHighImpact:    5000,
		RetentionMediumImpact:  2500,
		RetentionHighUrgency:   90,
		RetentionMediumUrgency: 60,
		RetentionConfidence:    65,

		ImpactWeight:     0.4,
		SeverityWeight:   0.3,
		ConfidenceWeight: 0.2,
		UrgencyWeight:    0.1,
		ImpactCeiling:    10000,
		TopActions:       3,
	}
}

// Validate rejects rule sets the detectors cannot evaluate.
func (h Heuristics) Validate() error {
	var errs []error
	if h.RecentWindowDays <= 0 || h.BaselineWindowDays <= 0 {
		errs = append(errs, errors.New("recent and baseline windows must be positive"))
	}
	if h.MinHistoryDays <= h.RecentWindowDays {
		errs = append(errs, fmt.Errorf("min_history_days (%d) must exceed recent_window_days (%d)", h.MinHistoryDays, h.RecentWindowDays))
	}
	if h.LTVFactorMin <= 0 || h.LTVFactorMin > h.LTVFactorMax {
		errs = append(errs, fmt.Errorf("ltv factor bounds [%v, %v] are invalid", h.LTVFactorMin, h.LTVFactorMax))
	}
	if h.TopActions <= 0 {
		errs = append(errs, errors.New("top_actions must be greater than zero"))
	}
	if h.ImpactCeiling <= 0 {
		errs = append(errs, errors.New("impact_ceiling must be greater than zero"))
	}
	if h.DriftRecentCohorts <= 0 || h.DriftMinCohorts <= 0 {
		errs = append(errs, errors.New("drift cohort counts must be positive"))
	}
	return errors.Join(errs...)
}

// LevelFor labels a 0-100 confidence or urgency score.
func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelHigh
	case score >= 60:
		return LevelMedium
	default:
		return LevelLow
	}
}
