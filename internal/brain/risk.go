package brain

import (
	"fmt"
	"math"
)

// RiskType tags the three risk record variants.
type RiskType string

const (
	RiskFatigue  RiskType = "fatigue"
	RiskDecay    RiskType = "decay"
	RiskLTVDrift RiskType = "ltv_drift"
)

// Severity grades a single risk record.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// DriftTrend describes how the cohort LTV decline is evolving.
type DriftTrend string

const (
	DriftAccelerating DriftTrend = "accelerating"
	DriftStabilizing  DriftTrend = "stabilizing"
	DriftImproving    DriftTrend = "improving"
)

// Risk is implemented by every risk record variant.
type Risk interface {
	RiskType() RiskType
	EntityID() string
	Severity() Severity
	isRisk()
}

// CreativeFatigue flags a creative whose conversion efficiency is wearing out.
type CreativeFatigue struct {
	CreativeID               string   `json:"creativeId"`
	CreativeName             string   `json:"creativeName"`
	ChannelID                string   `json:"channelId"`
	FatigueProbability7d     float64  `json:"fatigueProbability7d"`
	FatigueProbability14d    float64  `json:"fatigueProbability14d"`
	PredictedPerformanceDrop float64  `json:"predictedPerformanceDrop"`
	RecentCVR                float64  `json:"recentCvr"`
	BaselineCVR              float64  `json:"baselineCvr"`
	RecentCPA                float64  `json:"recentCpa"`
	BaselineCPA              float64  `json:"baselineCpa"`
	Frequency                float64  `json:"frequency"`
	RecentDailySpend         float64  `json:"recentDailySpend"`
	FatigueSeverity          Severity `json:"fatigueSeverity"`
}

func (f CreativeFatigue) RiskType() RiskType { return RiskFatigue }
func (f CreativeFatigue) EntityID() string   { return f.CreativeID }
func (f CreativeFatigue) Severity() Severity { return f.FatigueSeverity }
func (CreativeFatigue) isRisk()              {}

// ROIDecay flags a channel whose ROAS is falling against its own baseline.
// Percentages are on a 0-100 scale.
type ROIDecay struct {
	ChannelID      string   `json:"channelId"`
	ChannelName    string   `json:"channelName"`
	RecentROAS     float64  `json:"recentRoas"`
	BaselineROAS   float64  `json:"baselineRoas"`
	DecayPct       float64  `json:"decayPercentage"`
	SpendChangePct float64  `json:"spendChangePercentage"`
	DecaySeverity  Severity `json:"decaySeverity"`
}

func (d ROIDecay) RiskType() RiskType { return RiskDecay }
func (d ROIDecay) EntityID() string   { return d.ChannelID }
func (d ROIDecay) Severity() Severity { return d.DecaySeverity }
func (ROIDecay) isRisk()              {}

// LTVDrift flags a systematic change in cohort 90-day value; DriftPct is on
// a 0-100 scale.
type LTVDrift struct {
	RecentCohortMonth   string     `json:"recentCohortMonth"`
	BaselineCohortMonth string     `json:"baselineCohortMonth"`
	RecentLTV90d        float64    `json:"recentLtv90d"`
	BaselineLTV90d      float64    `json:"baselineLtv90d"`
	DriftPct            float64    `json:"driftPercentage"`
	DriftSeverity       Severity   `json:"driftSeverity"`
	Trend               DriftTrend `json:"trend"`
}

func (d LTVDrift) RiskType() RiskType { return RiskLTVDrift }
func (d LTVDrift) EntityID() string   { return d.RecentCohortMonth }
func (d LTVDrift) Severity() Severity { return d.DriftSeverity }
func (LTVDrift) isRisk()              {}

// RiskSummary is the flattened single-list shape of any risk record.
type RiskSummary struct {
	Type     RiskType `json:"type"`
	EntityID string   `json:"entityId"`
	Severity Severity `json:"severity"`
	// Score is the detector's own magnitude as a fraction: fatigue
	// probability, decay or absolute drift.
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// Summarize flattens a risk record.
func Summarize(r Risk) RiskSummary {
	var msg string
	var score float64
	switch v := r.(type) {
	case CreativeFatigue:
		score = v.FatigueProbability7d
		msg = fmt.Sprintf("creative %s fatigue probability %.0f%% (cvr %.2f%% vs %.2f%%, frequency %.1f)",
			v.CreativeID, v.FatigueProbability7d*100, v.RecentCVR*100, v.BaselineCVR*100, v.Frequency)
	case ROIDecay:
		score = v.DecayPct / 100
		msg = fmt.Sprintf("channel %s ROAS %.2f vs baseline %.2f (%.0f%% decay)",
			v.ChannelID, v.RecentROAS, v.BaselineROAS, v.DecayPct)
	case LTVDrift:
		score = math.Abs(v.DriftPct) / 100
		msg = fmt.Sprintf("90-day LTV %.2f vs %.2f (%+.0f%%, %s)",
			v.RecentLTV90d, v.BaselineLTV90d, v.DriftPct, v.Trend)
	default:
		panic(fmt.Sprintf("brain: unknown risk variant %T", r))
	}
	return RiskSummary{Type: r.RiskType(), EntityID: r.EntityID(), Severity: r.Severity(), Score: score, Message: msg}
}
