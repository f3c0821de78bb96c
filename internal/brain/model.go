package brain

import "time"

// DailyMetric is one channel (or creative) day of advertising performance.
type DailyMetric struct {
	Date        time.Time `json:"date" yaml:"date"`
	ChannelID   string    `json:"channelId" yaml:"channelId"`
	CreativeID  string    `json:"creativeId,omitempty" yaml:"creativeId"`
	CampaignID  string    `json:"campaignId,omitempty" yaml:"campaignId"`
	Spend       float64   `json:"spend" yaml:"spend"`
	Revenue     float64   `json:"revenue" yaml:"revenue"`
	Impressions int64     `json:"impressions" yaml:"impressions"`
	Clicks      int64     `json:"clicks" yaml:"clicks"`
	Conversions int64     `json:"conversions" yaml:"conversions"`
	Frequency   float64   `json:"frequency" yaml:"frequency"`
	CVR         float64   `json:"cvr" yaml:"cvr"`
}

// Channel is an acquisition channel such as a paid social account.
type Channel struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Platform string `json:"platform" yaml:"platform"`
	IsActive bool   `json:"isActive" yaml:"isActive"`
}

// CreativeStatus is the delivery state of a creative.
type CreativeStatus string

const (
	CreativeActive CreativeStatus = "active"
	CreativePaused CreativeStatus = "paused"
)

// Creative is a single ad asset running on a channel.
type Creative struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	ChannelID  string         `json:"channelId" yaml:"channelId"`
	Status     CreativeStatus `json:"status" yaml:"status"`
	LaunchDate time.Time      `json:"launchDate" yaml:"launchDate"`
	Spend      float64        `json:"spend" yaml:"spend"`
	Revenue    float64        `json:"revenue" yaml:"revenue"`
	CTR        float64        `json:"ctr" yaml:"ctr"`
	ROAS       float64        `json:"roas" yaml:"roas"`
}

// AllChannels marks a cohort row that spans every acquisition channel.
const AllChannels = "All"

// Cohort tracks customer value for one acquisition month.
type Cohort struct {
	CohortMonth        time.Time `json:"cohortMonth" yaml:"cohortMonth"`
	AcquisitionChannel string    `json:"acquisitionChannel" yaml:"acquisitionChannel"`
	LTV30d             float64   `json:"ltv30d" yaml:"ltv30d"`
	LTV60d             float64   `json:"ltv60d" yaml:"ltv60d"`
	LTV90d             float64   `json:"ltv90d" yaml:"ltv90d"`
	LTV180d            float64   `json:"ltv180d" yaml:"ltv180d"`
}

// Snapshot is everything the metric store returns for one organization and window.
type Snapshot struct {
	DailyMetrics         []DailyMetric `json:"dailyMetrics" yaml:"dailyMetrics"`
	Creatives            []Creative    `json:"creatives" yaml:"creatives"`
	CreativeDailyMetrics []DailyMetric `json:"creativeDailyMetrics" yaml:"creativeDailyMetrics"`
	Cohorts              []Cohort      `json:"cohorts" yaml:"cohorts"`
	Channels             []Channel     `json:"channels" yaml:"channels"`
}

// ChannelStatus classifies a channel against the blended ROAS of its cycle.
type ChannelStatus string

const (
	StatusWinner  ChannelStatus = "winner"
	StatusLoser   ChannelStatus = "loser"
	StatusNeutral ChannelStatus = "neutral"
)

// Trend is the week-over-week ROAS direction of a channel.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// ChannelPerformance is MEMORY's per-channel attribution row.
type ChannelPerformance struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Platform        string        `json:"platform"`
	Spend           float64       `json:"spend"`
	Revenue         float64       `json:"revenue"`
	ROAS            float64       `json:"roas"`
	Status          ChannelStatus `json:"status"`
	ContributionPct float64       `json:"contributionPct"`
	Trend           Trend         `json:"trend"`
	// TrendDays is the number of distinct metric days behind Trend; below the
	// minimum the trend is reported stable without evidence.
	TrendDays int `json:"trendDays"`
}

// Totals are the organization-wide attribution figures of a cycle.
type Totals struct {
	TotalSpend         float64 `json:"totalSpend"`
	TotalRevenue       float64 `json:"totalRevenue"`
	BlendedROAS        float64 `json:"blendedRoas"`
	MER                float64 `json:"mer"`
	LTVFactor          float64 `json:"ltvFactor"`
	LTVAdjustedRevenue float64 `json:"ltvAdjustedRevenue"`
}

// MemoryOutput is the result of the attribution stage.
type MemoryOutput struct {
	Totals   Totals               `json:"totals"`
	Channels []ChannelPerformance `json:"channels"`
}

// Winners returns the winner channels in MEMORY order.
func (m MemoryOutput) Winners() []ChannelPerformance {
	return m.byStatus(StatusWinner)
}

// Losers returns the loser channels in MEMORY order.
func (m MemoryOutput) Losers() []ChannelPerformance {
	return m.byStatus(StatusLoser)
}

func (m MemoryOutput) byStatus(status ChannelStatus) []ChannelPerformance {
	out := make([]ChannelPerformance, 0)
	for _, ch := range m.Channels {
		if ch.Status == status {
			out = append(out, ch)
		}
	}
	return out
}

// RiskLevel is the traffic-light summary of a cycle's risk.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "green"
	RiskYellow RiskLevel = "yellow"
	RiskRed    RiskLevel = "red"
)

// Rank orders levels so callers can compare against a minimum.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskRed:
		return 2
	case RiskYellow:
		return 1
	default:
		return 0
	}
}

// OracleOutput is the result of the risk detection stage.
type OracleOutput struct {
	GlobalRiskLevel RiskLevel `json:"globalRiskLevel"`
	// GlobalRiskScore grows with risk: 0 is no detected risk, 100 is saturated.
	GlobalRiskScore int                `json:"globalRiskScore"`
	CreativeFatigue []CreativeFatigue  `json:"creativeFatigue"`
	ROIDecay        []ROIDecay         `json:"roiDecay"`
	LTVDrift        *LTVDrift          `json:"ltvDrift"`
	LegacyRisks     []RiskSummary      `json:"legacyRisks"`
	Failures        []ComponentFailure `json:"failures,omitempty"`
}

// Decaying reports whether channelID appears in the ROI decay list.
func (o OracleOutput) Decaying(channelID string) bool {
	for _, d := range o.ROIDecay {
		if d.ChannelID == channelID {
			return true
		}
	}
	return false
}

// CuriosityOutput is the result of the recommendation stage.
type CuriosityOutput struct {
	TopActions          []ActionRecommendation `json:"topActions"`
	TotalOpportunityUSD float64                `json:"totalOpportunityUsd"`
	CandidateCount      int                    `json:"candidateCount"`
	Failures            []ComponentFailure     `json:"failures,omitempty"`
}

// CycleResult is the unit persisted per organization and timestamp.
type CycleResult struct {
	Timestamp      time.Time       `json:"timestamp"`
	OrganizationID string          `json:"organizationId"`
	WindowStart    time.Time       `json:"windowStart"`
	WindowEnd      time.Time       `json:"windowEnd"`
	Memory         MemoryOutput    `json:"memory"`
	Oracle         OracleOutput    `json:"oracle"`
	Curiosity      CuriosityOutput `json:"curiosity"`
}

// ComponentFailure records a detector or generator that failed in isolation.
type ComponentFailure struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}
