package memory

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// Input is the raw material of the attribution stage for one organization.
type Input struct {
	DailyMetrics []brain.DailyMetric
	Channels     []brain.Channel
	Cohorts      []brain.Cohort
}

// Aggregator reduces daily metrics into totals and channel classifications.
type Aggregator struct {
	h      brain.Heuristics
	logger zerolog.Logger
}

// New constructs an Aggregator.
func New(h brain.Heuristics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{h: h, logger: logger.With().Str("component", "memory").Logger()}
}

type channelSums struct {
	spend   decimal.Decimal
	revenue decimal.Decimal
	rows    []brain.DailyMetric
}

// Aggregate computes the MemoryOutput. Empty input yields zero totals and no channels.
func (a *Aggregator) Aggregate(in Input) brain.MemoryOutput {
	totalSpend, totalRevenue := decimal.Zero, decimal.Zero
	sums := make(map[string]*channelSums)
	for _, row := range in.DailyMetrics {
		spend := decimal.NewFromFloat(row.Spend)
		revenue := decimal.NewFromFloat(row.Revenue)
		totalSpend = totalSpend.Add(spend)
		totalRevenue = totalRevenue.Add(revenue)

		cs, ok := sums[row.ChannelID]
		if !ok {
			cs = &channelSums{}
			sums[row.ChannelID] = cs
		}
		cs.spend = cs.spend.Add(spend)
		cs.revenue = cs.revenue.Add(revenue)
		cs.rows = append(cs.rows, row)
	}

	spend := totalSpend.InexactFloat64()
	revenue := totalRevenue.InexactFloat64()
	blended := brain.Ratio(revenue, spend)
	factor := a.LTVFactor(in.Cohorts)

	out := brain.MemoryOutput{
		Totals: brain.Totals{
			TotalSpend:         spend,
			TotalRevenue:       revenue,
			BlendedROAS:        blended,
			MER:                blended,
			LTVFactor:          factor,
			LTVAdjustedRevenue: brain.RoundCents(revenue * factor),
		},
		Channels: make([]brain.ChannelPerformance, 0),
	}
	if len(in.DailyMetrics) == 0 {
		return out
	}

	seen := make(map[string]bool)
	for _, ch := range in.Channels {
		cs, ok := sums[ch.ID]
		if !ok && !ch.IsActive {
			continue
		}
		if cs == nil {
			cs = &channelSums{}
		}
		seen[ch.ID] = true
		out.Channels = append(out.Channels, a.classify(ch, cs, blended, revenue))
	}

	// Rows for channels missing from the reference list still carry attribution.
	orphans := make([]string, 0)
	for id := range sums {
		if !seen[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		out.Channels = append(out.Channels, a.classify(brain.Channel{ID: id, Name: id}, sums[id], blended, revenue))
	}

	a.logger.Debug().
		Float64("blended_roas", blended).
		Float64("ltv_factor", factor).
		Int("channels", len(out.Channels)).
		Msg("attribution aggregated")
	return out
}

func (a *Aggregator) classify(ch brain.Channel, cs *channelSums, blended, totalRevenue float64) brain.ChannelPerformance {
	spend := cs.spend.InexactFloat64()
	revenue := cs.revenue.InexactFloat64()
	roas := brain.Ratio(revenue, spend)
	trend, days := a.trend(cs.rows)
	return brain.ChannelPerformance{
		ID:              ch.ID,
		Name:            ch.Name,
		Platform:        ch.Platform,
		Spend:           spend,
		Revenue:         revenue,
		ROAS:            roas,
		Status:          a.Status(roas, blended),
		ContributionPct: brain.Ratio(revenue, totalRevenue) * 100,
		Trend:           trend,
		TrendDays:       days,
	}
}

// Status classifies a channel ROAS relative to the blended ROAS of its cycle.
func (a *Aggregator) Status(roas, blended float64) brain.ChannelStatus {
	switch {
	case roas > blended*a.h.WinnerMultiplier:
		return brain.StatusWinner
	case roas < blended*a.h.LoserMultiplier:
		return brain.StatusLoser
	default:
		return brain.StatusNeutral
	}
}

func (a *Aggregator) trend(rows []brain.DailyMetric) (brain.Trend, int) {
	days := brain.GroupByDay(rows)
	window := a.h.RecentWindowDays
	if len(days) < a.h.TrendMinDays || len(days) < 2*window {
		return brain.TrendStable, len(days)
	}
	n := len(days)
	recent := brain.DailyROAS(days[n-window:])
	prior := brain.DailyROAS(days[n-2*window : n-window])
	switch {
	case recent > prior*(1+a.h.TrendTolerance):
		return brain.TrendUp, n
	case recent < prior*(1-a.h.TrendTolerance):
		return brain.TrendDown, n
	default:
		return brain.TrendStable, n
	}
}

// LTVFactor compares the newest matured cohort against the newest one at
// least LTVBaselineGap months older, clamped to the configured bounds.
func (a *Aggregator) LTVFactor(cohorts []brain.Cohort) float64 {
	points := brain.MonthlyLTV(cohorts)
	if len(points) == 0 {
		return 1.0
	}
	recent := points[len(points)-1]
	for i := len(points) - 2; i >= 0; i-- {
		if brain.MonthsBetween(points[i].Month, recent.Month) >= a.h.LTVBaselineGap {
			return brain.Clamp(recent.LTV90d/points[i].LTV90d, a.h.LTVFactorMin, a.h.LTVFactorMax)
		}
	}
	return 1.0
}
