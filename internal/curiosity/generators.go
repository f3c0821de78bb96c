package curiosity

import (
	"fmt"
	"math"

	"marketing-brain/internal/brain"
)

// shiftBudget moves a slice of every loser's spend to the best winner.
func (e *Engine) shiftBudget(in Input) []candidate {
	winners := in.Memory.Winners()
	if len(winners) == 0 {
		return nil
	}
	best := winners[0]
	for _, w := range winners[1:] {
		if w.ROAS > best.ROAS {
			best = w
		}
	}

	out := make([]candidate, 0)
	for _, loser := range in.Memory.Losers() {
		amount := loser.Spend * e.h.ShiftFraction
		urgency := e.h.ShiftUrgencyScore
		if in.Oracle.Decaying(loser.ID) {
			urgency = e.h.ShiftUrgentScore
		}
		out = append(out, candidate{
			action: brain.ActionRecommendation{
				Type:               brain.ActionShiftBudget,
				Title:              fmt.Sprintf("Shift budget from %s to %s", displayName(loser), displayName(best)),
				Description:        fmt.Sprintf("Move %s of spend from %s (ROAS %.2f) to %s (ROAS %.2f).", usd(amount), displayName(loser), loser.ROAS, displayName(best), best.ROAS),
				EstimatedImpactUSD: math.Max(0, amount*(best.ROAS-loser.ROAS)),
				ConfidenceScore:    e.h.ShiftConfidenceScore,
				UrgencyScore:       urgency,
				Entities: []brain.EntityRef{
					{Kind: brain.EntityChannel, ID: loser.ID, Name: loser.Name, Role: "source"},
					{Kind: brain.EntityChannel, ID: best.ID, Name: best.Name, Role: "target"},
				},
				Rationale: fmt.Sprintf("%s returns %.2f per dollar against %.2f blended; %s returns %.2f.",
					displayName(loser), loser.ROAS, in.Memory.Totals.BlendedROAS, displayName(best), best.ROAS),
			},
			facts: facts{amount: amount, fromName: displayName(loser), toName: displayName(best), fromROAS: loser.ROAS, toROAS: best.ROAS},
		})
	}
	return out
}

// pauseCreatives proposes pausing creatives likely to fatigue within a week.
func (e *Engine) pauseCreatives(in Input) []candidate {
	out := make([]candidate, 0)
	for _, f := range in.Oracle.CreativeFatigue {
		if f.FatigueProbability7d < e.h.PauseMinProbability {
			continue
		}
		daily := e.h.AssumedDailySpend
		if e.h.UseObservedSpend && f.RecentDailySpend > 0 {
			daily = f.RecentDailySpend
		}
		urgency := e.h.PauseUrgencyScore
		if f.FatigueProbability7d > e.h.PauseUrgentAbove {
			urgency = e.h.PauseUrgentScore
		}
		name := f.CreativeName
		if name == "" {
			name = f.CreativeID
		}
		out = append(out, candidate{
			action: brain.ActionRecommendation{
				Type:               brain.ActionPauseCreative,
				Title:              fmt.Sprintf("Pause creative %s", name),
				Description:        fmt.Sprintf("Creative %s shows a %.0f%% fatigue probability over the next 7 days.", name, f.FatigueProbability7d*100),
				EstimatedImpactUSD: daily * f.PredictedPerformanceDrop * float64(e.h.PauseHorizonDays),
				ConfidenceScore:    int(math.Round(f.FatigueProbability7d * 100)),
				UrgencyScore:       urgency,
				Entities:           creativeEntities(f),
				Rationale: fmt.Sprintf("CVR %.2f%% vs %.2f%% baseline, CPA %.2f vs %.2f, frequency %.1f.",
					f.RecentCVR*100, f.BaselineCVR*100, f.RecentCPA, f.BaselineCPA, f.Frequency),
			},
			facts: facts{fromName: name, probability: f.FatigueProbability7d, drop: f.PredictedPerformanceDrop, dailySpend: daily, days: e.h.PauseHorizonDays},
		})
	}
	return out
}

// increaseBudget scales channels well above blended ROAS that are not decaying.
func (e *Engine) increaseBudget(in Input) []candidate {
	threshold := in.Memory.Totals.BlendedROAS * e.h.ScaleMultiplier
	out := make([]candidate, 0)
	for _, ch := range in.Memory.Channels {
		if ch.ROAS <= threshold || in.Oracle.Decaying(ch.ID) {
			continue
		}
		amount := ch.Spend * e.h.ScaleFraction
		out = append(out, candidate{
			action: brain.ActionRecommendation{
				Type:               brain.ActionIncreaseBudget,
				Title:              fmt.Sprintf("Increase budget on %s", displayName(ch)),
				Description:        fmt.Sprintf("Add %s to %s while ROAS holds at %.2f.", usd(amount), displayName(ch), ch.ROAS),
				EstimatedImpactUSD: math.Max(0, amount*(ch.ROAS-1)),
				ConfidenceScore:    e.h.ScaleConfidenceScore,
				UrgencyScore:       e.h.ScaleUrgencyScore,
				Entities:           []brain.EntityRef{{Kind: brain.EntityChannel, ID: ch.ID, Name: ch.Name}},
				Rationale: fmt.Sprintf("ROAS %.2f exceeds %.2fx blended ROAS %.2f with no decay signal.",
					ch.ROAS, e.h.ScaleMultiplier, in.Memory.Totals.BlendedROAS),
			},
			facts: facts{amount: amount, toName: displayName(ch), toROAS: ch.ROAS},
		})
	}
	return out
}

// focusRetention reacts to a medium or high cohort LTV drift.
func (e *Engine) focusRetention(in Input) []candidate {
	drift := in.Oracle.LTVDrift
	if drift == nil {
		return nil
	}
	var impact float64
	var urgency int
	switch drift.DriftSeverity {
	case brain.SeverityHigh:
		impact, urgency = e.h.RetentionHighImpact, e.h.RetentionHighUrgency
	case brain.SeverityMedium:
		impact, urgency = e.h.RetentionMediumImpact, e.h.RetentionMediumUrgency
	default:
		return nil
	}
	return []candidate{{
		action: brain.ActionRecommendation{
			Type:               brain.ActionFocusRetention,
			Title:              "Focus on retention for recent cohorts",
			Description:        fmt.Sprintf("90-day LTV of recent cohorts moved %+.0f%% against cohorts from %s.", drift.DriftPct, drift.BaselineCohortMonth),
			EstimatedImpactUSD: impact,
			ConfidenceScore:    e.h.RetentionConfidence,
			UrgencyScore:       urgency,
			Entities: []brain.EntityRef{
				{Kind: brain.EntityCohort, ID: drift.RecentCohortMonth, Role: "recent"},
				{Kind: brain.EntityCohort, ID: drift.BaselineCohortMonth, Role: "baseline"},
			},
			Rationale: fmt.Sprintf("LTV90 %.2f vs %.2f, trend %s.", drift.RecentLTV90d, drift.BaselineLTV90d, drift.Trend),
		},
		facts: facts{driftPct: drift.DriftPct, trend: drift.Trend},
	}}
}

func displayName(ch brain.ChannelPerformance) string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.ID
}

func creativeEntities(f brain.CreativeFatigue) []brain.EntityRef {
	refs := []brain.EntityRef{{Kind: brain.EntityCreative, ID: f.CreativeID, Name: f.CreativeName}}
	if f.ChannelID != "" {
		refs = append(refs, brain.EntityRef{Kind: brain.EntityChannel, ID: f.ChannelID, Role: "channel"})
	}
	return refs
}
