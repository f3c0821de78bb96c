package curiosity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// render writes the executive, analyst and imperative lines for an action.
func render(a brain.ActionRecommendation, f facts) brain.Renderings {
	impact := usd(a.EstimatedImpactUSD)
	switch a.Type {
	case brain.ActionShiftBudget:
		return brain.Renderings{
			Executive:  fmt.Sprintf("Reallocating %s from %s to %s could add about %s in revenue.", usd(f.amount), f.fromName, f.toName, impact),
			Analyst:    fmt.Sprintf("%s ROAS %.2f vs %s ROAS %.2f; shift %s, expected delta %s.", f.fromName, f.fromROAS, f.toName, f.toROAS, usd(f.amount), impact),
			Imperative: fmt.Sprintf("Move %s of budget from %s to %s.", usd(f.amount), f.fromName, f.toName),
		}
	case brain.ActionPauseCreative:
		return brain.Renderings{
			Executive:  fmt.Sprintf("Creative %s is wearing out; pausing it protects about %s this week.", f.fromName, impact),
			Analyst:    fmt.Sprintf("Fatigue p7 %.0f%%, predicted drop %.0f%% on %s/day over %d days = %s.", f.probability*100, f.drop*100, usd(f.dailySpend), f.days, impact),
			Imperative: fmt.Sprintf("Pause creative %s and rotate in fresh assets.", f.fromName),
		}
	case brain.ActionIncreaseBudget:
		return brain.Renderings{
			Executive:  fmt.Sprintf("%s is outperforming; adding %s could return about %s.", f.toName, usd(f.amount), impact),
			Analyst:    fmt.Sprintf("%s ROAS %.2f; +%s spend at (ROAS-1) = %s.", f.toName, f.toROAS, usd(f.amount), impact),
			Imperative: fmt.Sprintf("Increase %s budget by %s.", f.toName, usd(f.amount)),
		}
	case brain.ActionFocusRetention:
		return brain.Renderings{
			Executive:  fmt.Sprintf("Customer value from recent cohorts is shifting; retention work is worth about %s.", impact),
			Analyst:    fmt.Sprintf("Cohort LTV90 drift %+.1f%% (%s).", f.driftPct, f.trend),
			Imperative: "Launch a retention campaign for customers acquired in the last three months.",
		}
	default:
		panic(fmt.Sprintf("curiosity: no rendering for %q", a.Type))
	}
}

// usd formats whole dollars with thousands separators, e.g. $12,500.
func usd(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
