package oracle

import (
	"math"

	"marketing-brain/internal/brain"
)

// LTVDrift compares the mean 90-day LTV of the newest cohorts with cohorts at
// least DriftBaselineAge months older. nil means no signal: too few cohorts,
// no baseline, or a drift inside the threshold. A rise is still reported but
// only a decline is graded above low.
func (d *Detector) LTVDrift(cohorts []brain.Cohort) *brain.LTVDrift {
	points := brain.MonthlyLTV(cohorts)
	if len(points) < d.h.DriftMinCohorts {
		return nil
	}

	n := len(points)
	recentCount := d.h.DriftRecentCohorts
	if recentCount > n {
		recentCount = n
	}
	recent := points[n-recentCount:]
	latest := recent[len(recent)-1]

	baseline := make([]brain.CohortPoint, 0)
	for _, p := range points[:n-recentCount] {
		if brain.MonthsBetween(p.Month, latest.Month) >= d.h.DriftBaselineAge {
			baseline = append(baseline, p)
		}
	}
	if len(baseline) == 0 {
		return nil
	}

	recentMean := meanLTV(recent)
	baselineMean := meanLTV(baseline)
	drift := brain.Change(recentMean, baselineMean)
	if math.Abs(drift) < d.h.DriftThreshold {
		return nil
	}

	return &brain.LTVDrift{
		RecentCohortMonth:   latest.Label(),
		BaselineCohortMonth: baseline[len(baseline)-1].Label(),
		RecentLTV90d:        brain.RoundCents(recentMean),
		BaselineLTV90d:      brain.RoundCents(baselineMean),
		DriftPct:            brain.Percent(drift),
		DriftSeverity:       d.driftSeverity(drift),
		Trend:               driftTrend(recent),
	}
}

func (d *Detector) driftSeverity(drift float64) brain.Severity {
	decline := -drift
	switch {
	case decline > d.h.DriftHigh:
		return brain.SeverityHigh
	case decline > d.h.DriftMedium:
		return brain.SeverityMedium
	default:
		return brain.SeverityLow
	}
}

// driftTrend reads the month-over-month changes of the recent cohorts.
func driftTrend(recent []brain.CohortPoint) brain.DriftTrend {
	if len(recent) < 2 {
		return brain.DriftStabilizing
	}
	last := recent[len(recent)-1].LTV90d - recent[len(recent)-2].LTV90d
	if last > 0 {
		return brain.DriftImproving
	}
	if len(recent) >= 3 {
		prev := recent[len(recent)-2].LTV90d - recent[len(recent)-3].LTV90d
		if last < 0 && last < prev {
			return brain.DriftAccelerating
		}
	}
	return brain.DriftStabilizing
}

func meanLTV(points []brain.CohortPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.LTV90d
	}
	return brain.Ratio(sum, float64(len(points)))
}
