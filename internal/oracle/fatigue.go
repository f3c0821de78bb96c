package oracle

import (
	"math"

	"marketing-brain/internal/brain"
)

// CreativeFatigue compares each active creative's last week against its
// prior two weeks. Creatives with fewer than MinHistoryDays days are skipped.
func (d *Detector) CreativeFatigue(creatives []brain.Creative, rows []brain.DailyMetric) []brain.CreativeFatigue {
	byID := make(map[string]brain.Creative, len(creatives))
	reference := make([]string, 0, len(creatives))
	for _, c := range creatives {
		byID[c.ID] = c
		reference = append(reference, c.ID)
	}
	order, grouped := groupByEntity(rows, func(m brain.DailyMetric) string { return m.CreativeID }, reference)

	out := make([]brain.CreativeFatigue, 0)
	for _, id := range order {
		creative, known := byID[id]
		if known && creative.Status == brain.CreativePaused {
			continue
		}
		recentDays, baselineDays, ok := brain.SplitWindows(brain.GroupByDay(grouped[id]), d.h.RecentWindowDays, d.h.BaselineWindowDays, d.h.MinHistoryDays)
		if !ok {
			continue
		}
		recent := brain.Stats(recentDays)
		baseline := brain.Stats(baselineDays)

		cvrDrop := brain.Ratio(baseline.CVR-recent.CVR, baseline.CVR)
		cpaIncrease := brain.Ratio(recent.CPA-baseline.CPA, baseline.CPA)
		if cvrDrop <= d.h.FatigueCVRDrop && cpaIncrease <= d.h.FatigueCPAIncrease && recent.Frequency <= d.h.FatigueFrequency {
			continue
		}

		p7 := brain.Round4(d.fatigueProbability(cvrDrop, cpaIncrease, recent.Frequency))
		p14 := brain.Round4(math.Min(p7*d.h.Fatigue14dMultiplier, d.h.FatigueProbabilityCap))
		drop := brain.Round4(brain.Clamp(math.Max(cvrDrop, cpaIncrease)*d.h.DropMultiplier, 0, d.h.DropCap))

		channelID := creative.ChannelID
		if channelID == "" && len(grouped[id]) > 0 {
			channelID = grouped[id][0].ChannelID
		}
		out = append(out, brain.CreativeFatigue{
			CreativeID:               id,
			CreativeName:             creative.Name,
			ChannelID:                channelID,
			FatigueProbability7d:     p7,
			FatigueProbability14d:    p14,
			PredictedPerformanceDrop: drop,
			RecentCVR:                brain.Round4(recent.CVR),
			BaselineCVR:              brain.Round4(baseline.CVR),
			RecentCPA:                brain.RoundCents(recent.CPA),
			BaselineCPA:              brain.RoundCents(baseline.CPA),
			Frequency:                brain.Round4(recent.Frequency),
			RecentDailySpend:         brain.RoundCents(recent.DailySpend),
			FatigueSeverity:          d.fatigueSeverity(p7),
		})
	}
	return out
}

func (d *Detector) fatigueProbability(cvrDrop, cpaIncrease, frequency float64) float64 {
	p := d.h.FatigueCVRWeight*brain.Unit(cvrDrop/d.h.FatigueCVRScale) +
		d.h.FatigueCPAWeight*brain.Unit(cpaIncrease/d.h.FatigueCPAScale) +
		d.h.FatigueFreqWeight*brain.Unit((frequency-d.h.FatigueFreqFloor)/d.h.FatigueFreqScale)
	return math.Min(p, d.h.FatigueProbabilityCap)
}

func (d *Detector) fatigueSeverity(p float64) brain.Severity {
	switch {
	case p > d.h.FatigueHighAbove:
		return brain.SeverityHigh
	case p > d.h.FatigueMediumAbove:
		return brain.SeverityMedium
	default:
		return brain.SeverityLow
	}
}
