package oracle

import "marketing-brain/internal/brain"

// ROIDecay compares each channel's recent ROAS with its own baseline.
func (d *Detector) ROIDecay(channels []brain.Channel, rows []brain.DailyMetric) []brain.ROIDecay {
	names := make(map[string]string, len(channels))
	reference := make([]string, 0, len(channels))
	for _, ch := range channels {
		names[ch.ID] = ch.Name
		reference = append(reference, ch.ID)
	}
	order, grouped := groupByEntity(rows, func(m brain.DailyMetric) string { return m.ChannelID }, reference)

	out := make([]brain.ROIDecay, 0)
	for _, id := range order {
		recentDays, baselineDays, ok := brain.SplitWindows(brain.GroupByDay(grouped[id]), d.h.RecentWindowDays, d.h.BaselineWindowDays, d.h.MinHistoryDays)
		if !ok {
			continue
		}
		recent := brain.Stats(recentDays)
		baseline := brain.Stats(baselineDays)

		decay := brain.Ratio(baseline.ROAS-recent.ROAS, baseline.ROAS)
		spendChange := brain.Change(recent.DailySpend, baseline.DailySpend)
		spendUpNoGain := spendChange > d.h.DecaySpendIncrease && recent.ROAS <= baseline.ROAS
		if decay <= d.h.DecayThreshold && !spendUpNoGain {
			continue
		}

		out = append(out, brain.ROIDecay{
			ChannelID:      id,
			ChannelName:    names[id],
			RecentROAS:     brain.Round4(recent.ROAS),
			BaselineROAS:   brain.Round4(baseline.ROAS),
			DecayPct:       brain.Percent(decay),
			SpendChangePct: brain.Percent(spendChange),
			DecaySeverity:  d.decaySeverity(decay, spendChange),
		})
	}
	return out
}

func (d *Detector) decaySeverity(decay, spendChange float64) brain.Severity {
	switch {
	case decay > d.h.DecayHigh || (decay > d.h.DecayHighWithSpend && spendChange > d.h.DecayHighSpend):
		return brain.SeverityHigh
	case decay > d.h.DecayMedium || (decay > d.h.DecayMediumWithSpend && spendChange > d.h.DecayMediumSpend):
		return brain.SeverityMedium
	default:
		return brain.SeverityLow
	}
}
