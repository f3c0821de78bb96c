package brain

import (
	"sort"
	"time"
)

// Day is every metric row recorded for one calendar day.
type Day struct {
	Date time.Time
	Rows []DailyMetric
}

// GroupByDay buckets rows by UTC calendar day, oldest first.
func GroupByDay(rows []DailyMetric) []Day {
	index := make(map[time.Time]int)
	days := make([]Day, 0)
	for _, row := range rows {
		key := TruncateDay(row.Date)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, Day{Date: key})
		}
		days[i].Rows = append(days[i].Rows, row)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// TruncateDay drops the time of day in UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SplitWindows returns the most recent `recent` days and up to `baseline` days
// before them. ok is false when fewer than minHistory days exist.
func SplitWindows(days []Day, recent, baseline, minHistory int) (recentDays, baselineDays []Day, ok bool) {
	n := len(days)
	if n < minHistory || n <= recent {
		return nil, nil, false
	}
	start := n - recent - baseline
	if start < 0 {
		start = 0
	}
	return days[n-recent:], days[start : n-recent], true
}

// WindowStats aggregates a run of days.
type WindowStats struct {
	Days        int
	Spend       float64
	Revenue     float64
	Clicks      int64
	Conversions int64
	Impressions int64
	Frequency   float64
	CVR         float64
	CPA         float64
	ROAS        float64
	DailySpend  float64
}

// Stats computes window ratios. CVR uses conversions/clicks and falls back
// to the mean recorded cvr when no clicks were recorded.
func Stats(days []Day) WindowStats {
	stats := WindowStats{Days: len(days)}
	var rows int
	var freqSum, cvrSum float64
	for _, day := range days {
		for _, row := range day.Rows {
			rows++
			stats.Spend += row.Spend
			stats.Revenue += row.Revenue
			stats.Clicks += row.Clicks
			stats.Conversions += row.Conversions
			stats.Impressions += row.Impressions
			freqSum += row.Frequency
			cvrSum += row.CVR
		}
	}
	if rows == 0 {
		return stats
	}
	stats.Frequency = freqSum / float64(rows)
	if stats.Clicks > 0 {
		stats.CVR = float64(stats.Conversions) / float64(stats.Clicks)
	} else {
		stats.CVR = cvrSum / float64(rows)
	}
	stats.CPA = Ratio(stats.Spend, float64(stats.Conversions))
	stats.ROAS = Ratio(stats.Revenue, stats.Spend)
	stats.DailySpend = Ratio(stats.Spend, float64(stats.Days))
	return stats
}

// DailyROAS is the mean of each day's revenue/spend.
func DailyROAS(days []Day) float64 {
	if len(days) == 0 {
		return 0
	}
	var sum float64
	for _, day := range days {
		var spend, revenue float64
		for _, row := range day.Rows {
			spend += row.Spend
			revenue += row.Revenue
		}
		sum += Ratio(revenue, spend)
	}
	return sum / float64(len(days))
}
