package brain

import (
	"sort"
	"time"
)

// CohortPoint is the 90-day value of one acquisition month.
type CohortPoint struct {
	Month  time.Time
	LTV90d float64
}

// Label formats the month as YYYY-MM.
func (p CohortPoint) Label() string {
	return p.Month.Format("2006-01")
}

// MonthlyLTV collapses cohort rows to one point per month with a matured
// ltv90d, oldest first. An "All" row wins over per-channel rows of the same
// month; otherwise per-channel values are averaged.
func MonthlyLTV(cohorts []Cohort) []CohortPoint {
	type acc struct {
		all      float64
		hasAll   bool
		sum      float64
		channels int
	}
	months := make(map[time.Time]*acc)
	for _, c := range cohorts {
		if c.LTV90d <= 0 {
			continue
		}
		key := TruncateMonth(c.CohortMonth)
		a, ok := months[key]
		if !ok {
			a = &acc{}
			months[key] = a
		}
		if c.AcquisitionChannel == "" || c.AcquisitionChannel == AllChannels {
			a.all = c.LTV90d
			a.hasAll = true
			continue
		}
		a.sum += c.LTV90d
		a.channels++
	}

	points := make([]CohortPoint, 0, len(months))
	for month, a := range months {
		value := a.all
		if !a.hasAll {
			value = a.sum / float64(a.channels)
		}
		points = append(points, CohortPoint{Month: month, LTV90d: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month.Before(points[j].Month) })
	return points
}

// TruncateMonth returns the first instant of t's month in UTC.
func TruncateMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween counts whole calendar months from earlier to later.
func MonthsBetween(earlier, later time.Time) int {
	ey, em, _ := earlier.UTC().Date()
	ly, lm, _ := later.UTC().Date()
	return (ly-ey)*12 + int(lm-em)
}
