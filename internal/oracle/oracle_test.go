package oracle

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	return New(brain.DefaultHeuristics(), zerolog.Nop())
}

type dayFn func(i int) brain.DailyMetric

// creativeDays builds `days` rows for a creative; fn receives the day index
// and the row is stamped with id and date.
func creativeDays(id string, days int, fn dayFn) []brain.DailyMetric {
	rows := make([]brain.DailyMetric, 0, days)
	for i := 0; i < days; i++ {
		row := fn(i)
		row.Date = start.AddDate(0, 0, i)
		row.CreativeID = id
		row.ChannelID = "meta"
		rows = append(rows, row)
	}
	return rows
}

func channelDays(id string, days int, fn dayFn) []brain.DailyMetric {
	rows := make([]brain.DailyMetric, 0, days)
	for i := 0; i < days; i++ {
		row := fn(i)
		row.Date = start.AddDate(0, 0, i)
		row.ChannelID = id
		rows = append(rows, row)
	}
	return rows
}

// split returns baseline for the first 14 of 21 days and recent afterwards.
func split(baseline, recent brain.DailyMetric) dayFn {
	return func(i int) brain.DailyMetric {
		if i >= 14 {
			return recent
		}
		return baseline
	}
}

func TestCreativeFatigueCVRDrop(t *testing.T) {
	rows := creativeDays("c1", 21, split(
		brain.DailyMetric{Clicks: 1000, Conversions: 80, Spend: 800, Frequency: 3.0},
		brain.DailyMetric{Clicks: 1000, Conversions: 50, Spend: 500, Frequency: 3.0},
	))
	got := newDetector().CreativeFatigue([]brain.Creative{{ID: "c1", Name: "Spring", ChannelID: "meta", Status: brain.CreativeActive}}, rows)
	if len(got) != 1 {
		t.Fatalf("expected one fatigue record, got %d", len(got))
	}
	f := got[0]
	if f.BaselineCVR != 0.08 || f.RecentCVR != 0.05 {
		t.Fatalf("unexpected cvr windows: recent %v baseline %v", f.RecentCVR, f.BaselineCVR)
	}
	if f.FatigueProbability7d != 0.375 {
		t.Fatalf("expected probability 0.375, got %v", f.FatigueProbability7d)
	}
	if f.FatigueProbability14d != 0.4875 {
		t.Fatalf("expected 14d probability 0.4875, got %v", f.FatigueProbability14d)
	}
	if f.PredictedPerformanceDrop != 0.5 {
		t.Fatalf("expected drop capped at 0.5, got %v", f.PredictedPerformanceDrop)
	}
	if f.Severity() != brain.SeverityLow {
		t.Fatalf("expected low severity, got %s", f.Severity())
	}
	if f.RecentDailySpend != 500 {
		t.Fatalf("expected recent daily spend 500, got %v", f.RecentDailySpend)
	}
}

func TestCreativeFatigueFrequencyOnly(t *testing.T) {
	rows := creativeDays("c1", 21, split(
		brain.DailyMetric{Clicks: 1000, Conversions: 80, Spend: 800, Frequency: 2.0},
		brain.DailyMetric{Clicks: 1000, Conversions: 80, Spend: 800, Frequency: 4.0},
	))
	got := newDetector().CreativeFatigue(nil, rows)
	if len(got) != 1 {
		t.Fatalf("frequency above 3.5 should fire, got %d records", len(got))
	}
	if got[0].FatigueProbability7d != 0.15 {
		t.Fatalf("expected 0.15, got %v", got[0].FatigueProbability7d)
	}
}

func TestCreativeFatigueQuietCreative(t *testing.T) {
	steady := brain.DailyMetric{Clicks: 1000, Conversions: 80, Spend: 800, Frequency: 2.0}
	rows := creativeDays("c1", 21, split(steady, steady))
	if got := newDetector().CreativeFatigue(nil, rows); len(got) != 0 {
		t.Fatalf("steady creative must not fire, got %+v", got)
	}
}

func TestCreativeFatigueSkips(t *testing.T) {
	fatigued := split(
		brain.DailyMetric{Clicks: 1000, Conversions: 100, Spend: 1000, Frequency: 3},
		brain.DailyMetric{Clicks: 1000, Conversions: 40, Spend: 1000, Frequency: 5},
	)
	t.Run("paused", func(t *testing.T) {
		rows := creativeDays("c1", 21, fatigued)
		got := newDetector().CreativeFatigue([]brain.Creative{{ID: "c1", Status: brain.CreativePaused}}, rows)
		if len(got) != 0 {
			t.Fatalf("paused creatives are not evaluated")
		}
	})
	t.Run("short history", func(t *testing.T) {
		rows := creativeDays("c1", 13, fatigued)
		if got := newDetector().CreativeFatigue(nil, rows); len(got) != 0 {
			t.Fatalf("13 days must not produce a record, got %d", len(got))
		}
	})
}

// fatiguedAt85 yields cvr drop 0.5, cpa increase 1.0 and frequency 4, i.e.
// 0.4 + 0.3 + 0.15 = 0.85.
func fatiguedAt85(id string) []brain.DailyMetric {
	return creativeDays(id, 21, split(
		brain.DailyMetric{Clicks: 1000, Conversions: 100, Spend: 1000, Frequency: 3},
		brain.DailyMetric{Clicks: 1000, Conversions: 50, Spend: 1000, Frequency: 4},
	))
}

func TestThreeHighFatigueCreativesAreRed(t *testing.T) {
	rows := append(append(fatiguedAt85("c1"), fatiguedAt85("c2")...), fatiguedAt85("c3")...)
	out := newDetector().Detect(Input{CreativeDailyMetrics: rows})

	if len(out.CreativeFatigue) != 3 {
		t.Fatalf("expected three fatigue records, got %d", len(out.CreativeFatigue))
	}
	for _, f := range out.CreativeFatigue {
		if f.FatigueProbability7d != 0.85 {
			t.Fatalf("expected probability 0.85, got %v", f.FatigueProbability7d)
		}
	}
	if out.GlobalRiskLevel != brain.RiskRed {
		t.Fatalf("expected red, got %s", out.GlobalRiskLevel)
	}
	if out.GlobalRiskScore != 90 {
		t.Fatalf("expected score 90, got %d", out.GlobalRiskScore)
	}
	if out.LTVDrift != nil {
		t.Fatalf("no cohorts means no drift signal")
	}
	if len(out.LegacyRisks) != 3 || out.LegacyRisks[0].Type != brain.RiskFatigue {
		t.Fatalf("unexpected legacy risks: %+v", out.LegacyRisks)
	}
}

func TestTwoHighFatigueCreativesAreYellow(t *testing.T) {
	rows := append(fatiguedAt85("c1"), fatiguedAt85("c2")...)
	out := newDetector().Detect(Input{CreativeDailyMetrics: rows})
	if out.GlobalRiskLevel != brain.RiskYellow {
		t.Fatalf("expected yellow, got %s", out.GlobalRiskLevel)
	}
}

func TestROIDecay(t *testing.T) {
	cases := []struct {
		name     string
		baseline brain.DailyMetric
		recent   brain.DailyMetric
		fires    bool
		severity brain.Severity
	}{
		{"steep decay", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 100, Revenue: 200}, true, brain.SeverityHigh},
		{"mild decay", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 100, Revenue: 250}, true, brain.SeverityLow},
		{"decay with spend push", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 125, Revenue: 290}, true, brain.SeverityHigh},
		{"spend up flat roas", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 130, Revenue: 390}, true, brain.SeverityLow},
		{"spend up improving roas", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 130, Revenue: 420}, false, ""},
		{"healthy", brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 100, Revenue: 290}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := channelDays("meta", 21, split(tc.baseline, tc.recent))
			got := newDetector().ROIDecay([]brain.Channel{{ID: "meta", Name: "Meta"}}, rows)
			if !tc.fires {
				if len(got) != 0 {
					t.Fatalf("expected no decay record, got %+v", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("expected one decay record, got %d", len(got))
			}
			if got[0].DecaySeverity != tc.severity {
				t.Fatalf("expected %s, got %s (decay %v spend %v)", tc.severity, got[0].DecaySeverity, got[0].DecayPct, got[0].SpendChangePct)
			}
			if got[0].ChannelName != "Meta" {
				t.Fatalf("channel name not carried: %+v", got[0])
			}
		})
	}
}

func TestROIDecayInsufficientHistory(t *testing.T) {
	rows := channelDays("meta", 10, func(i int) brain.DailyMetric {
		if i >= 5 {
			return brain.DailyMetric{Spend: 100, Revenue: 50}
		}
		return brain.DailyMetric{Spend: 100, Revenue: 400}
	})
	if got := newDetector().ROIDecay(nil, rows); len(got) != 0 {
		t.Fatalf("10 days of history must yield no record, got %+v", got)
	}
}

func monthly(values ...float64) []brain.Cohort {
	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cohorts := make([]brain.Cohort, 0, len(values))
	for i, v := range values {
		cohorts = append(cohorts, brain.Cohort{CohortMonth: first.AddDate(0, i, 0), AcquisitionChannel: brain.AllChannels, LTV90d: v})
	}
	return cohorts
}

func TestLTVDrift(t *testing.T) {
	cases := []struct {
		name     string
		cohorts  []brain.Cohort
		nilWant  bool
		severity brain.Severity
		trend    brain.DriftTrend
	}{
		{"accelerating decline", monthly(100, 100, 100, 100, 90, 90, 90, 80, 76, 70), false, brain.SeverityHigh, brain.DriftAccelerating},
		{"improving", monthly(100, 100, 100, 100, 90, 90, 90, 70, 72, 78), false, brain.SeverityHigh, brain.DriftImproving},
		{"stabilizing medium", monthly(100, 100, 100, 100, 90, 90, 90, 85, 83, 81), false, brain.SeverityMedium, brain.DriftStabilizing},
		{"low", monthly(100, 100, 100, 100, 90, 90, 90, 88, 88, 88), false, brain.SeverityLow, brain.DriftStabilizing},
		{"rise is not a risk", monthly(100, 100, 100, 100, 90, 90, 90, 130, 135, 140), false, brain.SeverityLow, brain.DriftImproving},
		{"within threshold", monthly(100, 100, 100, 100, 90, 90, 90, 95, 95, 95), true, "", ""},
		{"too few cohorts", monthly(100, 50, 40), true, "", ""},
		{"no baseline old enough", monthly(100, 100, 60, 60, 60), true, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := newDetector().LTVDrift(tc.cohorts)
			if tc.nilWant {
				if got != nil {
					t.Fatalf("expected no signal, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a drift record")
			}
			if got.DriftSeverity != tc.severity {
				t.Fatalf("expected %s, got %s (drift %v)", tc.severity, got.DriftSeverity, got.DriftPct)
			}
			if got.Trend != tc.trend {
				t.Fatalf("expected trend %s, got %s", tc.trend, got.Trend)
			}
			if got.RecentCohortMonth != "2023-10" || got.BaselineCohortMonth != "2023-04" {
				t.Fatalf("unexpected cohort months %s / %s", got.RecentCohortMonth, got.BaselineCohortMonth)
			}
		})
	}
}

func TestLTVDriftBlendsChannelCohorts(t *testing.T) {
	cohorts := monthly(100, 100, 100, 100, 90, 90, 90, 70, 70, 70)
	for i := range cohorts {
		cohorts[i].AcquisitionChannel = "meta"
	}
	// An immature cohort must not count as a month.
	cohorts = append(cohorts, brain.Cohort{CohortMonth: time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), AcquisitionChannel: "meta"})
	got := newDetector().LTVDrift(cohorts)
	if got == nil || got.DriftPct != -30 {
		t.Fatalf("expected -30%% drift, got %+v", got)
	}
}

func TestAggregateLevels(t *testing.T) {
	decay := func(s brain.Severity) brain.Risk { return brain.ROIDecay{ChannelID: "x", DecaySeverity: s} }
	cases := []struct {
		name  string
		risks []brain.Risk
		level brain.RiskLevel
		score int
	}{
		{"none", nil, brain.RiskGreen, 0},
		{"lows", []brain.Risk{decay(brain.SeverityLow), decay(brain.SeverityLow)}, brain.RiskGreen, 10},
		{"one medium", []brain.Risk{decay(brain.SeverityMedium)}, brain.RiskGreen, 15},
		{"two medium", []brain.Risk{decay(brain.SeverityMedium), decay(brain.SeverityMedium)}, brain.RiskYellow, 30},
		{"one high", []brain.Risk{decay(brain.SeverityHigh)}, brain.RiskYellow, 30},
		{"saturated", []brain.Risk{decay(brain.SeverityHigh), decay(brain.SeverityHigh), decay(brain.SeverityHigh), decay(brain.SeverityMedium)}, brain.RiskRed, 100},
	}
	d := newDetector()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			level, score := d.Aggregate(tc.risks)
			if level != tc.level || score != tc.score {
				t.Fatalf("expected %s/%d, got %s/%d", tc.level, tc.score, level, score)
			}
		})
	}
}

func TestDetectorFailureIsIsolated(t *testing.T) {
	d := newDetector()
	out := brain.OracleOutput{}
	d.isolate(&out, "oracle.broken", func() error { panic("boom") })
	d.isolate(&out, "oracle.failing", func() error { return errors.New("bad data") })
	d.isolate(&out, "oracle.fine", func() error { return nil })
	if len(out.Failures) != 2 {
		t.Fatalf("expected two recorded failures, got %+v", out.Failures)
	}
	if !strings.Contains(out.Failures[0].Message, "boom") || out.Failures[1].Component != "oracle.failing" {
		t.Fatalf("unexpected failures: %+v", out.Failures)
	}
}

func TestRiskPercentagesAreSerializedOnHundredScale(t *testing.T) {
	rows := channelDays("meta", 21, split(brain.DailyMetric{Spend: 100, Revenue: 300}, brain.DailyMetric{Spend: 100, Revenue: 200}))
	got := newDetector().ROIDecay([]brain.Channel{{ID: "meta", Name: "Meta"}}, rows)
	if len(got) != 1 || got[0].DecayPct != 33.33 || got[0].SpendChangePct != 0 {
		t.Fatalf("expected 33.33%% decay on flat spend, got %+v", got)
	}

	payload, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"decayPercentage":33.33`) {
		t.Fatalf("decayPercentage should be a percentage: %s", payload)
	}
	if summary := brain.Summarize(got[0]); math.Abs(summary.Score-0.3333) > 1e-9 {
		t.Fatalf("summary score stays a fraction, got %v", summary.Score)
	}
}

func TestRisingLTVStaysGreen(t *testing.T) {
	out := newDetector().Detect(Input{Cohorts: monthly(100, 100, 100, 100, 90, 90, 90, 130, 135, 140)})
	if out.LTVDrift == nil || out.LTVDrift.DriftPct != 35 {
		t.Fatalf("expected a +35%% drift record, got %+v", out.LTVDrift)
	}
	if out.LTVDrift.DriftSeverity != brain.SeverityLow {
		t.Fatalf("a rise must not be graded as a risk, got %s", out.LTVDrift.DriftSeverity)
	}
	if out.GlobalRiskLevel != brain.RiskGreen {
		t.Fatalf("rising LTV should keep the level green, got %s (%d)", out.GlobalRiskLevel, out.GlobalRiskScore)
	}
}
