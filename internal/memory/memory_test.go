package memory

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func newAggregator() *Aggregator {
	return New(brain.DefaultHeuristics(), zerolog.Nop())
}

// series builds one row per day for channel with spend/revenue produced by fn.
func series(channel string, days int, fn func(i int) (float64, float64)) []brain.DailyMetric {
	rows := make([]brain.DailyMetric, 0, days)
	for i := 0; i < days; i++ {
		spend, revenue := fn(i)
		rows = append(rows, brain.DailyMetric{Date: day0.AddDate(0, 0, i), ChannelID: channel, Spend: spend, Revenue: revenue})
	}
	return rows
}

func findChannel(t *testing.T, out brain.MemoryOutput, id string) brain.ChannelPerformance {
	t.Helper()
	for _, ch := range out.Channels {
		if ch.ID == id {
			return ch
		}
	}
	t.Fatalf("channel %s missing from output", id)
	return brain.ChannelPerformance{}
}

func TestAggregateWinnerAgainstBlendedROAS(t *testing.T) {
	in := Input{
		DailyMetrics: []brain.DailyMetric{
			{Date: day0, ChannelID: "meta", Spend: 2000, Revenue: 7500},
			{Date: day0, ChannelID: "google", Spend: 8000, Revenue: 17500},
		},
		Channels: []brain.Channel{
			{ID: "meta", Name: "Meta", Platform: "meta", IsActive: true},
			{ID: "google", Name: "Google", Platform: "google", IsActive: true},
		},
	}

	out := newAggregator().Aggregate(in)

	if out.Totals.TotalSpend != 10000 || out.Totals.TotalRevenue != 25000 {
		t.Fatalf("unexpected totals: %+v", out.Totals)
	}
	if out.Totals.BlendedROAS != 2.5 {
		t.Fatalf("expected blended roas 2.5, got %v", out.Totals.BlendedROAS)
	}
	if out.Totals.MER != out.Totals.BlendedROAS {
		t.Fatalf("mer must equal blended roas")
	}
	meta := findChannel(t, out, "meta")
	if meta.ROAS != 3.75 {
		t.Fatalf("expected meta roas 3.75, got %v", meta.ROAS)
	}
	if meta.Status != brain.StatusWinner {
		t.Fatalf("expected meta winner, got %s", meta.Status)
	}
	if meta.ContributionPct != 30 {
		t.Fatalf("expected 30%% contribution, got %v", meta.ContributionPct)
	}
	google := findChannel(t, out, "google")
	if google.Status != brain.StatusNeutral {
		t.Fatalf("google roas %.4f should be neutral, got %s", google.ROAS, google.Status)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	out := newAggregator().Aggregate(Input{Channels: []brain.Channel{{ID: "meta", IsActive: true}}})
	if out.Totals.TotalSpend != 0 || out.Totals.TotalRevenue != 0 || out.Totals.BlendedROAS != 0 {
		t.Fatalf("expected zero totals, got %+v", out.Totals)
	}
	if len(out.Channels) != 0 {
		t.Fatalf("expected empty channel list, got %d", len(out.Channels))
	}
	if out.Totals.LTVFactor != 1 {
		t.Fatalf("expected neutral ltv factor, got %v", out.Totals.LTVFactor)
	}
}

func TestAggregateZeroSpendChannel(t *testing.T) {
	in := Input{
		DailyMetrics: []brain.DailyMetric{
			{Date: day0, ChannelID: "tiktok", Spend: 0, Revenue: 0},
			{Date: day0, ChannelID: "meta", Spend: 100, Revenue: 300},
		},
		Channels: []brain.Channel{{ID: "tiktok", IsActive: true}, {ID: "meta", IsActive: true}},
	}
	out := newAggregator().Aggregate(in)
	tiktok := findChannel(t, out, "tiktok")
	if tiktok.ROAS != 0 {
		t.Fatalf("zero spend channel must have roas 0, got %v", tiktok.ROAS)
	}
	if tiktok.Status != brain.StatusLoser {
		t.Fatalf("roas 0 against blended 3 should be loser, got %s", tiktok.Status)
	}
}

func TestAggregateAllZeroSpend(t *testing.T) {
	in := Input{
		DailyMetrics: []brain.DailyMetric{{Date: day0, ChannelID: "meta"}},
		Channels:     []brain.Channel{{ID: "meta", IsActive: true}},
	}
	out := newAggregator().Aggregate(in)
	if out.Totals.BlendedROAS != 0 {
		t.Fatalf("blended roas must be exactly 0 without spend, got %v", out.Totals.BlendedROAS)
	}
	if got := findChannel(t, out, "meta").Status; got != brain.StatusNeutral {
		t.Fatalf("expected neutral, got %s", got)
	}
}

func TestAggregateSkipsInactiveChannelsWithoutData(t *testing.T) {
	in := Input{
		DailyMetrics: []brain.DailyMetric{{Date: day0, ChannelID: "meta", Spend: 10, Revenue: 20}},
		Channels:     []brain.Channel{{ID: "meta", IsActive: true}, {ID: "old", IsActive: false}, {ID: "fresh", IsActive: true}},
	}
	out := newAggregator().Aggregate(in)
	if len(out.Channels) != 2 {
		t.Fatalf("expected meta and fresh, got %+v", out.Channels)
	}
}

func TestStatusIsExhaustiveAndExclusive(t *testing.T) {
	agg := newAggregator()
	for _, blended := range []float64{0, 0.5, 1, 2.5, 4} {
		for roas := 0.0; roas <= 6; roas += 0.05 {
			status := agg.Status(roas, blended)
			winner := roas > blended*1.15
			loser := roas < blended*0.85
			switch status {
			case brain.StatusWinner:
				if !winner {
					t.Fatalf("roas %v blended %v wrongly winner", roas, blended)
				}
			case brain.StatusLoser:
				if !loser {
					t.Fatalf("roas %v blended %v wrongly loser", roas, blended)
				}
			case brain.StatusNeutral:
				if winner || loser {
					t.Fatalf("roas %v blended %v wrongly neutral", roas, blended)
				}
			default:
				t.Fatalf("unexpected status %q", status)
			}
		}
	}
}

func TestTrendRequiresFourteenDays(t *testing.T) {
	rows := series("meta", 10, func(i int) (float64, float64) { return 100, float64(100 + 50*i) })
	out := newAggregator().Aggregate(Input{DailyMetrics: rows, Channels: []brain.Channel{{ID: "meta", IsActive: true}}})
	meta := findChannel(t, out, "meta")
	if meta.Trend != brain.TrendStable {
		t.Fatalf("expected stable trend with 10 days, got %s", meta.Trend)
	}
	if meta.TrendDays != 10 {
		t.Fatalf("expected 10 evidence days, got %d", meta.TrendDays)
	}
}

func TestTrendDirections(t *testing.T) {
	cases := []struct {
		name string
		fn   func(i int) (float64, float64)
		want brain.Trend
	}{
		{"up", func(i int) (float64, float64) {
			if i >= 7 {
				return 100, 300
			}
			return 100, 200
		}, brain.TrendUp},
		{"down", func(i int) (float64, float64) {
			if i >= 7 {
				return 100, 150
			}
			return 100, 200
		}, brain.TrendDown},
		{"stable", func(i int) (float64, float64) {
			if i >= 7 {
				return 100, 204
			}
			return 100, 200
		}, brain.TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := series("meta", 14, tc.fn)
			out := newAggregator().Aggregate(Input{DailyMetrics: rows, Channels: []brain.Channel{{ID: "meta", IsActive: true}}})
			if got := findChannel(t, out, "meta").Trend; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func cohort(month time.Time, ltv float64) brain.Cohort {
	return brain.Cohort{CohortMonth: month, AcquisitionChannel: brain.AllChannels, LTV90d: ltv}
}

func TestLTVFactor(t *testing.T) {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		cohorts []brain.Cohort
		want    float64
	}{
		{"no cohorts", nil, 1},
		{"no baseline old enough", []brain.Cohort{cohort(jan, 100), cohort(jan.AddDate(0, 3, 0), 120)}, 1},
		{"ratio", []brain.Cohort{cohort(jan, 100), cohort(jan.AddDate(0, 6, 0), 120)}, 1.2},
		{"clamped high", []brain.Cohort{cohort(jan, 10), cohort(jan.AddDate(0, 7, 0), 1000)}, 2},
		{"clamped low", []brain.Cohort{cohort(jan, 1000), cohort(jan.AddDate(0, 7, 0), 1)}, 0.5},
		{"immature recent ignored", []brain.Cohort{cohort(jan, 100), cohort(jan.AddDate(0, 6, 0), 90), cohort(jan.AddDate(0, 8, 0), 0)}, 0.9},
		{"newest baseline preferred", []brain.Cohort{cohort(jan, 50), cohort(jan.AddDate(0, 1, 0), 100), cohort(jan.AddDate(0, 7, 0), 110)}, 1.1},
	}
	agg := newAggregator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := agg.LTVFactor(tc.cohorts)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLTVAdjustedRevenue(t *testing.T) {
	jan := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	in := Input{
		DailyMetrics: []brain.DailyMetric{{Date: day0, ChannelID: "meta", Spend: 100, Revenue: 1000}},
		Channels:     []brain.Channel{{ID: "meta", IsActive: true}},
		Cohorts:      []brain.Cohort{cohort(jan, 100), cohort(jan.AddDate(0, 6, 0), 80)},
	}
	out := newAggregator().Aggregate(in)
	if out.Totals.LTVAdjustedRevenue != 800 {
		t.Fatalf("expected 800, got %v", out.Totals.LTVAdjustedRevenue)
	}
}
