package oracle

import (
	"sort"

	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

// Input is what the risk stage reads for one organization.
type Input struct {
	DailyMetrics         []brain.DailyMetric
	Creatives            []brain.Creative
	CreativeDailyMetrics []brain.DailyMetric
	Cohorts              []brain.Cohort
	Channels             []brain.Channel
	Memory               brain.MemoryOutput
}

// Detector runs the fatigue, decay and drift detectors.
type Detector struct {
	h      brain.Heuristics
	logger zerolog.Logger
}

// New constructs a Detector.
func New(h brain.Heuristics, logger zerolog.Logger) *Detector {
	return &Detector{h: h, logger: logger.With().Str("component", "oracle").Logger()}
}

// Detect evaluates every detector independently and aggregates a global level.
// A failing detector is recorded in Failures; the others still report.
func (d *Detector) Detect(in Input) brain.OracleOutput {
	out := brain.OracleOutput{
		CreativeFatigue: make([]brain.CreativeFatigue, 0),
		ROIDecay:        make([]brain.ROIDecay, 0),
		LegacyRisks:     make([]brain.RiskSummary, 0),
	}

	d.isolate(&out, "oracle.creative_fatigue", func() error {
		out.CreativeFatigue = d.CreativeFatigue(in.Creatives, in.CreativeDailyMetrics)
		return nil
	})
	d.isolate(&out, "oracle.roi_decay", func() error {
		out.ROIDecay = d.ROIDecay(knownChannels(in.Channels, in.Memory), in.DailyMetrics)
		return nil
	})
	d.isolate(&out, "oracle.ltv_drift", func() error {
		out.LTVDrift = d.LTVDrift(in.Cohorts)
		return nil
	})

	risks := Risks(out)
	for _, r := range risks {
		out.LegacyRisks = append(out.LegacyRisks, brain.Summarize(r))
	}
	out.GlobalRiskLevel, out.GlobalRiskScore = d.Aggregate(risks)

	d.logger.Debug().
		Int("fatigue", len(out.CreativeFatigue)).
		Int("decay", len(out.ROIDecay)).
		Bool("ltv_drift", out.LTVDrift != nil).
		Str("level", string(out.GlobalRiskLevel)).
		Int("score", out.GlobalRiskScore).
		Msg("risks detected")
	return out
}

func (d *Detector) isolate(out *brain.OracleOutput, component string, fn func() error) {
	if err := brain.Guard(component, fn); err != nil {
		d.logger.Warn().Err(err).Str("detector", component).Msg("detector failed; continuing without it")
		out.Failures = append(out.Failures, brain.Failure(component, err))
	}
}

// Risks lists every record of out as the Risk variant interface.
func Risks(out brain.OracleOutput) []brain.Risk {
	risks := make([]brain.Risk, 0, len(out.CreativeFatigue)+len(out.ROIDecay)+1)
	for _, f := range out.CreativeFatigue {
		risks = append(risks, f)
	}
	for _, r := range out.ROIDecay {
		risks = append(risks, r)
	}
	if out.LTVDrift != nil {
		risks = append(risks, *out.LTVDrift)
	}
	return risks
}

// Aggregate counts severities across all detectors into a level and a score
// where higher means more risk.
func (d *Detector) Aggregate(risks []brain.Risk) (brain.RiskLevel, int) {
	var high, medium, low int
	for _, r := range risks {
		switch r.Severity() {
		case brain.SeverityHigh:
			high++
		case brain.SeverityMedium:
			medium++
		default:
			low++
		}
	}

	level := brain.RiskGreen
	switch {
	case high >= d.h.RedHighCount:
		level = brain.RiskRed
	case high >= d.h.YellowHighCount || medium >= d.h.YellowMediumCount:
		level = brain.RiskYellow
	}

	score := high*d.h.RiskHighPoints + medium*d.h.RiskMediumPoints + low*d.h.RiskLowPoints
	if score > 100 {
		score = 100
	}
	return level, score
}

// knownChannels extends the reference list with channels MEMORY attributed
// from rows that had no reference entry.
func knownChannels(channels []brain.Channel, memory brain.MemoryOutput) []brain.Channel {
	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		seen[ch.ID] = true
	}
	out := append([]brain.Channel(nil), channels...)
	for _, perf := range memory.Channels {
		if !seen[perf.ID] {
			out = append(out, brain.Channel{ID: perf.ID, Name: perf.Name, Platform: perf.Platform})
		}
	}
	return out
}

// groupByEntity splits rows by key, returning keys in reference order
// followed by unreferenced keys sorted.
func groupByEntity(rows []brain.DailyMetric, key func(brain.DailyMetric) string, reference []string) ([]string, map[string][]brain.DailyMetric) {
	grouped := make(map[string][]brain.DailyMetric)
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		grouped[k] = append(grouped[k], row)
	}

	order := make([]string, 0, len(grouped))
	seen := make(map[string]bool)
	for _, id := range reference {
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	extra := make([]string, 0)
	for id := range grouped {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(order, extra...), grouped
}
