package curiosity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
)

// actionNamespace scopes the name-based action IDs.
var actionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("marketing-brain/actions"))

// Input is what the recommendation stage reads for one organization.
type Input struct {
	OrganizationID string
	AsOf           time.Time
	Memory         brain.MemoryOutput
	Oracle         brain.OracleOutput
}

// Engine runs the action generators and ranks their candidates.
type Engine struct {
	h      brain.Heuristics
	logger zerolog.Logger
}

// New constructs an Engine.
func New(h brain.Heuristics, logger zerolog.Logger) *Engine {
	return &Engine{h: h, logger: logger.With().Str("component", "curiosity").Logger()}
}

// candidate is an action before scoring, with the figures its renderings quote.
type candidate struct {
	action brain.ActionRecommendation
	facts  facts
}

type facts struct {
	amount      float64
	fromName    string
	toName      string
	fromROAS    float64
	toROAS      float64
	probability float64
	drop        float64
	dailySpend  float64
	days        int
	driftPct    float64
	trend       brain.DriftTrend
}

// Recommend scores every candidate from every generator and keeps the best
// TopActions. A failing generator is recorded and the others still run.
func (e *Engine) Recommend(in Input) brain.CuriosityOutput {
	out := brain.CuriosityOutput{TopActions: make([]brain.ActionRecommendation, 0)}

	ranked := e.rank(in, &out)
	out.CandidateCount = len(ranked)
	if len(ranked) > e.h.TopActions {
		ranked = ranked[:e.h.TopActions]
	}

	total := decimal.Zero
	for _, a := range ranked {
		out.TopActions = append(out.TopActions, a)
		total = total.Add(decimal.NewFromFloat(a.EstimatedImpactUSD))
	}
	out.TotalOpportunityUSD = total.Round(2).InexactFloat64()

	e.logger.Debug().
		Str("organization_id", in.OrganizationID).
		Int("candidates", out.CandidateCount).
		Int("selected", len(out.TopActions)).
		Float64("opportunity_usd", out.TotalOpportunityUSD).
		Msg("actions ranked")
	return out
}

// rank returns every finalized candidate ordered by score, descending. Equal
// scores keep generator order.
func (e *Engine) rank(in Input, out *brain.CuriosityOutput) []brain.ActionRecommendation {
	all := make([]brain.ActionRecommendation, 0)
	for _, t := range brain.ActionTypes {
		var produced []brain.ActionRecommendation
		ok := e.isolate(out, "curiosity."+string(t), func() error {
			for _, c := range e.generate(t, in) {
				produced = append(produced, e.finalize(in, c))
			}
			return nil
		})
		if ok {
			all = append(all, produced...)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return all
}

func (e *Engine) generate(t brain.ActionType, in Input) []candidate {
	switch t {
	case brain.ActionShiftBudget:
		return e.shiftBudget(in)
	case brain.ActionPauseCreative:
		return e.pauseCreatives(in)
	case brain.ActionIncreaseBudget:
		return e.increaseBudget(in)
	case brain.ActionFocusRetention:
		return e.focusRetention(in)
	default:
		panic(fmt.Sprintf("curiosity: no generator for %q", t))
	}
}

func (e *Engine) isolate(out *brain.CuriosityOutput, component string, fn func() error) bool {
	if err := brain.Guard(component, fn); err != nil {
		e.logger.Warn().Err(err).Str("generator", component).Msg("generator failed; continuing without it")
		out.Failures = append(out.Failures, brain.Failure(component, err))
		return false
	}
	return true
}

// finalize applies the uniform scorer and fills the derived fields.
func (e *Engine) finalize(in Input, c candidate) brain.ActionRecommendation {
	a := c.action
	if a.EstimatedImpactUSD < 0 {
		a.EstimatedImpactUSD = 0
	}
	a.EstimatedImpactUSD = brain.RoundCents(a.EstimatedImpactUSD)
	a.Confidence = brain.LevelFor(a.ConfidenceScore)
	a.Urgency = brain.LevelFor(a.UrgencyScore)
	a.Score = e.Score(a)
	a.ID = actionID(in, a).String()
	a.Renderings = render(a, c.facts)
	return a
}

// Score is 0.4 normalized impact + 0.3 severity + 0.2 confidence + 0.1
// urgency with the default weights. Severity has no signal of its own and
// reuses the urgency score.
func (e *Engine) Score(a brain.ActionRecommendation) float64 {
	normalized := brain.Clamp(a.EstimatedImpactUSD/e.h.ImpactCeiling*100, 0, 100)
	severity := float64(a.UrgencyScore)
	s := e.h.ImpactWeight*normalized +
		e.h.SeverityWeight*severity +
		e.h.ConfidenceWeight*float64(a.ConfidenceScore) +
		e.h.UrgencyWeight*float64(a.UrgencyScore)
	return brain.Round4(s)
}

func actionID(in Input, a brain.ActionRecommendation) uuid.UUID {
	parts := []string{in.OrganizationID, in.AsOf.UTC().Format(time.RFC3339), string(a.Type)}
	for _, ent := range a.Entities {
		parts = append(parts, string(ent.Kind)+":"+ent.ID)
	}
	return uuid.NewSHA1(actionNamespace, []byte(strings.Join(parts, "|")))
}
