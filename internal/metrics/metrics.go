package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

// Cycle outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder owns the brain's Prometheus collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	cycles        *prometheus.CounterVec
	riskScore     *prometheus.GaugeVec
	opportunity   *prometheus.GaugeVec
	actions       *prometheus.GaugeVec
	failures      *prometheus.CounterVec
}

// New registers the collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brain_stage_duration_seconds",
				Help:    "Duration of each cycle stage in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
			},
			[]string{"stage"},
		),
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brain_cycles_total",
				Help: "Cycles by outcome and the stage they ended in",
			},
			[]string{"outcome", "stage"},
		),
		riskScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brain_global_risk_score",
				Help: "Global risk score of the latest cycle (0 none, 100 saturated)",
			},
			[]string{"organization_id"},
		),
		opportunity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brain_total_opportunity_usd",
				Help: "Total estimated impact of the latest cycle's top actions",
			},
			[]string{"organization_id"},
		),
		actions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brain_top_actions",
				Help: "Number of top actions in the latest cycle",
			},
			[]string{"organization_id"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brain_component_failures_total",
				Help: "Detectors and generators that failed in isolation",
			},
			[]string{"component"},
		),
	}
}

// ObserveStage records how long a stage took.
func (r *Recorder) ObserveStage(stage string, elapsed time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// CycleFinished counts a cycle ending in stage with outcome.
func (r *Recorder) CycleFinished(outcome, stage string) {
	r.cycles.WithLabelValues(outcome, stage).Inc()
}

// ObserveResult updates the per-organization gauges from a persisted cycle.
func (r *Recorder) ObserveResult(result brain.CycleResult) {
	org := result.OrganizationID
	r.riskScore.WithLabelValues(org).Set(float64(result.Oracle.GlobalRiskScore))
	r.opportunity.WithLabelValues(org).Set(result.Curiosity.TotalOpportunityUSD)
	r.actions.WithLabelValues(org).Set(float64(len(result.Curiosity.TopActions)))
	for _, f := range result.Oracle.Failures {
		r.failures.WithLabelValues(f.Component).Inc()
	}
	for _, f := range result.Curiosity.Failures {
		r.failures.WithLabelValues(f.Component).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve runs the /metrics listener until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := logger.With().Str("component", "metrics").Logger()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", addr).Msg("metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
