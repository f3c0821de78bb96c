package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketing-brain/internal/alerting"
	"marketing-brain/internal/brain"
	"marketing-brain/internal/config"
	"marketing-brain/internal/curiosity"
	"marketing-brain/internal/fetcher"
	"marketing-brain/internal/logging"
	"marketing-brain/internal/memory"
	"marketing-brain/internal/metrics"
	"marketing-brain/internal/oracle"
	"marketing-brain/internal/scheduler"
	"marketing-brain/internal/storage"
)

// ResultSink persists a finished cycle. Writes are append-only; a second
// write for the same organization and timestamp fails with
// storage.ErrCycleExists.
type ResultSink interface {
	SaveCycle(ctx context.Context, result brain.CycleResult) error
}

// LatestWriter publishes the newest result of an organization. stored is
// false when a newer cycle is already published.
type LatestWriter interface {
	Put(ctx context.Context, result brain.CycleResult) (stored bool, err error)
}

// Dependencies are the collaborators of the orchestrator. Source and Sink
// are required; the rest are optional post-persist hooks.
type Dependencies struct {
	Source   fetcher.MetricFetcher
	Sink     ResultSink
	Cache    LatestWriter
	Notifier alerting.Notifier
	Recorder *metrics.Recorder
	Locker   storage.AdvisoryLocker
}

// Service orchestrates fetch, the three brain stages, and persistence.
type Service struct {
	scheduler *scheduler.Scheduler
	source    fetcher.MetricFetcher
	sink      ResultSink
	cache     LatestWriter
	notifier  alerting.Notifier
	recorder  *metrics.Recorder
	logger    zerolog.Logger

	memory    *memory.Aggregator
	oracle    *oracle.Detector
	curiosity *curiosity.Engine

	organizations []string
	lookback      time.Duration
	concurrency   int
	cycleTimeout  time.Duration
	alertsOn      bool
	minLevel      brain.RiskLevel
	locker        storage.AdvisoryLocker
	lockKey       int64
}

// New constructs the orchestrator.
func New(cfg *config.Config, sched *scheduler.Scheduler, deps Dependencies, logger zerolog.Logger) *Service {
	h := cfg.Brain.Heuristics

	minLevel, err := config.ParseRiskLevel(cfg.Alerting.MinLevel)
	if err != nil {
		minLevel = brain.RiskYellow
	}

	concurrency := cfg.Brain.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Service{
		scheduler:     sched,
		source:        deps.Source,
		sink:          deps.Sink,
		cache:         deps.Cache,
		notifier:      deps.Notifier,
		recorder:      deps.Recorder,
		logger:        logger.With().Str("component", "service").Logger(),
		memory:        memory.New(h, logger),
		oracle:        oracle.New(h, logger),
		curiosity:     curiosity.New(h, logger),
		organizations: cfg.Brain.Organizations,
		lookback:      cfg.Brain.Lookback,
		concurrency:   concurrency,
		cycleTimeout:  cfg.Brain.CycleTimeout,
		alertsOn:      cfg.Alerting.Enabled,
		minLevel:      minLevel,
		locker:        deps.Locker,
		lockKey:       cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the daily cycle loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunScheduled)
}

// Trigger asks the running loop for an immediate round of cycles.
func (s *Service) Trigger(asOf time.Time) bool {
	if s.scheduler == nil {
		return false
	}
	return s.scheduler.Trigger(asOf)
}

// RunScheduled runs one cycle per configured organization for asOf,
// bounded by the configured concurrency. One organization's failure never
// cancels another's; all failures are returned joined.
func (s *Service) RunScheduled(ctx context.Context, asOf time.Time) error {
	if len(s.organizations) == 0 {
		s.logger.Warn().Msg("no organizations configured, skipping tick")
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.concurrency)

	for _, org := range s.organizations {
		g.Go(func() error {
			cycleCtx, cancel := s.withCycleTimeout(ctx)
			defer cancel()

			if _, err := s.RunCycle(cycleCtx, org, asOf); err != nil {
				if errors.Is(err, ErrCycleInProgress) {
					return nil
				}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info().
		Time("as_of", asOf).
		Int("organizations", len(s.organizations)).
		Int("failed", len(errs)).
		Msg("scheduled cycles finished")
	return errors.Join(errs...)
}

func (s *Service) withCycleTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cycleTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cycleTimeout)
}

// RunCycle computes and persists one organization's cycle, then runs the
// best-effort hooks (latest cache, alerting, metrics).
func (s *Service) RunCycle(ctx context.Context, organizationID string, asOf time.Time) (brain.CycleResult, error) {
	return s.runCycle(ctx, organizationID, asOf, true)
}

// Replay computes and persists a historical cycle without the post-persist
// hooks: a replayed day is neither current state nor news.
func (s *Service) Replay(ctx context.Context, organizationID string, asOf time.Time) (brain.CycleResult, error) {
	return s.runCycle(ctx, organizationID, asOf, false)
}

func (s *Service) runCycle(ctx context.Context, organizationID string, asOf time.Time, hooks bool) (brain.CycleResult, error) {
	if err := s.validate(organizationID, asOf); err != nil {
		return brain.CycleResult{}, err
	}
	log := logging.ForCycle(s.logger, organizationID, asOf)

	unlock, proceed, err := s.acquireLock(ctx, organizationID)
	if err != nil {
		s.finish(metrics.OutcomeFailed, string(StageFetching))
		return brain.CycleResult{}, &StageError{Stage: StageFetching, OrganizationID: organizationID, Err: err}
	}
	if !proceed {
		log.Debug().Msg("skip cycle because advisory lock held elsewhere")
		s.finish(metrics.OutcomeSkipped, string(StageFetching))
		return brain.CycleResult{}, ErrCycleInProgress
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := s.compute(ctx, organizationID, asOf, log)
	if err != nil {
		return brain.CycleResult{}, err
	}

	if err := s.persist(ctx, result, log); err != nil {
		return brain.CycleResult{}, err
	}
	s.finish(metrics.OutcomeSuccess, string(StagePersisted))

	if hooks {
		s.afterPersist(ctx, result, log)
	}
	return result, nil
}

// Compute runs the pipeline without persisting anything; used for dry runs
// and fixture simulations.
func (s *Service) Compute(ctx context.Context, organizationID string, asOf time.Time) (brain.CycleResult, error) {
	if err := s.validate(organizationID, asOf); err != nil {
		return brain.CycleResult{}, err
	}
	return s.compute(ctx, organizationID, asOf, logging.ForCycle(s.logger, organizationID, asOf))
}

func (s *Service) compute(ctx context.Context, organizationID string, asOf time.Time, log zerolog.Logger) (brain.CycleResult, error) {
	windowEnd := brain.TruncateDay(asOf.UTC())
	windowStart := windowEnd.Add(-s.lookback)

	var snapshot brain.Snapshot
	if err := s.step(ctx, organizationID, StageFetching, func() error {
		var err error
		snapshot, err = s.source.Fetch(ctx, organizationID, windowStart, windowEnd)
		if err != nil {
			return fmt.Errorf("fetch metrics: %w", err)
		}
		return nil
	}); err != nil {
		return brain.CycleResult{}, err
	}

	var memoryOut brain.MemoryOutput
	if err := s.step(ctx, organizationID, StageMemoryDone, func() error {
		memoryOut = s.memory.Aggregate(memory.Input{
			DailyMetrics: snapshot.DailyMetrics,
			Channels:     snapshot.Channels,
			Cohorts:      snapshot.Cohorts,
		})
		return nil
	}); err != nil {
		return brain.CycleResult{}, err
	}

	var oracleOut brain.OracleOutput
	if err := s.step(ctx, organizationID, StageOracleDone, func() error {
		oracleOut = s.oracle.Detect(oracle.Input{
			DailyMetrics:         snapshot.DailyMetrics,
			Creatives:            snapshot.Creatives,
			CreativeDailyMetrics: snapshot.CreativeDailyMetrics,
			Cohorts:              snapshot.Cohorts,
			Channels:             snapshot.Channels,
			Memory:               memoryOut,
		})
		return nil
	}); err != nil {
		return brain.CycleResult{}, err
	}

	var curiosityOut brain.CuriosityOutput
	if err := s.step(ctx, organizationID, StageCuriosityDone, func() error {
		curiosityOut = s.curiosity.Recommend(curiosity.Input{
			OrganizationID: organizationID,
			AsOf:           asOf,
			Memory:         memoryOut,
			Oracle:         oracleOut,
		})
		return nil
	}); err != nil {
		return brain.CycleResult{}, err
	}

	result := brain.CycleResult{
		Timestamp:      asOf.UTC(),
		OrganizationID: organizationID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		Memory:         memoryOut,
		Oracle:         oracleOut,
		Curiosity:      curiosityOut,
	}

	log.Info().
		Str("risk_level", string(oracleOut.GlobalRiskLevel)).
		Int("risk_score", oracleOut.GlobalRiskScore).
		Int("actions", len(curiosityOut.TopActions)).
		Float64("opportunity_usd", curiosityOut.TotalOpportunityUSD).
		Int("component_failures", len(oracleOut.Failures)+len(curiosityOut.Failures)).
		Msg("cycle computed")
	return result, nil
}

// step runs one transition of the state machine. Cancellation is checked
// before the transition starts, and panics abort the cycle like errors.
func (s *Service) step(ctx context.Context, organizationID string, stage Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		s.finish(metrics.OutcomeFailed, string(stage))
		return &StageError{Stage: stage, OrganizationID: organizationID, Err: err}
	}

	start := time.Now()
	err := brain.Guard(string(stage), fn)
	if s.recorder != nil {
		s.recorder.ObserveStage(string(stage), time.Since(start))
	}
	if err != nil {
		s.finish(metrics.OutcomeFailed, string(stage))
		return &StageError{Stage: stage, OrganizationID: organizationID, Err: err}
	}
	return nil
}

func (s *Service) persist(ctx context.Context, result brain.CycleResult, log zerolog.Logger) error {
	return s.step(ctx, result.OrganizationID, StagePersisted, func() error {
		if err := s.sink.SaveCycle(ctx, result); err != nil {
			return fmt.Errorf("persist cycle: %w", err)
		}
		stageLog := logging.ForStage(log, string(StagePersisted))
		stageLog.Debug().Msg("cycle persisted")
		return nil
	})
}

func (s *Service) afterPersist(ctx context.Context, result brain.CycleResult, log zerolog.Logger) {
	if s.recorder != nil {
		s.recorder.ObserveResult(result)
	}

	if s.cache != nil {
		stored, err := s.cache.Put(ctx, result)
		if err != nil {
			log.Warn().Err(err).Msg("failed to update latest cycle cache")
		} else if !stored {
			log.Info().Msg("newer cycle already published, skipping alert")
			return
		}
	}

	if s.alertsOn && s.notifier != nil && alerting.ShouldAlert(result.Oracle.GlobalRiskLevel, s.minLevel) {
		if err := s.notifier.Notify(ctx, alerting.NewNotification(result)); err != nil {
			log.Error().Err(err).Msg("failed to dispatch alert")
		}
	}
}

func (s *Service) finish(outcome, stage string) {
	if s.recorder != nil {
		s.recorder.CycleFinished(outcome, stage)
	}
}

// validate rejects a request before any stage runs.
func (s *Service) validate(organizationID string, asOf time.Time) error {
	var err error
	switch {
	case strings.TrimSpace(organizationID) == "":
		err = fmt.Errorf("%w: organization id is required", brain.ErrInvalidInput)
	case asOf.IsZero():
		err = fmt.Errorf("%w: cycle timestamp is required", brain.ErrInvalidInput)
	}
	if err != nil {
		s.finish(metrics.OutcomeFailed, "INPUT")
	}
	return err
}

func (s *Service) acquireLock(ctx context.Context, organizationID string) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, LockKey(s.lockKey, organizationID))
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// LockKey derives a per-organization advisory lock key from the base key.
func LockKey(base int64, organizationID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(organizationID))
	return base ^ int64(h.Sum64())
}
