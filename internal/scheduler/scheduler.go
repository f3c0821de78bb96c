package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every aligned interval and on manual triggers.
type TickFunc func(ctx context.Context, asOf time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives the daily cycle cadence.
type Scheduler struct {
	opts     Options
	logger   zerolog.Logger
	triggers chan time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:     opts,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		triggers: make(chan time.Time, 1),
	}
}

// Trigger requests an out-of-band tick for asOf. It returns false when a
// trigger is already pending.
func (s *Scheduler) Trigger(asOf time.Time) bool {
	select {
	case s.triggers <- asOf:
		return true
	default:
		return false
	}
}

// Run blocks, invoking the tick function at each aligned interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			// A slow cycle overran the next boundary; skip rather than replay.
			s.logger.Warn().Time("missed_tick", next).Msg("tick missed, rescheduling")
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case asOf := <-s.triggers:
			timer.Stop()
			s.logger.Info().Time("as_of", asOf).Msg("executing triggered tick")
			s.execute(ctx, tick, asOf)
			continue
		case <-timer.C:
		}

		asOf := s.cycleTime(next)
		s.logger.Info().Time("as_of", asOf).Msg("executing scheduled tick")
		s.execute(ctx, tick, asOf)

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, asOf time.Time) {
	if err := tick(ctx, asOf); err != nil {
		s.logger.Error().Err(err).Time("as_of", asOf).Msg("tick execution failed")
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	boundary := now.Truncate(s.opts.Interval)
	if !boundary.After(now) {
		boundary = boundary.Add(s.opts.Interval)
	}
	return boundary
}

// cycleTime is the as-of handed to the tick: the interval boundary when aligned.
func (s *Scheduler) cycleTime(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
