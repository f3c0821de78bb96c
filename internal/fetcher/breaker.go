package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"marketing-brain/internal/brain"
)

// BreakerOptions tune when the breaker trips and how long it stays open.
type BreakerOptions struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// Breaker stops hammering an unhealthy metric store after consecutive
// failures. Each organization gets its own circuit, so one misconfigured
// organization cannot block the others.
type Breaker struct {
	next     MetricFetcher
	settings gobreaker.Settings
	logger   zerolog.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

// NewBreaker wraps next with per-organization circuit breakers.
func NewBreaker(next MetricFetcher, opts BreakerOptions, logger zerolog.Logger) *Breaker {
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	b := &Breaker{
		next:     next,
		logger:   logger.With().Str("component", "fetch_breaker").Logger(),
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
	b.settings = gobreaker.Settings{
		Interval: opts.Interval,
		Timeout:  opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// The caller giving up says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state changed")
		},
	}
	return b
}

func (b *Breaker) circuit(organizationID string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.circuits[organizationID]
	if !ok {
		settings := b.settings
		settings.Name = "metric-store:" + organizationID
		cb = gobreaker.NewCircuitBreaker(settings)
		b.circuits[organizationID] = cb
	}
	return cb
}

// Fetch delegates to the wrapped fetcher unless the organization's circuit is open.
func (b *Breaker) Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error) {
	out, err := b.circuit(organizationID).Execute(func() (interface{}, error) {
		return b.next.Fetch(ctx, organizationID, from, to)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return brain.Snapshot{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return brain.Snapshot{}, err
	}
	return out.(brain.Snapshot), nil
}

// State reports an organization's circuit state for logs and tests.
func (b *Breaker) State(organizationID string) string {
	return b.circuit(organizationID).State().String()
}

var _ MetricFetcher = (*Breaker)(nil)
