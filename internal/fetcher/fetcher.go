package fetcher

import (
	"context"
	"errors"
	"time"

	"marketing-brain/internal/brain"
)

// ErrCircuitOpen is returned while the breaker is rejecting reads.
var ErrCircuitOpen = errors.New("metric store circuit open")

// MetricFetcher reads one organization's metrics for the window [from, to).
type MetricFetcher interface {
	Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error)
}
