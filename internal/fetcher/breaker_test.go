package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

type stubFetcher struct {
	calls  int
	err    error
	failOn map[string]bool
}

func (s *stubFetcher) Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error) {
	s.calls++
	if s.err != nil && (s.failOn == nil || s.failOn[organizationID]) {
		return brain.Snapshot{}, s.err
	}
	return brain.Snapshot{Channels: []brain.Channel{{ID: organizationID}}}, nil
}

func TestBreakerPassesThrough(t *testing.T) {
	stub := &stubFetcher{}
	b := NewBreaker(stub, BreakerOptions{MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())

	snapshot, err := b.Fetch(context.Background(), "acme", windowFrom, windowTo)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snapshot.Channels) != 1 || snapshot.Channels[0].ID != "acme" {
		t.Fatalf("snapshot not forwarded: %+v", snapshot)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	upstream := errors.New("connection reset")
	stub := &stubFetcher{err: upstream}
	b := NewBreaker(stub, BreakerOptions{MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := b.Fetch(context.Background(), "acme", windowFrom, windowTo); !errors.Is(err, upstream) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	_, err := b.Fetch(context.Background(), "acme", windowFrom, windowTo)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("open breaker must not call the store, got %d calls", stub.calls)
	}
	if b.State("acme") != "open" {
		t.Fatalf("expected open state, got %s", b.State("acme"))
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	stub := &stubFetcher{err: context.Canceled}
	b := NewBreaker(stub, BreakerOptions{MaxFailures: 1, OpenTimeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := b.Fetch(context.Background(), "acme", windowFrom, windowTo); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected cancellation to pass through, got %v", i, err)
		}
	}
	if b.State("acme") != "closed" {
		t.Fatalf("cancellation must not trip the breaker, state %s", b.State("acme"))
	}
}

func TestBreakerIsolatesOrganizations(t *testing.T) {
	notFound := errors.New("metrics api error (404): unknown organization")
	stub := &stubFetcher{err: notFound, failOn: map[string]bool{"bad1": true, "bad2": true, "bad3": true}}
	b := NewBreaker(stub, BreakerOptions{MaxFailures: 3, OpenTimeout: time.Minute}, zerolog.Nop())

	for _, org := range []string{"bad1", "bad2", "bad3"} {
		if _, err := b.Fetch(context.Background(), org, windowFrom, windowTo); !errors.Is(err, notFound) {
			t.Fatalf("%s: expected upstream error, got %v", org, err)
		}
	}

	snapshot, err := b.Fetch(context.Background(), "acme", windowFrom, windowTo)
	if err != nil {
		t.Fatalf("healthy organization must not see another's failures: %v", err)
	}
	if len(snapshot.Channels) != 1 || snapshot.Channels[0].ID != "acme" {
		t.Fatalf("snapshot not forwarded: %+v", snapshot)
	}
	for _, org := range []string{"bad1", "acme"} {
		if state := b.State(org); state != "closed" {
			t.Fatalf("%s: one failure each should leave the circuit closed, got %s", org, state)
		}
	}
}
