package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextTickAlignsToDay(t *testing.T) {
	s := New(Options{Interval: 24 * time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, 6, 1, 13, 45, 0, 0, time.UTC)

	next := s.nextTick(now)
	if want := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("expected next midnight %s, got %s", want, next)
	}
	if got := s.cycleTime(next.Add(3 * time.Second)); !got.Equal(next) {
		t.Fatalf("cycle time should truncate to the day, got %s", got)
	}

	midnight := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	if got := s.nextTick(midnight); !got.Equal(midnight.Add(24 * time.Hour)) {
		t.Fatalf("a tick exactly on the boundary moves to the next day, got %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	now := time.Date(2024, 6, 1, 13, 45, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("unaligned tick should be now+interval, got %s", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	ticks := 0
	err := s.Run(ctx, func(ctx context.Context, asOf time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		ticks++
		if ticks == 3 {
			cancel()
		}
		return errors.New("tick errors are logged, not fatal")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
}

func TestTriggerRunsImmediately(t *testing.T) {
	s := New(Options{Interval: 24 * time.Hour, AlignToStart: true}, zerolog.Nop())
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !s.Trigger(asOf) {
		t.Fatal("first trigger should be accepted")
	}
	if s.Trigger(asOf) {
		t.Fatal("second trigger should be rejected while one is pending")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got time.Time
	err := s.Run(ctx, func(ctx context.Context, at time.Time) error {
		got = at
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation after the trigger, got %v", err)
	}
	if !got.Equal(asOf) {
		t.Fatalf("trigger should pass its as-of through, got %s", got)
	}
}
