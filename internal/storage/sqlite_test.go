package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketing-brain/internal/brain"
)

func sampleResult(org string, ts time.Time) brain.CycleResult {
	return brain.CycleResult{
		Timestamp:      ts,
		OrganizationID: org,
		WindowStart:    ts.AddDate(0, 0, -90),
		WindowEnd:      ts,
		Memory: brain.MemoryOutput{
			Totals: brain.Totals{TotalSpend: 1234.5, TotalRevenue: 3703.5, BlendedROAS: 3},
		},
		Oracle: brain.OracleOutput{GlobalRiskLevel: brain.RiskYellow, GlobalRiskScore: 60},
		Curiosity: brain.CuriosityOutput{
			TopActions: []brain.ActionRecommendation{
				{ID: "a1", Type: brain.ActionShiftBudget, EstimatedImpactUSD: 800},
				{ID: "a2", Type: brain.ActionPauseCreative, EstimatedImpactUSD: 700},
			},
			TotalOpportunityUSD: 1500,
			CandidateCount:      4,
		},
	}
}

func openHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := OpenSQLiteHistory(context.Background(), filepath.Join(t.TempDir(), "brain.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestSQLiteHistorySaveAndLatest(t *testing.T) {
	ctx := context.Background()
	h := openHistory(t)

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := h.SaveCycle(ctx, sampleResult("acme", day.AddDate(0, 0, i))); err != nil {
			t.Fatalf("save day %d: %v", i, err)
		}
	}

	latest, err := h.LatestCycle(ctx, "acme")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Timestamp.Equal(day.AddDate(0, 0, 2)) {
		t.Fatalf("expected newest cycle, got %s", latest.Timestamp)
	}
	if latest.RiskLevel != brain.RiskYellow || latest.RiskScore != 60 || latest.ActionCount != 2 {
		t.Fatalf("unexpected summary columns: %+v", latest)
	}
	if latest.TotalSpend.String() != "1234.5" || latest.OpportunityUSD.String() != "1500" {
		t.Fatalf("unexpected decimals: spend=%s opportunity=%s", latest.TotalSpend, latest.OpportunityUSD)
	}
	if latest.CreatedAt.IsZero() {
		t.Fatalf("created_at should be populated")
	}

	result, err := latest.Result()
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if result.OrganizationID != "acme" || len(result.Curiosity.TopActions) != 2 {
		t.Fatalf("payload round trip lost data: %+v", result)
	}
}

func TestSQLiteHistoryRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	h := openHistory(t)

	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := h.SaveCycle(ctx, sampleResult("acme", ts)); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := h.SaveCycle(ctx, sampleResult("acme", ts))
	if !errors.Is(err, ErrCycleExists) {
		t.Fatalf("expected ErrCycleExists, got %v", err)
	}
	if err := h.SaveCycle(ctx, sampleResult("globex", ts)); err != nil {
		t.Fatalf("same timestamp for another organization must be accepted: %v", err)
	}
}

func TestSQLiteHistoryListing(t *testing.T) {
	ctx := context.Background()
	h := openHistory(t)

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := h.SaveCycle(ctx, sampleResult("acme", day.AddDate(0, 0, i))); err != nil {
			t.Fatalf("save acme: %v", err)
		}
	}
	if err := h.SaveCycle(ctx, sampleResult("globex", day.AddDate(0, 0, 10))); err != nil {
		t.Fatalf("save globex: %v", err)
	}

	recent, err := h.ListRecentCycles(ctx, "acme", 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 || !recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Fatalf("expected two cycles newest first, got %d", len(recent))
	}

	all, err := h.ListRecentCycles(ctx, "", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 6 || all[0].OrganizationID != "globex" {
		t.Fatalf("empty organization should list everything newest first, got %d", len(all))
	}

	between, err := h.ListCyclesBetween(ctx, "acme", day.AddDate(0, 0, 1), day.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(between) != 2 || !between[0].Timestamp.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("expected [day1, day3) oldest first, got %d records", len(between))
	}

	if n, err := h.CountCycles(ctx, "acme"); err != nil || n != 5 {
		t.Fatalf("expected 5 acme cycles, got %d (%v)", n, err)
	}
	if n, err := h.CountCycles(ctx, ""); err != nil || n != 6 {
		t.Fatalf("expected 6 cycles in total, got %d (%v)", n, err)
	}
}

func TestSQLiteHistoryLatestMissing(t *testing.T) {
	h := openHistory(t)
	if _, err := h.LatestCycle(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
