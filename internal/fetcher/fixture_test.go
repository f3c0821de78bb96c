package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const yamlFixture = `
channels:
  - id: search
    name: Search
    isActive: true
dailyMetrics:
  - date: 2024-02-28T00:00:00Z
    channelId: search
    spend: 90
    revenue: 200
  - date: 2024-03-01T00:00:00Z
    channelId: search
    spend: 100
    revenue: 300
  - date: 2024-05-30T00:00:00Z
    channelId: search
    spend: 110
    revenue: 310
cohorts:
  - cohortMonth: 2023-09-01T00:00:00Z
    acquisitionChannel: All
    ltv90d: 80
  - cohortMonth: 2024-06-01T00:00:00Z
    acquisitionChannel: All
    ltv90d: 70
organizations:
  globex:
    channels:
      - id: social
        name: Social
`

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFixtureFiltersWindow(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, "acme.yaml", yamlFixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := f.Fetch(context.Background(), "acme", windowFrom, windowTo)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snapshot.DailyMetrics) != 1 || snapshot.DailyMetrics[0].Spend != 100 {
		t.Fatalf("expected only the in-window day, got %+v", snapshot.DailyMetrics)
	}
	if len(snapshot.Cohorts) != 1 || snapshot.Cohorts[0].LTV90d != 80 {
		t.Fatalf("expected cohorts before the window end, got %+v", snapshot.Cohorts)
	}
	if len(snapshot.Channels) != 1 || snapshot.Channels[0].ID != "search" {
		t.Fatalf("unexpected channels: %+v", snapshot.Channels)
	}
}

func TestFixturePerOrganization(t *testing.T) {
	f, err := LoadFixture(writeFixture(t, "orgs.yaml", yamlFixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := f.Fetch(context.Background(), "globex", windowFrom, windowTo)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snapshot.Channels) != 1 || snapshot.Channels[0].ID != "social" {
		t.Fatalf("expected the globex snapshot, got %+v", snapshot.Channels)
	}
	if len(snapshot.DailyMetrics) != 0 {
		t.Fatalf("globex has no metrics, got %d", len(snapshot.DailyMetrics))
	}
}

func TestFixtureJSON(t *testing.T) {
	body := `{"channels":[{"id":"search","name":"Search"}],
"dailyMetrics":[{"date":"2024-04-01T00:00:00Z","channelId":"search","spend":50,"revenue":75}]}`
	f, err := LoadFixture(writeFixture(t, "acme.json", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	snapshot, err := f.Fetch(context.Background(), "acme", windowFrom, windowTo)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(snapshot.DailyMetrics) != 1 || snapshot.DailyMetrics[0].Revenue != 75 {
		t.Fatalf("unexpected metrics: %+v", snapshot.DailyMetrics)
	}
}

func TestFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("missing fixture should error")
	}
}
