package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketing-brain/internal/brain"
	"marketing-brain/internal/config"
	"marketing-brain/internal/storage"
)

func testApp() *App {
	cfg := &config.Config{
		Brain: config.BrainConfig{
			Lookback:    90 * 24 * time.Hour,
			Concurrency: 1,
			Heuristics:  brain.DefaultHeuristics(),
		},
		Export: config.ExportConfig{MaxDataPoints: 100},
	}
	return NewApp(cfg, zerolog.Nop())
}

// A two channel fixture: search clearly beats display over three weeks.
const channelFixture = `
channels:
  - id: search
    name: Search
    isActive: true
  - id: display
    name: Display
    isActive: true
dailyMetrics:
`

func writeChannelFixture(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(channelFixture)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 21; i++ {
		day := start.AddDate(0, 0, i).Format(time.RFC3339)
		for _, row := range []struct{ channel, revenue string }{{"search", "400"}, {"display", "100"}} {
			b.WriteString("  - date: " + day + "\n")
			b.WriteString("    channelId: " + row.channel + "\n")
			b.WriteString("    spend: 100\n")
			b.WriteString("    revenue: " + row.revenue + "\n")
		}
	}
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestSimulatePrintsActions(t *testing.T) {
	var out bytes.Buffer
	opts := SimulateOptions{
		FixturePath:  writeChannelFixture(t),
		Organization: "acme",
		AsOf:         time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC),
	}
	if err := testApp().simulate(context.Background(), opts, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Organization: acme", "Blended ROAS: 2.50", "Search", "winner", "shift_budget"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestSimulateJSON(t *testing.T) {
	var out bytes.Buffer
	opts := SimulateOptions{
		FixturePath:  writeChannelFixture(t),
		Organization: "acme",
		AsOf:         time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC),
		JSON:         true,
	}
	if err := testApp().simulate(context.Background(), opts, &out); err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var result brain.CycleResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output should be a cycle result: %v", err)
	}
	if result.Memory.Totals.TotalSpend != 4200 || result.Memory.Totals.BlendedROAS != 2.5 {
		t.Fatalf("unexpected totals: %+v", result.Memory.Totals)
	}
}

func TestSimulateRequiresOrganization(t *testing.T) {
	opts := SimulateOptions{FixturePath: writeChannelFixture(t), AsOf: time.Now()}
	if err := testApp().simulate(context.Background(), opts, &bytes.Buffer{}); err == nil {
		t.Fatal("missing organization should be rejected")
	}
}

func TestSimulateNotifyNeedsAlerting(t *testing.T) {
	opts := SimulateOptions{FixturePath: writeChannelFixture(t), Organization: "acme", AsOf: time.Now(), Notify: true}
	if err := testApp().simulate(context.Background(), opts, &bytes.Buffer{}); err == nil {
		t.Fatal("notify without alerting configured should error")
	}
}

func records(n int) []storage.CycleRecord {
	out := make([]storage.CycleRecord, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = storage.CycleRecord{
			OrganizationID: "acme",
			Timestamp:      start.AddDate(0, 0, i),
			RiskLevel:      brain.RiskYellow,
			RiskScore:      i,
			TotalSpend:     decimal.NewFromInt(int64(100 * i)),
			OpportunityUSD: decimal.NewFromInt(int64(10 * i)),
		}
	}
	return out
}

func TestDownsampleCycles(t *testing.T) {
	all := records(10)
	if got := downsampleCycles(all, 20); len(got) != 10 {
		t.Fatalf("short series should be untouched, got %d", len(got))
	}
	got := downsampleCycles(all, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 points, got %d", len(got))
	}
	if got[0].RiskScore != 0 || got[3].RiskScore != 9 {
		t.Fatalf("downsample must keep both ends, got %d..%d", got[0].RiskScore, got[3].RiskScore)
	}
	if one := downsampleCycles(all, 1); len(one) != 1 || one[0].RiskScore != 9 {
		t.Fatalf("a single point should be the newest cycle")
	}
}

func TestWriteCyclesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cycles.csv")
	if err := writeCyclesCSV(path, records(3)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != "cycle_ts" {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[3][3] != "2" || rows[3][4] != "200" || rows[3][7] != "20" {
		t.Fatalf("unexpected row: %v", rows[3])
	}
}

func TestAlignForward(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := alignForward(day, backfillStep); !got.Equal(day) {
		t.Fatalf("midnight stays put, got %s", got)
	}
	if got := alignForward(day.Add(time.Hour), backfillStep); !got.Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("partial day rounds up, got %s", got)
	}
}

func TestExportRequiresTarget(t *testing.T) {
	if err := testApp().Export(context.Background(), ExportOptions{Organization: "acme"}); err == nil {
		t.Fatal("export without --csv or --png should fail")
	}
	if err := testApp().Export(context.Background(), ExportOptions{CSVPath: "x.csv"}); err == nil {
		t.Fatal("export without an organization should fail")
	}
}
