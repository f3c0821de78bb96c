package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestForStageCarriesCycleFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	asOf := time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC)

	stageLog := ForStage(ForCycle(base, "acme", asOf), "MEMORY_DONE")
	stageLog.Info().Msg("stage finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["organization_id"] != "acme" || entry["stage"] != "MEMORY_DONE" {
		t.Fatalf("unexpected fields: %v", entry)
	}
	if _, ok := entry["as_of"]; !ok {
		t.Fatalf("as_of missing: %v", entry)
	}
}

func TestNewLoggerLevelFallback(t *testing.T) {
	if got := NewLogger(Config{Level: "warn"}).GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %s", got)
	}
	if got := NewLogger(Config{Level: "loud"}).GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", got)
	}
}
