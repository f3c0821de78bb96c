package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketing-brain/internal/brain"
)

// FixtureFile is the on-disk shape of a fixture: either one snapshot shared
// by every organization, or snapshots keyed by organization id.
type FixtureFile struct {
	brain.Snapshot `yaml:",inline"`
	Organizations  map[string]brain.Snapshot `json:"organizations" yaml:"organizations"`
}

// Fixture serves snapshots from a YAML or JSON file, filtered to the
// requested window like a real store would.
type Fixture struct {
	file FixtureFile
}

// LoadFixture reads path; files ending in .json are decoded as JSON,
// everything else as YAML.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var file FixtureFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &file)
	} else {
		err = yaml.Unmarshal(raw, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return NewFixture(file), nil
}

// NewFixture serves an in-memory fixture.
func NewFixture(file FixtureFile) *Fixture {
	return &Fixture{file: file}
}

// Fetch returns the organization's snapshot restricted to [from, to).
// Cohorts are only bounded above so baselines older than the window survive.
func (f *Fixture) Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return brain.Snapshot{}, err
	}
	snapshot, ok := f.file.Organizations[organizationID]
	if !ok {
		snapshot = f.file.Snapshot
	}

	return brain.Snapshot{
		DailyMetrics:         inWindow(snapshot.DailyMetrics, from, to),
		Creatives:            append([]brain.Creative(nil), snapshot.Creatives...),
		CreativeDailyMetrics: inWindow(snapshot.CreativeDailyMetrics, from, to),
		Cohorts:              cohortsBefore(snapshot.Cohorts, to),
		Channels:             append([]brain.Channel(nil), snapshot.Channels...),
	}, nil
}

func inWindow(rows []brain.DailyMetric, from, to time.Time) []brain.DailyMetric {
	out := make([]brain.DailyMetric, 0, len(rows))
	for _, row := range rows {
		if row.Date.Before(from) || !row.Date.Before(to) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func cohortsBefore(rows []brain.Cohort, to time.Time) []brain.Cohort {
	out := make([]brain.Cohort, 0, len(rows))
	for _, row := range rows {
		if row.CohortMonth.Before(to) {
			out = append(out, row)
		}
	}
	return out
}

var _ MetricFetcher = (*Fixture)(nil)
