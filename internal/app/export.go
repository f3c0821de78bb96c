package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"marketing-brain/internal/storage"
)

// defaultExportSpan is the window exported when --from is omitted.
const defaultExportSpan = 365 * 24 * time.Hour

// Export renders an organization's cycle history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Organization == "" {
		return errors.New("--org is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportSpan)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	res, err := a.open(ctx, true)
	if err != nil {
		return err
	}
	defer res.Close()

	records, err := res.history.ListCyclesBetween(ctx, opts.Organization, from, to)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.Logger.Info().Str("organization_id", opts.Organization).Msg("no cycles found for export window")
		return nil
	}

	downsampled := downsampleCycles(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting cycles")

	if opts.CSVPath != "" {
		if err := writeCyclesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeCyclesPNG(opts.PNGPath, opts.Organization, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleCycles(records []storage.CycleRecord, max int) []storage.CycleRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.CycleRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeCyclesCSV(path string, records []storage.CycleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"cycle_ts", "organization_id", "risk_level", "risk_score", "total_spend", "total_revenue", "blended_roas", "opportunity_usd", "action_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		record := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.OrganizationID,
			string(rec.RiskLevel),
			strconv.Itoa(rec.RiskScore),
			rec.TotalSpend.String(),
			rec.TotalRevenue.String(),
			rec.BlendedROAS.String(),
			rec.OpportunityUSD.String(),
			strconv.Itoa(rec.ActionCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeCyclesPNG(path, organizationID string, records []storage.CycleRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	risk := make([]float64, len(records))
	opportunity := make([]float64, len(records))

	for i, rec := range records {
		x[i] = rec.Timestamp
		risk[i] = float64(rec.RiskScore)
		opportunity[i] = rec.OpportunityUSD.InexactFloat64()
	}

	graph := chart.Chart{
		Title:  "Marketing brain: " + organizationID,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:  "Risk score",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Opportunity (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "$%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Risk score",
				XValues: x,
				YValues: risk,
			},
			chart.TimeSeries{
				Name:    "Opportunity",
				XValues: x,
				YValues: opportunity,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
