package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"marketing-brain/internal/storage"
)

// Show prints recent cycles, or the latest full cycle of one organization.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	res, err := a.open(ctx, true)
	if err != nil {
		return err
	}
	defer res.Close()

	if opts.Latest {
		return a.showLatest(ctx, res, opts)
	}

	records, err := res.history.ListRecentCycles(ctx, opts.Organization, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no cycles found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Cycle (UTC)\tOrganization\tRisk\tScore\tSpend\tRevenue\tROAS\tOpportunity\tActions")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%d\n",
			rec.Timestamp.UTC().Format(time.RFC3339),
			sanitizeInline(rec.OrganizationID),
			rec.RiskLevel,
			rec.RiskScore,
			rec.TotalSpend.StringFixed(2),
			rec.TotalRevenue.StringFixed(2),
			rec.BlendedROAS.StringFixed(2),
			rec.OpportunityUSD.StringFixed(2),
			rec.ActionCount,
		)
	}

	writer.Flush()

	total, err := res.history.CountCycles(ctx, opts.Organization)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("count cycles failed")
		return nil
	}
	fmt.Fprintf(os.Stdout, "\nshowing %d of %d stored cycles\n", len(records), total)
	return nil
}

// showLatest prefers the Redis cache and falls back to the history.
func (a *App) showLatest(ctx context.Context, res *resources, opts ShowOptions) error {
	if opts.Organization == "" {
		return errors.New("--org is required with --latest")
	}

	if res.cache != nil {
		result, ok, err := res.cache.Latest(ctx, opts.Organization)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("latest cycle cache read failed, falling back to history")
		}
		if ok {
			return printResult(os.Stdout, result, opts.JSON)
		}
	}

	rec, err := res.history.LatestCycle(ctx, opts.Organization)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stdout, "no cycles found for %s\n", opts.Organization)
		return nil
	}
	if err != nil {
		return err
	}
	result, err := rec.Result()
	if err != nil {
		return err
	}
	return printResult(os.Stdout, result, opts.JSON)
}
