package app

import (
	"context"
	"os"
	"time"
)

// Cycle runs one organization's cycle on demand. Dry runs compute the
// result without touching the history, cache or alerting.
func (a *App) Cycle(ctx context.Context, opts CycleOptions) error {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	res, err := a.open(ctx, !opts.DryRun)
	if err != nil {
		return err
	}
	defer res.Close()

	source, err := a.newSource(res.store)
	if err != nil {
		return err
	}
	svc := a.newService(res, nil, source, nil)

	if opts.DryRun {
		a.Logger.Warn().Str("organization_id", opts.Organization).Msg("dry-run: 不会写入周期历史")
		result, err := svc.Compute(ctx, opts.Organization, asOf)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, result, opts.JSON)
	}

	result, err := svc.RunCycle(ctx, opts.Organization, asOf)
	if err != nil {
		return err
	}
	return printResult(os.Stdout, result, opts.JSON)
}
