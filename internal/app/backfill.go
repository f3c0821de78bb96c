package app

import (
	"context"
	"errors"
	"time"

	"marketing-brain/internal/brain"
	"marketing-brain/internal/storage"
)

const backfillStep = 24 * time.Hour

// Backfill replays one cycle per day and organization across [From, To),
// sequentially and oldest first. Days already in the history are skipped;
// replayed cycles do not touch the latest cache or alerting.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	orgs := opts.Organizations
	if len(orgs) == 0 {
		orgs = a.Config.Brain.Organizations
	}
	if len(orgs) == 0 {
		return errors.New("没有可回填的组织，请配置 brain.organizations 或传入 --org")
	}

	start := alignForward(opts.From.UTC(), backfillStep)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("回填范围为空，请检查 --from/--to")
	}

	if opts.DryRun {
		a.Logger.Warn().Msg("回填 dry-run：不会写入周期历史")
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

	processed := 0
	skipped := 0
	failed := 0
	for day := start; day.Before(end); day = day.Add(backfillStep) {
		for _, org := range orgs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var result brain.CycleResult
			if opts.DryRun {
				result, err = svc.Compute(ctx, org, day)
			} else {
				result, err = svc.Replay(ctx, org, day)
			}
			if errors.Is(err, storage.ErrCycleExists) {
				skipped++
				continue
			}
			if err != nil {
				failed++
				a.Logger.Error().Err(err).Str("organization_id", org).Time("as_of", day).Msg("回填失败")
				continue
			}
			processed++
			a.Logger.Debug().
				Str("organization_id", org).
				Time("as_of", day).
				Str("risk_level", string(result.Oracle.GlobalRiskLevel)).
				Msg("backfilled cycle")
		}
	}

	a.Logger.Info().Int("processed", processed).Int("skipped", skipped).Int("failed", failed).Msg("回填完成")
	if failed > 0 {
		return errors.New("部分周期回填失败，请检查日志")
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
