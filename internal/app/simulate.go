package app

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"marketing-brain/internal/alerting"
	"marketing-brain/internal/brain"
	"marketing-brain/internal/fetcher"
	"marketing-brain/internal/service"
)

// Simulate runs the pipeline on a fixture file and prints the result;
// nothing is persisted. With Notify the alert is sent as a real cycle would.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	return a.simulate(ctx, opts, os.Stdout)
}

func (a *App) simulate(ctx context.Context, opts SimulateOptions, out io.Writer) error {
	source, err := fetcher.LoadFixture(opts.FixturePath)
	if err != nil {
		return err
	}

	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	svc := service.New(a.Config, nil, service.Dependencies{Source: source}, a.Logger)
	result, err := svc.Compute(ctx, opts.Organization, asOf)
	if err != nil {
		return err
	}
	if err := printResult(out, result, opts.JSON); err != nil {
		return err
	}

	if opts.Notify {
		return a.notify(ctx, result)
	}
	return nil
}

func (a *App) notify(ctx context.Context, result brain.CycleResult) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}
	return notifier.Notify(ctx, alerting.NewNotification(result))
}
