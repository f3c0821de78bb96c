package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"marketing-brain/internal/alerting"
	"marketing-brain/internal/config"
	"marketing-brain/internal/fetcher"
	"marketing-brain/internal/metrics"
	"marketing-brain/internal/scheduler"
	"marketing-brain/internal/service"
	"marketing-brain/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// resources are the connections a command opened; Close releases them in
// reverse order.
type resources struct {
	store   *storage.Store
	history storage.CycleHistory
	cache   *storage.LatestCache
	closers []func()
}

func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// open connects the store, the cycle history and (if enabled) the cache.
func (a *App) open(ctx context.Context, withHistory bool) (*resources, error) {
	res := &resources{}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		res.closers = append(res.closers, closeStore)
	}
	res.store = store

	if withHistory {
		if err := a.openHistory(ctx, res); err != nil {
			res.Close()
			return nil, err
		}
	}

	if a.Config.Cache.Enabled {
		cache := storage.NewLatestCache(a.Config.Cache)
		if err := cache.Ping(ctx); err != nil {
			a.Logger.Warn().Err(err).Str("addr", a.Config.Cache.Addr).Msg("latest cycle cache unreachable")
		}
		res.cache = cache
		res.closers = append(res.closers, func() { _ = cache.Close() })
	}
	return res, nil
}

func (a *App) openHistory(ctx context.Context, res *resources) error {
	switch a.Config.History.Driver {
	case config.HistorySQLite:
		history, err := storage.OpenSQLiteHistory(ctx, a.Config.History.SQLitePath, a.Logger)
		if err != nil {
			return err
		}
		res.history = history
		res.closers = append(res.closers, func() { _ = history.Close() })
	default:
		if res.store == nil {
			return errors.New("database.dsn 未配置，无法读写周期历史")
		}
		res.history = res.store
	}
	return nil
}

// newSource picks the metric store adapter and wraps remote ones in the breaker.
func (a *App) newSource(store *storage.Store) (fetcher.MetricFetcher, error) {
	var (
		source fetcher.MetricFetcher
		err    error
	)
	switch a.Config.Source.Kind {
	case config.SourceFixture:
		return fetcher.LoadFixture(a.Config.Source.FixturePath)
	case config.SourceHTTP:
		cfg := a.Config.Source.HTTP
		source, err = fetcher.NewHTTP(fetcher.HTTPOptions{
			BaseURL:   cfg.BaseURL,
			Token:     cfg.Token,
			Timeout:   cfg.RequestTimeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
			UserAgent: cfg.UserAgent,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
	default:
		if store == nil {
			return nil, errors.New("database.dsn 未配置，无法读取指标")
		}
		source = store
	}

	if !a.Config.Source.Breaker.Enabled {
		return source, nil
	}
	b := a.Config.Source.Breaker
	return fetcher.NewBreaker(source, fetcher.BreakerOptions{
		MaxFailures: b.MaxFailures,
		OpenTimeout: b.OpenTimeout,
		Interval:    b.Interval,
	}, a.Logger), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
}

// newService wires the orchestrator onto opened resources.
func (a *App) newService(res *resources, sched *scheduler.Scheduler, source fetcher.MetricFetcher, recorder *metrics.Recorder) *service.Service {
	deps := service.Dependencies{
		Source:   source,
		Notifier: a.newNotifier(),
		Recorder: recorder,
	}
	if res.history != nil {
		deps.Sink = res.history
	}
	if res.cache != nil {
		deps.Cache = res.cache
	}
	if res.store != nil {
		deps.Locker = res.store
	}
	return service.New(a.Config, sched, deps, a.Logger)
}

// RunOptions configure the daemon.
type RunOptions struct {
	Immediate bool
}

// Run executes the long-running daily cycle service.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := a.open(ctx, true)
	if err != nil {
		return err
	}
	defer res.Close()

	source, err := a.newSource(res.store)
	if err != nil {
		return err
	}

	var recorder *metrics.Recorder
	if a.Config.Metrics.Enabled {
		recorder = metrics.New()
	}

	sched := a.newScheduler()
	svc := a.newService(res, sched, source, recorder)

	if opts.Immediate {
		svc.Trigger(time.Now().UTC())
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	if recorder != nil {
		g.Go(func() error {
			return recorder.Serve(gctx, a.Config.Metrics.Listen, a.Logger)
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				if !svc.Trigger(time.Now().UTC()) {
					a.Logger.Warn().Msg("manual trigger ignored, one is already pending")
				}
			}
		}
	})

	a.Logger.Info().
		Strs("organizations", a.Config.Brain.Organizations).
		Str("source", a.Config.Source.Kind).
		Str("history", a.Config.History.Driver).
		Msg("starting brain service")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("brain service stopped")
	return nil
}

// Migrate applies the embedded schema migrations to the configured databases.
func (a *App) Migrate(ctx context.Context) error {
	migrated := false
	if a.Config.Database.DSN != "" {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := storage.MigratePostgres(ctx, pool, a.Logger); err != nil {
			return err
		}
		migrated = true
	}
	if a.Config.History.Driver == config.HistorySQLite {
		history, err := storage.OpenSQLiteHistory(ctx, a.Config.History.SQLitePath, a.Logger)
		if err != nil {
			return err
		}
		_ = history.Close()
		migrated = true
	}
	if !migrated {
		return fmt.Errorf("nothing to migrate: configure database.dsn or history.driver=sqlite")
	}
	return nil
}

// CycleOptions configure a manual cycle.
type CycleOptions struct {
	Organization string
	AsOf         time.Time
	DryRun       bool
	JSON         bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Organization string
	Limit        int
	Latest       bool
	JSON         bool
}

// ExportOptions hold parameters for exporting cycle history.
type ExportOptions struct {
	Organization string
	From         *time.Time
	To           *time.Time
	PNGPath      string
	CSVPath      string
	MaxPoints    int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Organizations []string
	From          time.Time
	To            time.Time
	DryRun        bool
}

// SimulateOptions configure a fixture run.
type SimulateOptions struct {
	FixturePath  string
	Organization string
	AsOf         time.Time
	JSON         bool
	Notify       bool
}
