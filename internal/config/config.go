package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"marketing-brain/internal/brain"
	"marketing-brain/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	History   HistoryConfig   `mapstructure:"history"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Brain     BrainConfig     `mapstructure:"brain"`
	Source    SourceConfig    `mapstructure:"source"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// History drivers.
const (
	HistoryPostgres = "postgres"
	HistorySQLite   = "sqlite"
)

// HistoryConfig selects where cycle results are written.
type HistoryConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CacheConfig covers the Redis latest-cycle cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// SchedulerConfig governs cycle cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// BrainConfig scopes which organizations run and with which rule set.
type BrainConfig struct {
	Organizations []string         `mapstructure:"organizations"`
	Lookback      time.Duration    `mapstructure:"lookback"`
	Concurrency   int              `mapstructure:"concurrency"`
	CycleTimeout  time.Duration    `mapstructure:"cycle_timeout"`
	Heuristics    brain.Heuristics `mapstructure:"heuristics"`
}

// Source kinds.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceFixture  = "fixture"
)

// SourceConfig selects the metric store adapter.
type SourceConfig struct {
	Kind        string        `mapstructure:"kind"`
	FixturePath string        `mapstructure:"fixture_path"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

// HTTPConfig captures the metrics API connectivity.
type HTTPConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// BreakerConfig tunes the circuit breaker around the metric store read.
type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	MinLevel string         `mapstructure:"min_level"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	// Heuristics keys are optional overrides on top of the production rule set.
	cfg := Config{Brain: BrainConfig{Heuristics: brain.DefaultHeuristics()}}
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketing-brain")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("history.driver", HistoryPostgres)
	v.SetDefault("history.sqlite_path", "brain.db")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "48h")
	v.SetDefault("cache.key_prefix", "brain:latest:")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6272616e))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("brain.lookback", "2160h")
	v.SetDefault("brain.concurrency", 4)
	v.SetDefault("brain.cycle_timeout", "2m")

	v.SetDefault("source.kind", SourcePostgres)
	v.SetDefault("source.http.request_timeout", "30s")
	v.SetDefault("source.http.rate_limit", 2.0)
	v.SetDefault("source.http.burst", 1)
	v.SetDefault("source.http.user_agent", "marketing-brain/1.0")
	v.SetDefault("source.breaker.enabled", true)
	v.SetDefault("source.breaker.max_failures", 3)
	v.SetDefault("source.breaker.open_timeout", "1m")
	v.SetDefault("source.breaker.interval", "10m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_level", string(brain.RiskYellow))
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9102")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Brain.Lookback < 21*24*time.Hour {
		return fmt.Errorf("brain.lookback must cover at least 21 days, got %s", c.Brain.Lookback)
	}
	if c.Brain.Concurrency <= 0 {
		return fmt.Errorf("brain.concurrency must be greater than zero")
	}
	if err := c.Brain.Heuristics.Validate(); err != nil {
		return fmt.Errorf("brain.heuristics: %w", err)
	}

	switch c.History.Driver {
	case HistoryPostgres, HistorySQLite:
	default:
		return fmt.Errorf("history.driver %q is not supported", c.History.Driver)
	}
	if c.History.Driver == HistorySQLite && c.History.SQLitePath == "" {
		return fmt.Errorf("history.sqlite_path is required for the sqlite driver")
	}

	switch c.Source.Kind {
	case SourcePostgres:
	case SourceHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return fmt.Errorf("source.http.base_url is required for the http source")
		}
	case SourceFixture:
		if c.Source.FixturePath == "" {
			return fmt.Errorf("source.fixture_path is required for the fixture source")
		}
	default:
		return fmt.Errorf("source.kind %q is not supported", c.Source.Kind)
	}

	if c.Alerting.Enabled {
		if _, err := ParseRiskLevel(c.Alerting.MinLevel); err != nil {
			return fmt.Errorf("alerting.min_level: %w", err)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when the cache is enabled")
	}
	return nil
}

// ParseRiskLevel validates a configured risk level name.
func ParseRiskLevel(s string) (brain.RiskLevel, error) {
	switch level := brain.RiskLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case brain.RiskGreen, brain.RiskYellow, brain.RiskRed:
		return level, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
