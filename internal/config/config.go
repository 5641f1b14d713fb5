// Package config loads the Decision Core's configuration via viper,
// binding a YAML settings document and DECISIONCORE_-prefixed environment
// variables onto nested structs, following the teacher's Server/Database/
// Redis-style layout.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration document.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Model    ModelConfig    `mapstructure:"model"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	News     NewsConfig     `mapstructure:"news"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Universe UniverseConfig `mapstructure:"universe"`
	Alert    AlertConfig    `mapstructure:"alert"`
}

// ServerConfig holds the server port and allowed origins. No command
// serves HTTP; Port is only reported in the startup log line.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig configures LearningStore's sqlite backing.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // always "sqlite"
	SQLitePath      string `mapstructure:"sqlite_path"`
	ArtifactDir     string `mapstructure:"artifact_dir"` // JSONL artifact writers (decisions.jsonl, etc.)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
	BusyTimeoutMS   int    `mapstructure:"busy_timeout_ms"`
}

// RedisConfig configures the Redis connection that caches the AI model
// registry; cmd/engine wires it when Host is non-empty.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ModelConfig configures the Model collaborator's HTTP client.
type ModelConfig struct {
	Provider       string `mapstructure:"provider"` // "openai" | "anthropic"
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	ModelName      string `mapstructure:"model_name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// Timeout returns ModelConfig.TimeoutSeconds as a time.Duration, defaulting
// to 30s when unset.
func (m ModelConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// BrokerConfig configures the Broker collaborator and PaperBroker.
type BrokerConfig struct {
	Kind            string  `mapstructure:"kind"` // "paper"
	InitialCash     float64 `mapstructure:"initial_cash"`
	FillTimeoutSecs int     `mapstructure:"fill_timeout_seconds"`
	MaxConcurrency  int     `mapstructure:"max_concurrency"` // <=4 per spec
}

// NewsConfig configures the NewsProvider collaborator and NewsTimeline.
type NewsConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	MaxConcurrency      int `mapstructure:"max_concurrency"` // <=8 per spec
}

// RiskConfig configures RiskGate's thresholds.
type RiskConfig struct {
	MaxPositionPctOfEquity   float64 `mapstructure:"max_position_pct_of_equity"`
	MaxPortfolioExposurePct  float64 `mapstructure:"max_portfolio_exposure_pct"` // >1.0: margin-aware, advisory on sells
	MaxDailyLossPct          float64 `mapstructure:"max_daily_loss_pct"`
	MaxConsecutiveLosses     int     `mapstructure:"max_consecutive_losses"`
	MaxTradesPerDay          int     `mapstructure:"max_trades_per_day"`
	MinConfidenceToTrade     int     `mapstructure:"min_confidence_to_trade"`
	CooldownAfterLossMinutes int     `mapstructure:"cooldown_after_loss_minutes"`
}

// TradingConfig configures the Scheduler/TradingAgent cycle cadence.
type TradingConfig struct {
	Timezone               string `mapstructure:"timezone"`
	CycleIntervalSeconds   int    `mapstructure:"cycle_interval_seconds"`
	MarketClosingLeadMins  int    `mapstructure:"market_closing_lead_minutes"`
	EveningAnalysisStart   string `mapstructure:"evening_analysis_start"` // "16:30"
	PremarketPrepStart     string `mapstructure:"premarket_prep_start"`   // "06:00"
	SafeModeOnRiskRejects  int    `mapstructure:"safe_mode_on_risk_rejects"`
}

// UniverseConfig configures UniverseManager's tracked-symbol cap and tiers.
type UniverseConfig struct {
	MaxSymbols         int      `mapstructure:"max_symbols"`
	StaticWatchlist    []string `mapstructure:"static_watchlist"`
	RefreshIntervalMin int      `mapstructure:"refresh_interval_minutes"`
	CacheHours         int      `mapstructure:"cache_hours"`
}

// AlertConfig configures the sentry-go backed AlertSink.
type AlertConfig struct {
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

const envPrefix = "DECISIONCORE"

// Load reads configuration from an optional YAML file at path (skipped
// silently if empty or not found) layered under DECISIONCORE_-prefixed
// environment variables, and returns the bound Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", 8090)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "data/decisioncore.db")
	v.SetDefault("database.artifact_dir", "data/artifacts")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "15m")
	v.SetDefault("database.busy_timeout_ms", 5000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.timeout_seconds", 30)
	v.SetDefault("model.max_retries", 3)

	v.SetDefault("broker.kind", "paper")
	v.SetDefault("broker.initial_cash", 100000.0)
	v.SetDefault("broker.fill_timeout_seconds", 30)
	v.SetDefault("broker.max_concurrency", 4)

	v.SetDefault("news.poll_interval_seconds", 300)
	v.SetDefault("news.max_concurrency", 8)

	v.SetDefault("risk.max_position_pct_of_equity", 0.10)
	v.SetDefault("risk.max_portfolio_exposure_pct", 1.50)
	v.SetDefault("risk.max_daily_loss_pct", 0.02)
	v.SetDefault("risk.max_consecutive_losses", 3)
	v.SetDefault("risk.max_trades_per_day", 10)
	v.SetDefault("risk.min_confidence_to_trade", 60)
	v.SetDefault("risk.cooldown_after_loss_minutes", 30)

	v.SetDefault("trading.timezone", "America/New_York")
	v.SetDefault("trading.cycle_interval_seconds", 300)
	v.SetDefault("trading.market_closing_lead_minutes", 15)
	v.SetDefault("trading.evening_analysis_start", "16:30")
	v.SetDefault("trading.premarket_prep_start", "06:00")
	v.SetDefault("trading.safe_mode_on_risk_rejects", 5)

	v.SetDefault("universe.max_symbols", 100)
	v.SetDefault("universe.refresh_interval_minutes", 60)
	v.SetDefault("universe.cache_hours", 24)

	v.SetDefault("alert.traces_sample_rate", 0.0)
}
