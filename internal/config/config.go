package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Prices     PricesConfig     `yaml:"prices" mapstructure:"prices"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// IngestConfig configures disclosure retrieval and the ingestion run.
type IngestConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	ThrottleMs         int    `yaml:"throttle_ms" mapstructure:"throttle_ms"`
	MaxRetries         int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LookbackDays       int    `yaml:"lookback_days" mapstructure:"lookback_days"`
	MaxPages           int    `yaml:"max_pages" mapstructure:"max_pages"`
	KnownStreakLimit   int    `yaml:"known_streak_limit" mapstructure:"known_streak_limit"`
	CacheDir           string `yaml:"cache_dir" mapstructure:"cache_dir"`
	IndexCacheTTLHours int    `yaml:"index_cache_ttl_hours" mapstructure:"index_cache_ttl_hours"`
	RawTextLimit       int    `yaml:"raw_text_limit" mapstructure:"raw_text_limit"`
	PdfToTextPath      string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// PricesConfig configures the market-data provider and refresh policy.
type PricesConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	ThrottleMs    int    `yaml:"throttle_ms" mapstructure:"throttle_ms"`
	MaxAgeMinutes int    `yaml:"max_age_minutes" mapstructure:"max_age_minutes"`
	StartDate     string `yaml:"start_date" mapstructure:"start_date"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	Benchmark     string `yaml:"benchmark" mapstructure:"benchmark"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run-health alerting.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	ErrorRateThreshold  float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRADEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.base_url", "https://disclosures-clerk.house.gov")
	v.SetDefault("ingest.user_agent", "tradewatch/1.0 (+ops@sellsadvisors.com)")
	v.SetDefault("ingest.throttle_ms", 800)
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.timeout_secs", 60)
	v.SetDefault("ingest.lookback_days", 14)
	v.SetDefault("ingest.max_pages", 10)
	v.SetDefault("ingest.known_streak_limit", 20)
	v.SetDefault("ingest.cache_dir", "/tmp/tradewatch")
	v.SetDefault("ingest.index_cache_ttl_hours", 24)
	v.SetDefault("ingest.raw_text_limit", 100000)
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("prices.base_url", "https://eodhd.com/api")
	v.SetDefault("prices.api_key", "")
	v.SetDefault("prices.throttle_ms", 200)
	v.SetDefault("prices.max_age_minutes", 360)
	v.SetDefault("prices.start_date", "2020-01-01")
	v.SetDefault("prices.chunk_size", 500)
	v.SetDefault("prices.benchmark", "SPY")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.error_rate_threshold", 0.25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given mode are present and
// within bounds. Modes: "migrate", "ingest", "prices", "perf", "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "migrate":
		errs = append(errs, c.requireDatabase()...)
	case "ingest":
		errs = append(errs, c.requireDatabase()...)
		if c.Ingest.BaseURL == "" {
			errs = append(errs, "ingest.base_url is required")
		}
		if c.Ingest.UserAgent == "" {
			errs = append(errs, "ingest.user_agent is required")
		}
		if c.Ingest.MaxRetries < 1 {
			errs = append(errs, "ingest.max_retries must be >= 1")
		}
		if c.Ingest.ThrottleMs < 0 {
			errs = append(errs, "ingest.throttle_ms must be >= 0")
		}
		if c.Ingest.KnownStreakLimit < 1 {
			errs = append(errs, "ingest.known_streak_limit must be >= 1")
		}
	case "prices":
		errs = append(errs, c.requireDatabase()...)
		if c.Prices.APIKey == "" {
			errs = append(errs, "prices.api_key is required")
		}
		if c.Prices.ChunkSize < 1 {
			errs = append(errs, "prices.chunk_size must be >= 1")
		}
		if c.Prices.Benchmark == "" {
			errs = append(errs, "prices.benchmark is required")
		}
		if _, err := time.Parse(time.DateOnly, c.Prices.StartDate); err != nil {
			errs = append(errs, fmt.Sprintf("prices.start_date %q is not YYYY-MM-DD", c.Prices.StartDate))
		}
	case "perf":
		errs = append(errs, c.requireDatabase()...)
		if c.Prices.Benchmark == "" {
			errs = append(errs, "prices.benchmark is required")
		}
	case "serve":
		errs = append(errs, c.requireDatabase()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Monitoring.ErrorRateThreshold < 0 || c.Monitoring.ErrorRateThreshold > 1 {
			errs = append(errs, "monitoring.error_rate_threshold must be between 0 and 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireDatabase() []string {
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
