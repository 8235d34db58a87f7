package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 800, cfg.Ingest.ThrottleMs)
	assert.Equal(t, 3, cfg.Ingest.MaxRetries)
	assert.Equal(t, 14, cfg.Ingest.LookbackDays)
	assert.Equal(t, 20, cfg.Ingest.KnownStreakLimit)
	assert.Equal(t, 24, cfg.Ingest.IndexCacheTTLHours)
	assert.Equal(t, "https://disclosures-clerk.house.gov", cfg.Ingest.BaseURL)
	assert.Equal(t, 200, cfg.Prices.ThrottleMs)
	assert.Equal(t, 360, cfg.Prices.MaxAgeMinutes)
	assert.Equal(t, 500, cfg.Prices.ChunkSize)
	assert.Equal(t, "SPY", cfg.Prices.Benchmark)
	assert.Equal(t, "2020-01-01", cfg.Prices.StartDate)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.25, cfg.Monitoring.ErrorRateThreshold, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
ingest:
  throttle_ms: 50
  lookback_days: 30
prices:
  benchmark: QQQ
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Ingest.ThrottleMs)
	assert.Equal(t, 30, cfg.Ingest.LookbackDays)
	assert.Equal(t, "QQQ", cfg.Prices.Benchmark)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Ingest.KnownStreakLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
prices:
  api_key: from-file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TRADEWATCH_LOG_LEVEL", "warn")
	t.Setenv("TRADEWATCH_PRICES_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Prices.APIKey)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TRADEWATCH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.DatabaseURL = "postgres://localhost/tradewatch"
	cfg.Ingest.BaseURL = "https://disclosures-clerk.house.gov"
	cfg.Ingest.UserAgent = "test-agent"
	cfg.Ingest.MaxRetries = 3
	cfg.Ingest.ThrottleMs = 800
	cfg.Ingest.KnownStreakLimit = 20
	cfg.Prices.APIKey = "key"
	cfg.Prices.ChunkSize = 500
	cfg.Prices.Benchmark = "SPY"
	cfg.Prices.StartDate = "2020-01-01"
	cfg.Server.Port = 8080
	cfg.Monitoring.ErrorRateThreshold = 0.25
	return cfg
}

func TestValidate_AllModesValid(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"migrate", "ingest", "prices", "perf", "serve"} {
		t.Run(mode, func(t *testing.T) {
			assert.NoError(t, cfg.Validate(mode))
		})
	}
}

func TestValidate_MissingDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidatePrices_CollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Prices.APIKey = ""
	cfg.Prices.ChunkSize = 0
	cfg.Prices.StartDate = "01/01/2020"

	err := cfg.Validate("prices")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prices.api_key is required")
	assert.Contains(t, err.Error(), "prices.chunk_size must be >= 1")
	assert.Contains(t, err.Error(), "not YYYY-MM-DD")
}

func TestValidateIngest_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Ingest.MaxRetries = 0
	cfg.Ingest.KnownStreakLimit = 0

	err := cfg.Validate("ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.max_retries must be >= 1")
	assert.Contains(t, err.Error(), "ingest.known_streak_limit must be >= 1")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
