package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full service configuration
type Config struct {
	MarketDataConfig MarketDataConfig `json:"market_data"`
	EngineConfig     EngineConfig     `json:"engine"`
	RiskConfig       RiskConfig       `json:"risk"`
	AccountConfig    AccountConfig    `json:"account"`
	ScannerConfig    ScannerConfig    `json:"scanner"`
	ServerConfig     ServerConfig     `json:"server"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	LoggingConfig    LoggingConfig    `json:"logging"`
}

// MarketDataConfig holds the candle-supplying collaborator settings
type MarketDataConfig struct {
	BaseURL     string `json:"base_url"`
	Timeframe   string `json:"timeframe"`
	CandleLimit int    `json:"candle_limit"`
	MockMode    bool   `json:"mock_mode"` // deterministic synthetic data, no network
}

// EngineConfig holds zone detection and confluence parameters
type EngineConfig struct {
	OrderBlockLookback     int     `json:"order_block_lookback"`
	OrderBlockMinCandles   int     `json:"order_block_min_candles"`
	OrderBlockMaxCandles   int     `json:"order_block_max_candles"`
	ImpulseThresholdPct    float64 `json:"impulse_threshold_pct"`
	OrderBlockMaxAge       int     `json:"order_block_max_age"`
	FVGMinSizePct          float64 `json:"fvg_min_size_pct"`
	FVGStrongThresholdPct  float64 `json:"fvg_strong_threshold_pct"`
	FVGMaxAgeBars          int     `json:"fvg_max_age_bars"`
	SwingLookback          int     `json:"swing_lookback"`
	ProfileBins            int     `json:"profile_bins"`
	ValueAreaPercent       float64 `json:"value_area_percent"`
	ProfileWindow          int     `json:"profile_window"`
	ConfluenceTolerancePct float64 `json:"confluence_tolerance_pct"`
	MinSignals             int     `json:"min_signals"`
	MaxPlans               int     `json:"max_plans"`
}

// RiskConfig holds risk management parameters. The calibration
// collaborator overrides these per call; they are never mutated here.
type RiskConfig struct {
	MaxRiskPct            float64 `json:"max_risk_pct"`
	MinRiskRewardRatio    float64 `json:"min_risk_reward_ratio"`
	ATRMultiplier         float64 `json:"atr_multiplier"`
	TrailingPct           float64 `json:"trailing_pct"`
	TrailingActivationPct float64 `json:"trailing_activation_pct"`
}

// AccountConfig holds the externally supplied account state
type AccountConfig struct {
	Balance float64 `json:"balance"`
	RiskPct float64 `json:"risk_pct"`
}

// ScannerConfig holds the background scan loop settings
type ScannerConfig struct {
	Enabled      bool     `json:"enabled"`
	Symbols      []string `json:"symbols"`
	ScanInterval int      `json:"scan_interval"` // seconds between scans
	WorkerCount  int      `json:"worker_count"`
	ScanTimeout  int      `json:"scan_timeout"` // seconds per full scan
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// DatabaseConfig holds PostgreSQL settings for plan/snapshot persistence
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for candle/snapshot caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig holds structured logging settings
type LoggingConfig struct {
	Level      string `json:"level"`
	Output     string `json:"output"`
	JSONFormat bool   `json:"json_format"`
}

// Load reads config.json when present and applies environment variable
// overrides on top; environment always wins. A missing file falls back
// to defaults; a file that exists but cannot be read or parsed is an
// error, never silently ignored.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.MarketDataConfig.BaseURL = getEnvOrDefault("MARKET_DATA_BASE_URL", defaultStr(cfg.MarketDataConfig.BaseURL, "https://api.binance.com"))
	cfg.MarketDataConfig.Timeframe = getEnvOrDefault("MARKET_DATA_TIMEFRAME", defaultStr(cfg.MarketDataConfig.Timeframe, "1h"))
	cfg.MarketDataConfig.CandleLimit = getEnvIntOrDefault("MARKET_DATA_CANDLE_LIMIT", defaultInt(cfg.MarketDataConfig.CandleLimit, 200))
	cfg.MarketDataConfig.MockMode = getEnvOrDefault("MOCK_MODE", boolStr(cfg.MarketDataConfig.MockMode)) == "true"

	cfg.EngineConfig.OrderBlockLookback = getEnvIntOrDefault("ENGINE_OB_LOOKBACK", defaultInt(cfg.EngineConfig.OrderBlockLookback, 10))
	cfg.EngineConfig.OrderBlockMinCandles = getEnvIntOrDefault("ENGINE_OB_MIN_CANDLES", defaultInt(cfg.EngineConfig.OrderBlockMinCandles, 3))
	cfg.EngineConfig.OrderBlockMaxCandles = getEnvIntOrDefault("ENGINE_OB_MAX_CANDLES", defaultInt(cfg.EngineConfig.OrderBlockMaxCandles, 15))
	cfg.EngineConfig.ImpulseThresholdPct = getEnvFloatOrDefault("ENGINE_IMPULSE_THRESHOLD_PCT", defaultFloat(cfg.EngineConfig.ImpulseThresholdPct, 1.5))
	cfg.EngineConfig.OrderBlockMaxAge = getEnvIntOrDefault("ENGINE_OB_MAX_AGE", defaultInt(cfg.EngineConfig.OrderBlockMaxAge, 100))
	cfg.EngineConfig.FVGMinSizePct = getEnvFloatOrDefault("ENGINE_FVG_MIN_SIZE_PCT", defaultFloat(cfg.EngineConfig.FVGMinSizePct, 0.1))
	cfg.EngineConfig.FVGStrongThresholdPct = getEnvFloatOrDefault("ENGINE_FVG_STRONG_THRESHOLD_PCT", defaultFloat(cfg.EngineConfig.FVGStrongThresholdPct, 0.5))
	cfg.EngineConfig.FVGMaxAgeBars = getEnvIntOrDefault("ENGINE_FVG_MAX_AGE_BARS", defaultInt(cfg.EngineConfig.FVGMaxAgeBars, 100))
	cfg.EngineConfig.SwingLookback = getEnvIntOrDefault("ENGINE_SWING_LOOKBACK", defaultInt(cfg.EngineConfig.SwingLookback, 5))
	cfg.EngineConfig.ProfileBins = getEnvIntOrDefault("ENGINE_PROFILE_BINS", defaultInt(cfg.EngineConfig.ProfileBins, 24))
	cfg.EngineConfig.ValueAreaPercent = getEnvFloatOrDefault("ENGINE_VALUE_AREA_PERCENT", defaultFloat(cfg.EngineConfig.ValueAreaPercent, 0.70))
	cfg.EngineConfig.ProfileWindow = getEnvIntOrDefault("ENGINE_PROFILE_WINDOW", defaultInt(cfg.EngineConfig.ProfileWindow, 50))
	cfg.EngineConfig.ConfluenceTolerancePct = getEnvFloatOrDefault("ENGINE_CONFLUENCE_TOLERANCE_PCT", defaultFloat(cfg.EngineConfig.ConfluenceTolerancePct, 0.5))
	cfg.EngineConfig.MinSignals = getEnvIntOrDefault("ENGINE_MIN_SIGNALS", defaultInt(cfg.EngineConfig.MinSignals, 2))
	cfg.EngineConfig.MaxPlans = getEnvIntOrDefault("ENGINE_MAX_PLANS", defaultInt(cfg.EngineConfig.MaxPlans, 3))

	cfg.RiskConfig.MaxRiskPct = getEnvFloatOrDefault("RISK_MAX_RISK_PCT", defaultFloat(cfg.RiskConfig.MaxRiskPct, 0.02))
	cfg.RiskConfig.MinRiskRewardRatio = getEnvFloatOrDefault("RISK_MIN_RR_RATIO", defaultFloat(cfg.RiskConfig.MinRiskRewardRatio, 2.0))
	cfg.RiskConfig.ATRMultiplier = getEnvFloatOrDefault("RISK_ATR_MULTIPLIER", defaultFloat(cfg.RiskConfig.ATRMultiplier, 1.5))
	cfg.RiskConfig.TrailingPct = getEnvFloatOrDefault("RISK_TRAILING_PCT", defaultFloat(cfg.RiskConfig.TrailingPct, 1.0))
	cfg.RiskConfig.TrailingActivationPct = getEnvFloatOrDefault("RISK_TRAILING_ACTIVATION_PCT", defaultFloat(cfg.RiskConfig.TrailingActivationPct, 1.0))

	cfg.AccountConfig.Balance = getEnvFloatOrDefault("ACCOUNT_BALANCE", defaultFloat(cfg.AccountConfig.Balance, 10000))
	cfg.AccountConfig.RiskPct = getEnvFloatOrDefault("ACCOUNT_RISK_PCT", defaultFloat(cfg.AccountConfig.RiskPct, 0.01))

	cfg.ScannerConfig.Enabled = getEnvOrDefault("SCANNER_ENABLED", "true") == "true"
	if symbols := os.Getenv("SCANNER_SYMBOLS"); symbols != "" {
		cfg.ScannerConfig.Symbols = splitCSV(symbols)
	}
	if len(cfg.ScannerConfig.Symbols) == 0 {
		cfg.ScannerConfig.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	cfg.ScannerConfig.ScanInterval = getEnvIntOrDefault("SCANNER_SCAN_INTERVAL", defaultInt(cfg.ScannerConfig.ScanInterval, 60))
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKER_COUNT", defaultInt(cfg.ScannerConfig.WorkerCount, 4))
	cfg.ScannerConfig.ScanTimeout = getEnvIntOrDefault("SCANNER_SCAN_TIMEOUT", defaultInt(cfg.ScannerConfig.ScanTimeout, 120))

	cfg.ServerConfig.Enabled = getEnvOrDefault("SERVER_ENABLED", "true") == "true"
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", boolStr(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultStr(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultStr(cfg.DatabaseConfig.Database, "confluence"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultStr(cfg.DatabaseConfig.SSLMode, "disable"))

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultStr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
