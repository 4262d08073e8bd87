package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig      ServerConfig      `json:"server"`
	RedisConfig       RedisConfig       `json:"redis"`
	DatabaseConfig    DatabaseConfig    `json:"database"`
	DataManagerConfig DataManagerConfig `json:"data_manager"`
	SignalsConfig     SignalsConfig     `json:"signals"`
	EngineConfig      EngineConfig      `json:"engine"`
	HTTPSinkConfig    HTTPSinkConfig    `json:"http_sink"`
	VaultConfig       VaultConfig       `json:"vault"`
	LoggingConfig     LoggingConfig     `json:"logging"`
}

// ServerConfig holds the admin API server settings
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// RedisConfig holds the Redis connection used for the candle/signal
// streams and the document config store
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// DataManagerConfig points at the central data-manager service
type DataManagerConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url"`
}

// SignalsConfig carries the boot defaults for the signal universe and the
// risk enrichment. The live values come from the config store; these apply
// when every store misses.
type SignalsConfig struct {
	Symbols        []string  `json:"symbols"`
	Timeframes     []string  `json:"timeframes"`
	MinConfidence  float64   `json:"min_confidence"`
	MaxConfidence  float64   `json:"max_confidence"`
	MaxPositions   int       `json:"max_positions"`
	PositionSizes  []float64 `json:"position_sizes"`
	StopLossPct    float64   `json:"stop_loss_pct"`
	TakeProfitPct  float64   `json:"take_profit_pct"`
	ATRStopMult    float64   `json:"atr_stop_mult"`
	ATRTakeMult    float64   `json:"atr_take_mult"`
	ConfigCacheTTL int       `json:"config_cache_ttl"` // seconds
}

// EngineConfig tunes the worker pool and the panic guard
type EngineConfig struct {
	Shards             int `json:"shards"`
	QueueDepth         int `json:"queue_depth"`
	DisableAfterPanics int `json:"disable_after_panics"`
}

// HTTPSinkConfig configures signal delivery to the trading endpoint
type HTTPSinkConfig struct {
	Enabled          bool   `json:"enabled"`
	Endpoint         string `json:"endpoint"`
	BreakerEnabled   bool   `json:"breaker_enabled"`
	BreakerFailures  int    `json:"breaker_failures"`
	BreakerCooldown  int    `json:"breaker_cooldown"` // seconds
}

// VaultConfig holds the HashiCorp Vault settings for infrastructure
// credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", "false") == "true"
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Redis config
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("POSTGRES_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("POSTGRES_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("POSTGRES_USER", "ta_bot")
	cfg.DatabaseConfig.Password = getEnvOrDefault("POSTGRES_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("POSTGRES_DB", "ta_signals")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", "disable")

	// Data-manager config
	cfg.DataManagerConfig.Enabled = getEnvOrDefault("DATA_MANAGER_ENABLED", "true") == "true"
	cfg.DataManagerConfig.BaseURL = getEnvOrDefault("DATA_MANAGER_URL", "http://localhost:8090")

	// Signals config (boot defaults for the config store fallback chain)
	cfg.SignalsConfig.Symbols = getEnvListOrDefault("SUPPORTED_SYMBOLS", []string{"BTCUSDT", "ETHUSDT", "ADAUSDT"})
	cfg.SignalsConfig.Timeframes = getEnvListOrDefault("SUPPORTED_TIMEFRAMES", []string{"15m", "1h"})
	cfg.SignalsConfig.MinConfidence = getEnvFloatOrDefault("MIN_CONFIDENCE", 0.6)
	cfg.SignalsConfig.MaxConfidence = getEnvFloatOrDefault("MAX_CONFIDENCE", 0.95)
	cfg.SignalsConfig.MaxPositions = getEnvIntOrDefault("MAX_POSITIONS", 5)
	cfg.SignalsConfig.PositionSizes = []float64{0.1}
	cfg.SignalsConfig.StopLossPct = getEnvFloatOrDefault("DEFAULT_STOP_LOSS_PCT", 0.02)
	cfg.SignalsConfig.TakeProfitPct = getEnvFloatOrDefault("DEFAULT_TAKE_PROFIT_PCT", 0.05)
	cfg.SignalsConfig.ATRStopMult = getEnvFloatOrDefault("ATR_STOP_LOSS_MULTIPLIER", 2.0)
	cfg.SignalsConfig.ATRTakeMult = getEnvFloatOrDefault("ATR_TAKE_PROFIT_MULTIPLIER", 3.0)
	cfg.SignalsConfig.ConfigCacheTTL = getEnvIntOrDefault("CONFIG_CACHE_TTL_SECONDS", 60)

	// Engine config
	cfg.EngineConfig.Shards = getEnvIntOrDefault("ENGINE_SHARDS", 4)
	cfg.EngineConfig.QueueDepth = getEnvIntOrDefault("ENGINE_QUEUE_DEPTH", 256)
	cfg.EngineConfig.DisableAfterPanics = getEnvIntOrDefault("ENGINE_DISABLE_AFTER_PANICS", 3)

	// HTTP sink config
	cfg.HTTPSinkConfig.Endpoint = getEnvOrDefault("TA_BOT_API_ENDPOINT", cfg.HTTPSinkConfig.Endpoint)
	cfg.HTTPSinkConfig.Enabled = cfg.HTTPSinkConfig.Endpoint != "" &&
		getEnvOrDefault("HTTP_SINK_ENABLED", "true") == "true"
	cfg.HTTPSinkConfig.BreakerEnabled = getEnvOrDefault("HTTP_SINK_BREAKER_ENABLED", "true") == "true"
	cfg.HTTPSinkConfig.BreakerFailures = getEnvIntOrDefault("HTTP_SINK_BREAKER_FAILURES", 5)
	cfg.HTTPSinkConfig.BreakerCooldown = getEnvIntOrDefault("HTTP_SINK_BREAKER_COOLDOWN", 30)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "ta-signal-bot/infra")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CACERT", cfg.VaultConfig.CACert)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
