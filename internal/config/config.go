// Package config provides configuration management for the LogAI engine.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LLMProvider selects the capability shape used for generation calls.
type LLMProvider string

const (
	ProviderHosted LLMProvider = "hosted"
	ProviderLocal  LLMProvider = "local"
)

// Config holds all configuration for the LogAI engine.
type Config struct {
	// Collaborator endpoints
	BusURL          string `json:"bus_url"`
	WarehouseURL    string `json:"warehouse_url"`
	VectorIndexURL  string `json:"vector_index_url"`

	// LLM provider selection
	LLMProvider  LLMProvider `json:"llm_provider"`
	LLMModel     string      `json:"llm_model"`
	LLMAPIKey    string      `json:"-"` // not stored in files, from env only
	LLMBaseURL   string      `json:"llm_base_url,omitempty"`
	EmbedModel   string      `json:"embed_model"`

	// Retrieval tuning
	MaxContextLogs int `json:"max_context_logs"` // default number of log entries folded into the LLM prompt as context

	// Anomaly rule configuration
	AnomalyRulesFile string `json:"anomaly_rules_file"`

	// HTTP client configuration (outbound to LLM/vector-index/notifier)
	Timeout         time.Duration `json:"timeout"`
	MaxRetries      int           `json:"max_retries"`
	RetryWaitMin    time.Duration `json:"retry_wait_min"`
	RetryWaitMax    time.Duration `json:"retry_wait_max"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	IdleConnTimeout time.Duration `json:"idle_conn_timeout"`

	// Rate limiting (outbound calls)
	RateLimit       int  `json:"rate_limit"` // requests per second
	RateLimitBurst  int  `json:"rate_limit_burst"`
	EnableRateLimit bool `json:"enable_rate_limit"`

	TLSVerify bool `json:"tls_verify"`

	// Observability
	EnableTracing   bool `json:"enable_tracing"`
	MetricsEndpoint bool `json:"metrics_endpoint"`

	// Health & metrics HTTP server
	Port            int           `json:"port"`
	HealthPort      int           `json:"health_port"`
	HealthBindAddr  string        `json:"health_bind_addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // json or console

	// Session store backend: "memory" for a single process, "redis" to share state across replicas
	SessionBackend string `json:"session_backend"` // "memory" or "redis"
	SessionRedisURL string `json:"session_redis_url,omitempty"`
}

// Load reads configuration from an optional config file, then environment
// variables, applying defaults first.
func Load() (*Config, error) {
	cfg := &Config{
		BusURL:         "memory://local",
		WarehouseURL:   "memory://local",
		VectorIndexURL: "memory://local",

		LLMProvider: ProviderLocal,
		LLMModel:    "gpt-4o-mini",
		EmbedModel:  "text-embedding-3-small",

		MaxContextLogs: 10,

		AnomalyRulesFile: "",

		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    1 * time.Second,
		RetryWaitMax:    30 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,

		RateLimit:       100,
		RateLimitBurst:  20,
		EnableRateLimit: true,

		TLSVerify: true,

		EnableTracing:   true,
		MetricsEndpoint: true,

		Port:            8090,
		HealthPort:      8080,
		HealthBindAddr:  "127.0.0.1",
		ShutdownTimeout: 30 * time.Second,

		LogLevel:  "info",
		LogFormat: "json",

		SessionBackend: "memory",
	}

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid file path: path traversal detected")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is validated above
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return json.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	loadStringEnvs(cfg)
	loadDurationEnvs(cfg)
	loadIntEnvs(cfg)
	loadBoolEnvs(cfg)
}

func loadStringEnvs(cfg *Config) {
	if v := os.Getenv("LOGAI_BUS_URL"); v != "" {
		cfg.BusURL = v
	}
	if v := os.Getenv("LOGAI_WAREHOUSE_URL"); v != "" {
		cfg.WarehouseURL = v
	}
	if v := os.Getenv("LOGAI_VECTOR_INDEX_URL"); v != "" {
		cfg.VectorIndexURL = v
	}
	if v := os.Getenv("LOGAI_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = LLMProvider(v)
	}
	if v := os.Getenv("LOGAI_LLM_MODEL"); v != "" {
		cfg.LLMModel = v
	}
	if v := os.Getenv("LOGAI_LLM_API_KEY"); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := os.Getenv("LOGAI_LLM_BASE_URL"); v != "" {
		cfg.LLMBaseURL = v
	}
	if v := os.Getenv("LOGAI_EMBED_MODEL"); v != "" {
		cfg.EmbedModel = v
	}
	if v := os.Getenv("LOGAI_ANOMALY_RULES_FILE"); v != "" {
		cfg.AnomalyRulesFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LOGAI_HEALTH_BIND_ADDR"); v != "" {
		cfg.HealthBindAddr = v
	}
	if v := os.Getenv("LOGAI_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = v
	}
	if v := os.Getenv("LOGAI_SESSION_REDIS_URL"); v != "" {
		cfg.SessionRedisURL = v
	}
}

func loadDurationEnvs(cfg *Config) {
	if v := os.Getenv("LOGAI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("LOGAI_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("LOGAI_RETRY_WAIT_MIN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryWaitMin = d
		}
	}
	if v := os.Getenv("LOGAI_RETRY_WAIT_MAX"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryWaitMax = d
		}
	}
}

func loadIntEnvs(cfg *Config) {
	if v := os.Getenv("LOGAI_MAX_RETRIES"); v != "" {
		var retries int
		if _, err := fmt.Sscanf(v, "%d", &retries); err == nil {
			cfg.MaxRetries = retries
		}
	}
	if v := os.Getenv("LOGAI_RATE_LIMIT"); v != "" {
		var limit int
		if _, err := fmt.Sscanf(v, "%d", &limit); err == nil {
			cfg.RateLimit = limit
		}
	}
	if v := os.Getenv("LOGAI_RATE_LIMIT_BURST"); v != "" {
		var burst int
		if _, err := fmt.Sscanf(v, "%d", &burst); err == nil {
			cfg.RateLimitBurst = burst
		}
	}
	if v := os.Getenv("LOGAI_MAX_CONTEXT_LOGS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.MaxContextLogs = n
		}
	}
	if v := os.Getenv("LOGAI_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LOGAI_HEALTH_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.HealthPort = port
		}
	}
}

func loadBoolEnvs(cfg *Config) {
	if v := os.Getenv("LOGAI_ENABLE_RATE_LIMIT"); v != "" {
		cfg.EnableRateLimit = v == "true" || v == "1"
	}
	if v := os.Getenv("LOGAI_TLS_VERIFY"); v != "" {
		cfg.TLSVerify = v == "true" || v == "1"
	}
	if v := os.Getenv("LOGAI_ENABLE_TRACING"); v != "" {
		cfg.EnableTracing = v == "true" || v == "1"
	}
	if v := os.Getenv("LOGAI_METRICS_ENDPOINT"); v != "" {
		cfg.MetricsEndpoint = v == "true" || v == "1"
	}
}

// Validate checks that the configuration is internally consistent. No
// collaborator credential is required for boot beyond LLM credentials when
// a hosted provider is selected.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must be non-negative")
	}
	if c.RateLimit <= 0 && c.EnableRateLimit {
		return errors.New("rate_limit must be positive when rate limiting is enabled")
	}
	if c.MaxContextLogs <= 0 {
		return errors.New("max_context_logs must be positive")
	}
	if c.LLMProvider != ProviderHosted && c.LLMProvider != ProviderLocal {
		return fmt.Errorf("invalid llm_provider: %s", c.LLMProvider)
	}
	if c.LLMProvider == ProviderHosted && c.LLMAPIKey == "" {
		return errors.New("LOGAI_LLM_API_KEY is required when llm_provider=hosted")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	if c.SessionBackend != "memory" && c.SessionBackend != "redis" {
		return fmt.Errorf("invalid session_backend: %s", c.SessionBackend)
	}
	if c.SessionBackend == "redis" && c.SessionRedisURL == "" {
		return errors.New("LOGAI_SESSION_REDIS_URL is required when session_backend=redis")
	}

	return nil
}

// Redact returns a copy of the config with sensitive data masked.
func (c *Config) Redact() *Config {
	redacted := *c
	redacted.LLMAPIKey = MaskAPIKey(redacted.LLMAPIKey)
	return &redacted
}

// MaskAPIKey returns a masked version of an API key for safe logging.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}
