package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Slack     SlackConfig     `yaml:"slack"`
	Queue     QueueConfig     `yaml:"queue"`
	Selector  SelectorConfig  `yaml:"selector"`
	Shop      ShopConfig      `yaml:"shop"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds Anthropic Messages API settings.
type LLMConfig struct {
	BaseURL         string               `yaml:"base_url"`
	APIKey          string               `yaml:"api_key"`
	Model           string               `yaml:"model"`
	ClassifierModel string               `yaml:"classifier_model"`
	MaxTokens       int                  `yaml:"max_tokens"`
	ConnTimeout     time.Duration        `yaml:"conn_timeout"`
	RespTimeout     time.Duration        `yaml:"resp_timeout"`
	Pool            PoolConfig           `yaml:"pool"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for outbound APIs.
type CircuitBreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// EmbeddingConfig holds text embedding provider settings.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Timeout    time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	Channel       string `yaml:"channel"`
}

// QueueConfig holds confirmation queue settings.
type QueueConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// SelectorConfig holds tool selection tuning.
type SelectorConfig struct {
	MinSimilarity float32 `yaml:"min_similarity"`
	ToolLimit     int     `yaml:"tool_limit"`
}

// ShopConfig holds e-commerce platform API settings.
type ShopConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Model:           "claude-sonnet-4-20250514",
			ClassifierModel: "claude-3-5-haiku-latest",
			MaxTokens:       4096,
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			RateLimit:  5,
			Timeout:    30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/admin-agent.db",
		},
		Queue: QueueConfig{
			TTL:           5 * time.Minute,
			SweepInterval: time.Minute,
		},
		Selector: SelectorConfig{
			MinSimilarity: 0.5,
			ToolLimit:     10,
		},
		Shop: ShopConfig{
			Timeout: 15 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps env vars to config fields. Secrets are expected
// to arrive this way rather than living in the config file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.Slack.SigningSecret = v
	}
	if v := os.Getenv("SHOP_ACCESS_TOKEN"); v != "" {
		cfg.Shop.AccessToken = v
	}
	if v := os.Getenv("ADMIN_AGENT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ADMIN_AGENT_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ADMIN_AGENT_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ADMIN_AGENT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
		if cfg.Tracer.Exporter == "noop" {
			cfg.Tracer.Exporter = "stdout"
		}
	}
}

// Validate checks cross-field constraints that yaml decoding cannot.
func Validate(cfg *Config) error {
	if cfg.Selector.MinSimilarity < 0 || cfg.Selector.MinSimilarity > 1 {
		return fmt.Errorf("selector.min_similarity must be in [0,1], got %v", cfg.Selector.MinSimilarity)
	}
	if cfg.Selector.ToolLimit <= 0 {
		return fmt.Errorf("selector.tool_limit must be positive, got %d", cfg.Selector.ToolLimit)
	}
	if cfg.Queue.TTL <= 0 {
		return fmt.Errorf("queue.ttl must be positive, got %v", cfg.Queue.TTL)
	}
	if cfg.Queue.SweepInterval <= 0 {
		return fmt.Errorf("queue.sweep_interval must be positive, got %v", cfg.Queue.SweepInterval)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	return nil
}
