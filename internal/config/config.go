// Package config loads the engine configuration file and the secrets from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration is the root of every startup configuration failure.
var ErrConfiguration = errors.New("configuration error")

// Error describes a missing or invalid setting.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return ErrConfiguration }

// Config holds the application configuration
type Config struct {
	// Path is the file the config was read from; its stem names the transcript.
	Path string `mapstructure:"-"`

	APIKey string `mapstructure:"-"`

	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Output    OutputConfig    `mapstructure:"output"`
}

type LLMConfig struct {
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
}

type EmbeddingConfig struct {
	// Provider is "openai" or "hash" (local, no network).
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

type RetrievalConfig struct {
	TopK              int `mapstructure:"top_k"`
	ChunkSize         int `mapstructure:"chunk_size"`
	MaxCharsPerSource int `mapstructure:"max_chars_per_source"`
}

type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	UserDataDir string        `mapstructure:"user_data_dir"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Screenshot  string        `mapstructure:"screenshot"`
}

type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	File      string `mapstructure:"file"`
	QueueSize int    `mapstructure:"queue_size"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoadEnv loads .env files into the process environment. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the engine configuration file at path and overlays secrets from the environment.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &Error{Field: "config_path", Reason: "is required"}
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Field: "config_path", Reason: err.Error()}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &Error{Field: "config_path", Reason: fmt.Sprintf("decode %s: %v", filepath.Base(path), err)}
	}
	cfg.Path = path

	cfg.APIKey = getEnvOrDefault("API_KEY", "")
	cfg.LLM.Model = getEnvOrDefault("MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnvOrDefault("URL", cfg.LLM.BaseURL)
	cfg.Telemetry.Endpoint = getEnvOrDefault("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &Error{Field: "API_KEY", Reason: "is required but not set in environment or .env file"}
	}
	if c.LLM.Model == "" {
		return &Error{Field: "llm.model", Reason: "cannot be empty"}
	}
	switch c.Embedding.Provider {
	case "openai", "hash":
	default:
		return &Error{Field: "embedding.provider", Reason: fmt.Sprintf("unknown provider %q", c.Embedding.Provider)}
	}
	if c.Retrieval.TopK <= 0 {
		return &Error{Field: "retrieval.top_k", Reason: "must be > 0"}
	}
	if c.Retrieval.ChunkSize <= 0 {
		return &Error{Field: "retrieval.chunk_size", Reason: "must be > 0"}
	}
	if c.Telemetry.QueueSize <= 0 {
		return &Error{Field: "telemetry.queue_size", Reason: "must be > 0"}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 512)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 256)

	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.chunk_size", 1000)
	v.SetDefault("retrieval.max_chars_per_source", 1500)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)
	v.SetDefault("browser.timeout", 10*time.Second)
	v.SetDefault("browser.screenshot", "screenshot.png")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.file", "")
	v.SetDefault("telemetry.queue_size", 64)

	v.SetDefault("output.dir", ".")
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
