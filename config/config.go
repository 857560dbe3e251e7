// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIAPIKeys = "OPENAI_API_KEYS"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvWorkerTier    = "MAESTRO_WORKER_TIER"
	EnvLogLevel      = "MAESTRO_LOG_LEVEL"
	EnvOutputDir     = "MAESTRO_OUTPUT_DIR"

	// DefaultFile is read when no path is given and it exists.
	DefaultFile = "maestro.yaml"
)

// Models maps model tiers to model identifiers.
type Models struct {
	Fast     string `yaml:"fast" validate:"required"`
	Balanced string `yaml:"balanced" validate:"required"`
	High     string `yaml:"high" validate:"required"`
}

// Config holds the runtime configuration for Maestro.
type Config struct {
	APIKeys           []string      `yaml:"api_keys" validate:"dive,required"`
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	Models            Models        `yaml:"models"`
	WorkerTier        string        `yaml:"worker_tier" validate:"oneof=fast balanced high"`
	MaxOutputTokens   int           `yaml:"max_output_tokens" validate:"gt=0"`
	MaxIterations     int           `yaml:"max_iterations" validate:"gte=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gt=0"`
	TokensPerMinute   int           `yaml:"tokens_per_minute" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	CompletionMode    string        `yaml:"completion_mode" validate:"oneof=marker structured"`
	OutputDir         string        `yaml:"output_dir"`
	SaveLog           bool          `yaml:"save_log"`
	SaveUsage         bool          `yaml:"save_usage"`
	LogLevel          string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Models: Models{
			Fast:     "gpt-4o-mini",
			Balanced: "gpt-4o",
			High:     "gpt-5",
		},
		WorkerTier:        "fast",
		MaxOutputTokens:   4000,
		RequestsPerMinute: 60,
		TokensPerMinute:   90000,
		Timeout:           3 * time.Minute,
		CompletionMode:    "marker",
		SaveLog:           true,
		LogLevel:          "info",
	}
}

var validate = validator.New()

// Override adjusts a loaded configuration before it is validated.
type Override func(*Config)

// Load builds the configuration. path names a YAML file that must exist; an
// empty path reads DefaultFile only if present. A missing .env is ignored.
// Overrides run last, so command-line values replace invalid ones from the
// file or the environment.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	var keys []string
	if v := os.Getenv(EnvOpenAIAPIKey); v != "" {
		keys = append(keys, v)
	}
	for _, v := range strings.Split(os.Getenv(EnvOpenAIAPIKeys), ",") {
		if v = strings.TrimSpace(v); v != "" {
			keys = append(keys, v)
		}
	}
	if len(keys) > 0 {
		c.APIKeys = dedupe(keys)
	}

	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvWorkerTier); v != "" {
		c.WorkerTier = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ErrNoAPIKey means neither the config file nor the environment supplied a key.
var ErrNoAPIKey = errors.New("no API key configured: set " + EnvOpenAIAPIKey + " or api_keys")

// RequireAPIKey fails when no key is configured.
func (c *Config) RequireAPIKey() error {
	if len(c.APIKeys) == 0 {
		return ErrNoAPIKey
	}
	return nil
}
