package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// envConfig lists every environment variable parley honours. Values that
// have a legitimate zero (temperature, booleans) are read as strings so an
// unset variable can be told apart from an explicit zero.
type envConfig struct {
	Region  string `env:"AWS_REGION"`
	Profile string `env:"AWS_PROFILE"`

	Port int `env:"PARLEY_PORT"`

	Provider    string `env:"PARLEY_PROVIDER"`
	ModelID     string `env:"PARLEY_MODEL_ID"`
	Temperature string `env:"PARLEY_TEMPERATURE"`
	MaxTokens   int    `env:"PARLEY_MAX_TOKENS"`
	APIKey      string `env:"PARLEY_API_KEY"`
	Endpoint    string `env:"PARLEY_ENDPOINT"`

	LogLevel  string `env:"PARLEY_LOG_LEVEL"`
	LogFormat string `env:"PARLEY_LOG_FORMAT"`

	MetricsEnabled string `env:"PARLEY_METRICS_ENABLED"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg and re-validates it.
func ApplyEnv(ctx context.Context, cfg *Config) error {
	var env envConfig
	if err := envconfig.Process(ctx, &env); err != nil {
		return fmt.Errorf("process env: %w", err)
	}

	if v := strings.TrimSpace(env.Region); v != "" {
		cfg.Inference.Region = v
	}
	if v := strings.TrimSpace(env.Profile); v != "" {
		cfg.Inference.Profile = v
	}
	if env.Port > 0 {
		cfg.Server.Port = env.Port
	}
	if v := strings.TrimSpace(env.Provider); v != "" {
		cfg.Inference.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(env.ModelID); v != "" {
		cfg.Inference.ModelID = v
	}
	if v := strings.TrimSpace(env.Temperature); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PARLEY_TEMPERATURE: %w", err)
		}
		cfg.Inference.Temperature = t
	}
	if env.MaxTokens > 0 {
		cfg.Inference.MaxTokens = env.MaxTokens
	}
	if v := strings.TrimSpace(env.APIKey); v != "" {
		cfg.Inference.APIKey = v
	}
	if v := strings.TrimSpace(env.Endpoint); v != "" {
		cfg.Inference.Endpoint = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(env.LogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(env.MetricsEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PARLEY_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = enabled
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty), then the environment.
func Resolve(ctx context.Context, path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := ApplyEnv(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
