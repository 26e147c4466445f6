// Package config provides configuration management for the parley chat server.
// Configuration is read once at start-up from an optional YAML file, layered
// over DefaultConfig and then over environment overrides. It is immutable for
// the lifetime of the process.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported inference providers. Anything other than ProviderBedrock is
// served through gollm.
const (
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Config represents the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the whole response, so it has to outlive the
	// slowest model reply (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// on shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the /chat request body. Zero disables the cap
	// (default: 1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// InferenceConfig describes the single model this process talks to.
type InferenceConfig struct {
	// Provider selects the backend: bedrock, openai, anthropic or ollama
	Provider string `yaml:"provider"`

	// ModelID is the provider model identifier,
	// e.g. "anthropic.claude-3-haiku-20240307-v1:0" on Bedrock
	ModelID string `yaml:"model_id"`

	// Region is the AWS region of the Bedrock runtime endpoint
	Region string `yaml:"region"`

	// Profile selects a shared AWS config profile. Empty uses the default
	// credential chain.
	Profile string `yaml:"profile"`

	// Temperature must be between 0 and 1
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the length of the generated reply
	MaxTokens int `yaml:"max_tokens"`

	// APIKey is only used by the gollm-backed providers
	APIKey string `yaml:"api_key"`

	// Endpoint overrides the provider endpoint (Ollama URL, Bedrock VPC
	// endpoint). The openai and anthropic providers reject it.
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present. The inference defaults match the hosted Claude 3 Haiku
// deployment the service was built for.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Inference: InferenceConfig{
			Provider:    ProviderBedrock,
			ModelID:     "anthropic.claude-3-haiku-20240307-v1:0",
			Region:      "ap-south-1",
			Temperature: 0.9,
			MaxTokens:   2000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references. A variable
// that is unset or empty falls back to its default; references left in the
// substituted values are expanded again until nothing changes.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("unterminated variable reference")
	}

	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})

	prev := ""
	for prev != result {
		prev = result
		result = os.Expand(result, os.Getenv)
	}

	return result, nil
}

// Load loads configuration from an io.Reader. The YAML is decoded on top of
// DefaultConfig and validated; environment overrides are applied separately
// by ApplyEnv.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("negative max body bytes: %d", c.Server.MaxBodyBytes)
	}

	// Inference validation
	switch c.Inference.Provider {
	case ProviderBedrock:
		if c.Inference.Region == "" {
			return fmt.Errorf("empty region for bedrock provider")
		}
	case ProviderOpenAI, ProviderAnthropic:
		if c.Inference.Endpoint != "" {
			return fmt.Errorf("endpoint override is not supported by the %s provider", c.Inference.Provider)
		}
	case ProviderOllama:
	case "":
		return fmt.Errorf("empty inference provider")
	default:
		return fmt.Errorf("unsupported inference provider: %s", c.Inference.Provider)
	}
	if c.Inference.ModelID == "" {
		return fmt.Errorf("empty model id")
	}
	if c.Inference.Temperature < 0 || c.Inference.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1: %v", c.Inference.Temperature)
	}
	if c.Inference.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive: %d", c.Inference.MaxTokens)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %q", c.Metrics.Path)
	}
	if c.Metrics.Enabled && (c.Metrics.Path == "/" || c.Metrics.Path == "/chat") {
		return fmt.Errorf("metrics path collides with an API route: %s", c.Metrics.Path)
	}

	return nil
}
