// Package config loads the loupe configuration from defaults, an optional
// YAML file and LOUPE_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aymericbeaumet/loupe/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Environment names a deployment mode.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FileEnv names the variable holding the path of the YAML file.
const FileEnv = "LOUPE_CONFIG"

// Config holds all application configuration
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development production test"`
	LogLevel    string      `yaml:"log_level" validate:"oneof=debug info warn error"`
	Debug       bool        `yaml:"debug"`

	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Index   IndexConfig   `yaml:"index"`
	View    ViewConfig    `yaml:"view"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" validate:"dive,required"`
}

// BackendConfig points the viewer at the trie service it inspects. An empty
// URL means the embedded index is queried directly.
type BackendConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
	Rooted  bool          `yaml:"rooted"`
}

// IndexConfig configures the embedded development index.
type IndexConfig struct {
	DataDir  string `yaml:"data_dir" validate:"required_unless=InMemory true"`
	InMemory bool   `yaml:"in_memory"`
}

// ViewConfig configures rendering.
type ViewConfig struct {
	Layout string `yaml:"layout" validate:"required"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Server: ServerConfig{
			Address:         ":9191",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Backend: BackendConfig{
			Timeout: 10 * time.Second,
		},
		Index: IndexConfig{
			DataDir: "./data",
		},
		View: ViewConfig{
			Layout: "layered",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			ServiceName: "loupe",
			SampleRate:  1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the file named by LOUPE_CONFIG, when set, then applies the
// environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit file path. An empty path skips the
// file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Path = path
	}

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the struct tags and the cross field rules.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.IsProduction() && c.Debug {
		return fmt.Errorf("debug must be disabled in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func (c *Config) applyEnvironment() error {
	c.Environment = Environment(getEnv("LOUPE_ENV", string(c.Environment)))
	c.LogLevel = strings.ToLower(getEnv("LOUPE_LOG_LEVEL", c.LogLevel))
	c.Debug = getEnvBool("LOUPE_DEBUG", c.Debug)

	c.Server.Address = getEnv("LOUPE_ADDR", c.Server.Address)
	if origins := os.Getenv("LOUPE_CORS_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}

	c.Backend.URL = getEnv("LOUPE_BACKEND_URL", c.Backend.URL)
	c.Backend.Rooted = getEnvBool("LOUPE_BACKEND_ROOTED", c.Backend.Rooted)

	c.Index.DataDir = getEnv("LOUPE_DATA_DIR", c.Index.DataDir)
	c.Index.InMemory = getEnvBool("LOUPE_IN_MEMORY", c.Index.InMemory)

	c.View.Layout = getEnv("LOUPE_LAYOUT", c.View.Layout)

	c.Tracing.Enabled = getEnvBool("LOUPE_TRACING", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Tracing.ServiceName)

	c.Metrics.Enabled = getEnvBool("LOUPE_METRICS", c.Metrics.Enabled)

	var err error
	if c.Backend.Timeout, err = getEnvDuration("LOUPE_BACKEND_TIMEOUT", c.Backend.Timeout); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout, err = getEnvDuration("LOUPE_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
