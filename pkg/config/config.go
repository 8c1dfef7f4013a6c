package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/registry"
	"github.com/psantana5/charon/pkg/systemd"
)

const (
	DefaultRegistry = "/var/lib/charon/registry"
	DefaultSocket   = "/run/charon/charon.sock"
	DefaultLogLevel = "info"
	EnvPrefix       = "CHARON"
)

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// RateLimitConfig bounds requests to the daemon
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// Config holds charon configuration
type Config struct {
	Registry    string          `mapstructure:"registry" yaml:"registry"`
	Socket      string          `mapstructure:"socket" yaml:"socket"`
	SystemdRoot string          `mapstructure:"systemd_root" yaml:"systemd_root"`
	LogLevel    string          `mapstructure:"log_level" yaml:"log_level"`
	LogJSON     bool            `mapstructure:"log_json" yaml:"log_json"`
	Debug       bool            `mapstructure:"debug" yaml:"debug"`
	MetricsAddr string          `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	Tracing     TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Registry:    DefaultRegistry,
		Socket:      DefaultSocket,
		SystemdRoot: systemd.DefaultServiceRoot,
		LogLevel:    DefaultLogLevel,
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "charon",
			SampleRate:  1.0,
		},
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
	}
}

// SearchPaths returns the directories searched for config.yaml, in order
func SearchPaths() []string {
	paths := []string{"/etc/charon"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".charon"))
	}
	return paths
}

// Load reads configuration from path, or from the search paths when path
// is empty, then applies CHARON_* environment overrides. A missing file is
// only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-provided viper instance, so flags bound to it
// take precedence
func LoadWith(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("registry", d.Registry)
	v.SetDefault("socket", d.Socket)
	v.SetDefault("systemd_root", d.SystemdRoot)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_json", d.LogJSON)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry path must be set")
	}
	if c.Socket == "" {
		return fmt.Errorf("socket path must be set")
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// OpenRegistry returns the configured registry
func (c *Config) OpenRegistry() *registry.Registry {
	return registry.New(c.Registry)
}

// Level returns the configured log level
func (c *Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}

// Logger builds a logger from the log settings
func (c *Config) Logger() *logging.Logger {
	return logging.NewLogger(c.Level(), c.LogJSON)
}

// DebugMode reports whether side effects on the host should be skipped
func (c *Config) DebugMode() bool {
	return c.Debug
}
