package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
)

// Config holds all application configuration.
//
// Values are layered: Default, then the optional YAML file, then
// environment variables. Env fields carry no defaults so an unset variable
// never overrides the file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Shell     ShellConfig     `yaml:"shell"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port"`
	Host string `envconfig:"HOST" yaml:"host"`
}

// ShellConfig holds shell session configuration.
type ShellConfig struct {
	Path           string        `envconfig:"SHELL_PATH" yaml:"path"`
	Args           []string      `envconfig:"SHELL_ARGS" yaml:"args"`
	WorkDir        string        `envconfig:"SHELL_WORKDIR" yaml:"workdir"`
	Delimiter      string        `envconfig:"SHELL_DELIMITER" yaml:"delimiter"`
	ErrorMarker    string        `envconfig:"SHELL_ERROR_MARKER" yaml:"error_marker"`
	ReadyFallback  time.Duration `envconfig:"SHELL_READY_FALLBACK" yaml:"ready_fallback"`
	CommandTimeout time.Duration `envconfig:"SHELL_COMMAND_TIMEOUT" yaml:"command_timeout"`
	IdleTimeout    time.Duration `envconfig:"SHELL_IDLE_TIMEOUT" yaml:"idle_timeout"`
	MaxSessions    int           `envconfig:"SHELL_MAX_SESSIONS" yaml:"max_sessions"`
	SpawnFailures  uint32        `envconfig:"SHELL_SPAWN_FAILURES" yaml:"spawn_failures"`
	SpawnCooldown  time.Duration `envconfig:"SHELL_SPAWN_COOLDOWN" yaml:"spawn_cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled"`
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	shell := terminal.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Shell: ShellConfig{
			Path:           shell.ShellPath,
			Args:           shell.ShellArgs,
			WorkDir:        shell.WorkDir,
			ErrorMarker:    shell.ErrorMarker,
			ReadyFallback:  shell.ReadyFallback,
			CommandTimeout: 60 * time.Second,
			IdleTimeout:    shell.IdleTimeout,
			MaxSessions:    shell.MaxSessions,
			SpawnFailures:  shell.SpawnFailureThreshold,
			SpawnCooldown:  shell.SpawnCooldown,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}
	if c.Shell.Path == "" {
		errs = append(errs, errors.New("shell path is required"))
	}
	if c.Shell.WorkDir == "" {
		errs = append(errs, errors.New("shell workdir is required"))
	}
	if c.Shell.ReadyFallback <= 0 {
		errs = append(errs, fmt.Errorf("shell ready fallback must be positive, got %s", c.Shell.ReadyFallback))
	}
	if c.Shell.CommandTimeout < 0 {
		errs = append(errs, fmt.Errorf("shell command timeout must not be negative, got %s", c.Shell.CommandTimeout))
	}
	if c.Shell.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("shell idle timeout must not be negative, got %s", c.Shell.IdleTimeout))
	}
	if c.Shell.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("max sessions must not be negative, got %d", c.Shell.MaxSessions))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit requires positive rps and burst when enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Address returns the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Terminal returns the session manager settings.
func (c *Config) Terminal() terminal.Config {
	return terminal.Config{
		ShellPath:             c.Shell.Path,
		ShellArgs:             c.Shell.Args,
		WorkDir:               c.Shell.WorkDir,
		Delimiter:             c.Shell.Delimiter,
		ErrorMarker:           c.Shell.ErrorMarker,
		ReadyFallback:         c.Shell.ReadyFallback,
		IdleTimeout:           c.Shell.IdleTimeout,
		MaxSessions:           c.Shell.MaxSessions,
		SpawnFailureThreshold: c.Shell.SpawnFailures,
		SpawnCooldown:         c.Shell.SpawnCooldown,
	}
}
