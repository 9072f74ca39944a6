package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Shell config
	assert.Equal(t, "/bin/bash", cfg.Shell.Path)
	assert.Equal(t, []string{"--noprofile", "--norc", "-s"}, cfg.Shell.Args)
	assert.Equal(t, "./workspace", cfg.Shell.WorkDir)
	assert.Equal(t, "[stderr] ", cfg.Shell.ErrorMarker)
	assert.Equal(t, 500*time.Millisecond, cfg.Shell.ReadyFallback)
	assert.Equal(t, 60*time.Second, cfg.Shell.CommandTimeout)
	assert.Equal(t, 64, cfg.Shell.MaxSessions)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

var envKeys = []string{
	"PORT", "HOST",
	"SHELL_PATH", "SHELL_ARGS", "SHELL_WORKDIR", "SHELL_DELIMITER", "SHELL_ERROR_MARKER",
	"SHELL_READY_FALLBACK", "SHELL_COMMAND_TIMEOUT", "SHELL_IDLE_TIMEOUT", "SHELL_MAX_SESSIONS",
	"SHELL_SPAWN_FAILURES", "SHELL_SPAWN_COOLDOWN",
	"LOG_LEVEL", "LOG_DEV",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		if value, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, value) })
			require.NoError(t, os.Unsetenv(key))
		}
	}
}

func TestLoadWithoutFileOrEnvironment(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "127.0.0.1",
		"SHELL_PATH":            "/bin/zsh",
		"SHELL_ARGS":            "-f,-s",
		"SHELL_WORKDIR":         "/srv/project",
		"SHELL_COMMAND_TIMEOUT": "5m",
		"SHELL_MAX_SESSIONS":    "8",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
	}
	clearEnv(t)
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/bin/zsh", cfg.Shell.Path)
	assert.Equal(t, []string{"-f", "-s"}, cfg.Shell.Args)
	assert.Equal(t, "/srv/project", cfg.Shell.WorkDir)
	assert.Equal(t, 5*time.Minute, cfg.Shell.CommandTimeout)
	assert.Equal(t, 8, cfg.Shell.MaxSessions)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	// Untouched values keep their defaults.
	assert.Equal(t, "[stderr] ", cfg.Shell.ErrorMarker)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codeshell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
server:
  port: "7070"
shell:
  workdir: /srv/repo
  idle_timeout: 10m
  max_sessions: 4
logging:
  level: warn
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/srv/repo", cfg.Shell.WorkDir)
	assert.Equal(t, 10*time.Minute, cfg.Shell.IdleTimeout)
	assert.Equal(t, 4, cfg.Shell.MaxSessions)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/bin/bash", cfg.Shell.Path)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
server:
  port: "7070"
shell:
  workdir: /srv/repo
`)
	t.Setenv("PORT", "7171")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7171", cfg.Server.Port)
	assert.Equal(t, "/srv/repo", cfg.Shell.WorkDir)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "server: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("SHELL_MAX_SESSIONS", "lots")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port not a number", func(c *Config) { c.Server.Port = "http" }},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }},
		{"empty shell path", func(c *Config) { c.Shell.Path = "" }},
		{"empty workdir", func(c *Config) { c.Shell.WorkDir = "" }},
		{"zero ready fallback", func(c *Config) { c.Shell.ReadyFallback = 0 }},
		{"negative command timeout", func(c *Config) { c.Shell.CommandTimeout = -time.Second }},
		{"negative max sessions", func(c *Config) { c.Shell.MaxSessions = -1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"rate limit without rps", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTerminalConfig(t *testing.T) {
	cfg := Default()
	cfg.Shell.Delimiter = "__X__"

	tc := cfg.Terminal()
	assert.Equal(t, cfg.Shell.Path, tc.ShellPath)
	assert.Equal(t, cfg.Shell.Args, tc.ShellArgs)
	assert.Equal(t, "__X__", tc.Delimiter)
	assert.Equal(t, cfg.Shell.SpawnFailures, tc.SpawnFailureThreshold)
	assert.Equal(t, "0.0.0.0:8000", cfg.Address())
}
