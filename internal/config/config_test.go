package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(c *Config)
		errorMsg string
	}{
		{
			name:   "defaults are valid",
			modify: func(c *Config) {},
		},
		{
			name:     "invalid udp port",
			modify:   func(c *Config) { c.Server.UDPPort = 70000 },
			errorMsg: "udp_port must be between 1 and 65535",
		},
		{
			name:     "empty bind address",
			modify:   func(c *Config) { c.Server.BindAddress = "" },
			errorMsg: "bind_address cannot be empty",
		},
		{
			name:     "buffer larger than a datagram",
			modify:   func(c *Config) { c.Server.BufferSize = 70000 },
			errorMsg: "buffer_size must be between 1024 and 65507",
		},
		{
			name:     "zero queue",
			modify:   func(c *Config) { c.Server.QueueSize = 0 },
			errorMsg: "queue_size must be at least 1",
		},
		{
			name:     "invalid http port",
			modify:   func(c *Config) { c.HTTP.Port = 0 },
			errorMsg: "http port must be between 1 and 65535",
		},
		{
			name:     "empty static dir",
			modify:   func(c *Config) { c.HTTP.StaticDir = "" },
			errorMsg: "static_dir cannot be empty",
		},
		{
			name:     "empty storage path",
			modify:   func(c *Config) { c.Storage.Path = "  " },
			errorMsg: "storage config: path cannot be empty",
		},
		{
			name: "rate limit ignored while disabled",
			modify: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Burst = 0
			},
		},
		{
			name: "rate limit burst",
			modify: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Burst = 0
			},
			errorMsg: "burst must be at least 1",
		},
		{
			name: "admin without address",
			modify: func(c *Config) {
				c.Admin.Enabled = true
				c.Admin.Address = ""
			},
			errorMsg: "admin address cannot be empty",
		},
		{
			name:     "unknown log level",
			modify:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level must be one of",
		},
		{
			name:     "unknown log format",
			modify:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "format must be 'json' or 'text'",
		},
		{
			name: "log file needs rotation size",
			modify: func(c *Config) {
				c.Logging.Output = "logs/relay.log"
				c.Logging.MaxSizeMB = 0
			},
			errorMsg: "max_size_mb must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfigLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name       string
		configYAML string
		errorMsg   string
		check      func(t *testing.T, c *Config)
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  udp_port: 5001
  bind_address: "127.0.0.1"
  buffer_size: 8192
  queue_size: 10
http:
  address: "127.0.0.1"
  port: 3001
  static_dir: "web"
  max_body_bytes: 4096
storage:
  path: "/var/lib/relay/data.json"
logging:
  level: "debug"
  format: "json"
  output: "stderr"
`,
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 5001, c.Server.UDPPort)
				assert.Equal(t, 8192, c.Server.BufferSize)
				assert.Equal(t, 3001, c.HTTP.Port)
				assert.Equal(t, "web", c.HTTP.StaticDir)
				assert.Equal(t, "/var/lib/relay/data.json", c.Storage.Path)
				assert.Equal(t, "debug", c.Logging.Level)
			},
		},
		{
			name: "partial file keeps defaults",
			configYAML: `
http:
  port: 8080
`,
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 8080, c.HTTP.Port)
				assert.Equal(t, 5000, c.Server.UDPPort)
				assert.Equal(t, "storage/data.json", c.Storage.Path)
			},
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  udp_port: 4444
  buffer_size: invalid_number
`,
			errorMsg: "failed to parse",
		},
		{
			name: "explicitly emptied field",
			configYAML: `
server:
  bind_address: ""
`,
			errorMsg: "bind_address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.configYAML), 0644))

			cfg, err := Load(configPath)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfigLoadNonexistentFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, "0.0.0.0", cfg.HTTP.Address)
	assert.Equal(t, 5000, cfg.Server.UDPPort)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddress)
	assert.Equal(t, "storage/data.json", cfg.Storage.Path)
	assert.False(t, cfg.Admin.Enabled)
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("RELAY_HTTP_PORT", "8081")
	t.Setenv("RELAY_UDP_PORT", "6000")
	t.Setenv("RELAY_STORAGE_PATH", "/tmp/relay.json")
	t.Setenv("RELAY_LOG_LEVEL", "warn")
	t.Setenv("RELAY_ADMIN_ENABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.HTTP.Port)
	assert.Equal(t, 6000, cfg.Server.UDPPort)
	assert.Equal(t, "/tmp/relay.json", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Admin.Enabled)
}

func TestConfigEnvironmentOverrideRejectsGarbage(t *testing.T) {
	cfg := Default()
	env := map[string]string{"RELAY_UDP_PORT": "five-thousand"}

	err := cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELAY_UDP_PORT")
}

func TestHelpers(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:5000", cfg.Server.ListenAddress())
	assert.Equal(t, "0.0.0.0:3000", cfg.HTTP.ListenAddress())
	assert.Equal(t, "127.0.0.1:9090", cfg.Admin.ListenAddress())
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.GetClientTTLDuration())

	assert.False(t, (&LoggingConfig{Output: "stdout"}).IsFile())
	assert.False(t, (&LoggingConfig{Output: ""}).IsFile())
	assert.True(t, (&LoggingConfig{Output: "logs/relay.log"}).IsFile())
}
