package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains datagram listener configuration
type ServerConfig struct {
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"` // largest datagram accepted, bytes
	QueueSize   int    `yaml:"queue_size"`
}

// HTTPConfig contains the public web server configuration
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	Port           int      `yaml:"port"`
	StaticDir      string   `yaml:"static_dir"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig points at the JSON document holding all records
type StorageConfig struct {
	Path string `yaml:"path"`
}

// RateLimitConfig controls per-client throttling of submissions
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	ClientTTL         int     `yaml:"client_ttl"` // seconds
	MaxClients        int     `yaml:"max_clients"`
}

// AdminConfig contains the operational HTTP API configuration
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration the service runs with when no file is present.
// Ports and paths match the historical fixed constants.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			UDPPort:     5000,
			BindAddress: "127.0.0.1",
			BufferSize:  4096,
			QueueSize:   1000,
		},
		HTTP: HTTPConfig{
			Address:      "0.0.0.0",
			Port:         3000,
			StaticDir:    "static",
			MaxBodyBytes: 64 << 10,
		},
		Storage: StorageConfig{
			Path: "storage/data.json",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 1,
			Burst:             5,
			ClientTTL:         600,
			MaxClients:        10000,
		},
		Admin: AdminConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  64,
			MaxBackups: 8,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Load reads and parses the configuration file.
// A missing file is not an error: defaults are used instead. Environment
// overrides (optionally from a .env file) are applied before validation.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// keep defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env is optional, only used in development
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// applyEnv overrides selected fields from the environment
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("RELAY_HTTP_ADDRESS", &c.HTTP.Address)
	str("RELAY_UDP_ADDRESS", &c.Server.BindAddress)
	str("RELAY_STORAGE_PATH", &c.Storage.Path)
	str("RELAY_STATIC_DIR", &c.HTTP.StaticDir)
	str("RELAY_LOG_LEVEL", &c.Logging.Level)

	if err := num("RELAY_HTTP_PORT", &c.HTTP.Port); err != nil {
		return err
	}
	if err := num("RELAY_UDP_PORT", &c.Server.UDPPort); err != nil {
		return err
	}

	if v, ok := lookup("RELAY_ADMIN_ENABLED"); ok && strings.TrimSpace(v) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("RELAY_ADMIN_ENABLED: %w", err)
		}
		c.Admin.Enabled = enabled
	}

	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit config: %w", err)
	}

	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates listener configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 || s.BufferSize > 65507 {
		return fmt.Errorf("buffer_size must be between 1024 and 65507 bytes, got %d", s.BufferSize)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.StaticDir == "" {
		return fmt.Errorf("static_dir cannot be empty")
	}

	if h.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", h.MaxBodyBytes)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Validate validates rate limiting configuration
func (r *RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %f", r.RequestsPerSecond)
	}

	if r.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", r.Burst)
	}

	if r.ClientTTL < 1 {
		return fmt.Errorf("client_ttl must be at least 1 second, got %d", r.ClientTTL)
	}

	if r.MaxClients < 1 {
		return fmt.Errorf("max_clients must be at least 1, got %d", r.MaxClients)
	}

	return nil
}

// Validate validates admin API configuration
func (a *AdminConfig) Validate() error {
	if a.Enabled {
		if a.Port < 1 || a.Port > 65535 {
			return fmt.Errorf("admin port must be between 1 and 65535, got %d", a.Port)
		}

		if a.Address == "" {
			return fmt.Errorf("admin address cannot be empty when admin API is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	if l.IsFile() && l.MaxSizeMB < 1 {
		return fmt.Errorf("max_size_mb must be at least 1 when logging to a file, got %d", l.MaxSizeMB)
	}

	return nil
}

// IsFile reports whether Output names a file rather than a standard stream
func (l *LoggingConfig) IsFile() bool {
	return l.Output != "" && l.Output != "stdout" && l.Output != "stderr"
}

// GetClientTTLDuration returns the limiter idle expiry as a time.Duration
func (r *RateLimitConfig) GetClientTTLDuration() time.Duration {
	return time.Duration(r.ClientTTL) * time.Second
}

// ListenAddress returns host:port for the datagram listener
func (s *ServerConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.UDPPort)
}

// ListenAddress returns host:port for the public web server
func (h *HTTPConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", h.Address, h.Port)
}

// ListenAddress returns host:port for the admin API
func (a *AdminConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", a.Address, a.Port)
}
