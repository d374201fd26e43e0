package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvBackendURL = "FLIGHT_BACKEND_URL"
	EnvLogLevel   = "FLIGHT_LOG_LEVEL"
	EnvHTTPPort   = "FLIGHT_HTTP_PORT"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server"`   // HTTP server settings
	Backend BackendConfig `toml:"backend" yaml:"backend"` // Flight/position snapshot source settings
	Display DisplayConfig `toml:"display" yaml:"display"` // Locale and time formatting for list cards and popups
	Logging LoggingConfig `toml:"logging" yaml:"logging"` // Application logging settings
	NATS    NATSConfig    `toml:"nats" yaml:"nats"`       // Optional NATS mirror of render operations
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port             int    `toml:"port" yaml:"port"`                                   // HTTP port for the dashboard
	Host             string `toml:"host" yaml:"host"`                                   // Host address to bind to
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds" yaml:"read_timeout_seconds"`   // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds" yaml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`   // Keep-alive idle timeout
	StaticFilesDir   string `toml:"static_files_dir" yaml:"static_files_dir"`           // Directory with the dashboard page (optional)
}

// BackendConfig describes where flight and position snapshots come from
type BackendConfig struct {
	BaseURL            string `toml:"base_url" yaml:"base_url"`                             // Base URL of the flight backend (FLIGHT_BACKEND_URL overrides)
	FlightsPath        string `toml:"flights_path" yaml:"flights_path"`                     // Path of the flight metadata collection
	PositionsPath      string `toml:"positions_path" yaml:"positions_path"`                 // Path of the position report collection
	FetchIntervalSecs  int    `toml:"fetch_interval_seconds" yaml:"fetch_interval_seconds"` // Poll period
	RequestTimeoutSecs int    `toml:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	StaleAfterFailures int    `toml:"stale_after_failures" yaml:"stale_after_failures"` // Consecutive fetch failures before data is flagged stale
}

// DisplayConfig controls translated labels and time formatting
type DisplayConfig struct {
	Locale     string `toml:"locale" yaml:"locale"`           // "es" or "en"
	Timezone   string `toml:"timezone" yaml:"timezone"`       // IANA zone used for departure times, "Local" for the host zone
	TimeFormat string `toml:"time_format" yaml:"time_format"` // Go layout for departure times
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`   // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format" yaml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// NATSConfig enables publishing marker and list operations to JetStream
type NATSConfig struct {
	Enabled       bool   `toml:"enabled" yaml:"enabled"`
	URL           string `toml:"url" yaml:"url"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix"`
	Stream        string `toml:"stream" yaml:"stream"`
}

// Default returns a configuration with every optional field filled in
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             8080,
			Host:             "0.0.0.0",
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 15,
			IdleTimeoutSecs:  60,
		},
		Backend: BackendConfig{
			FlightsPath:        "/api/flights",
			PositionsPath:      "/api/positions",
			FetchIntervalSecs:  5,
			RequestTimeoutSecs: 10,
			StaleAfterFailures: 3,
		},
		Display: DisplayConfig{
			Locale:     "es",
			Timezone:   "Local",
			TimeFormat: "15:04",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "flightboard",
			Stream:        "FLIGHT_BOARD",
		},
	}
}

// Load loads the configuration from a TOML or YAML file on top of the defaults
func Load(path string) (*Config, error) {
	config := Default()

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	return config, nil
}

// LoadWithFallback attempts to load config from multiple locations in order of preference.
// When no file exists the defaults are used, so the dashboard can run from the environment alone.
// Environment overrides (and a .env file, if present) are applied last.
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Conventional location in configs/ folder
		"config.toml",         // Root directory
	}

	var config *Config
	for _, path := range searchPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if path == preferredPath {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			continue
		}
		loaded, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config = loaded
		break
	}
	if config == nil {
		config = Default()
	}

	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvHTTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvHTTPPort, v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks the configuration and fills in defaults for empty optional fields
func (c *Config) Validate() error {
	defaults := Default()

	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	if err := c.ValidateBackend(); err != nil {
		return err
	}
	if err := c.ValidateDisplay(); err != nil {
		return err
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid log level
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		// Valid log format
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fmt.Errorf("nats url is required when nats is enabled")
		}
		if c.NATS.SubjectPrefix == "" {
			c.NATS.SubjectPrefix = defaults.NATS.SubjectPrefix
		}
		if c.NATS.Stream == "" {
			c.NATS.Stream = defaults.NATS.Stream
		}
	}

	return nil
}

// ValidateBackend checks the snapshot source settings
func (c *Config) ValidateBackend() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required (or set %s)", EnvBackendURL)
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend base_url scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend base_url has no host: %s", c.Backend.BaseURL)
	}

	if c.Backend.FlightsPath == "" {
		c.Backend.FlightsPath = "/api/flights"
	}
	if c.Backend.PositionsPath == "" {
		c.Backend.PositionsPath = "/api/positions"
	}
	if c.Backend.FetchIntervalSecs <= 0 {
		return fmt.Errorf("invalid fetch interval: %d", c.Backend.FetchIntervalSecs)
	}
	if c.Backend.RequestTimeoutSecs <= 0 {
		c.Backend.RequestTimeoutSecs = 10
	}
	if c.Backend.StaleAfterFailures < 0 {
		return fmt.Errorf("invalid stale_after_failures: %d (must be >= 0)", c.Backend.StaleAfterFailures)
	}
	return nil
}

// ValidateDisplay checks locale and timezone settings
func (c *Config) ValidateDisplay() error {
	switch c.Display.Locale {
	case "":
		c.Display.Locale = "es"
	case "es", "en":
	default:
		return fmt.Errorf("invalid display locale: %s (must be 'es' or 'en')", c.Display.Locale)
	}
	if c.Display.Timezone == "" {
		c.Display.Timezone = "Local"
	}
	if _, err := c.Display.Location(); err != nil {
		return err
	}
	if c.Display.TimeFormat == "" {
		c.Display.TimeFormat = "15:04"
	}
	return nil
}

// Location resolves the configured display timezone
func (d DisplayConfig) Location() (*time.Location, error) {
	if d.Timezone == "" || d.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// FlightsURL returns the absolute URL of the flight collection
func (b BackendConfig) FlightsURL() string {
	return joinURL(b.BaseURL, b.FlightsPath)
}

// PositionsURL returns the absolute URL of the position collection
func (b BackendConfig) PositionsURL() string {
	return joinURL(b.BaseURL, b.PositionsPath)
}

// FetchInterval returns the poll period as a duration
func (b BackendConfig) FetchInterval() time.Duration {
	return time.Duration(b.FetchIntervalSecs) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSecs) * time.Second
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
