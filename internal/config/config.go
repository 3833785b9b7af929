package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the wakemeup binaries.
type Config struct {
	// ListenAddress is the address the daemon's HTTP API binds to.
	ListenAddress string `yaml:"listen_addr"`
	// StateFile is the path to the JSON file storing the alarm collection.
	StateFile string `yaml:"state_file"`
	// LogLevel is the minimum level for log output (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// RedisURL optionally enables Redis pub/sub fan-out of trigger events
	// to other processes. Empty means in-memory fan-out only.
	RedisURL string `yaml:"redis_url"`
	// Location tunes the tracking session and proximity polling.
	Location LocationConfig `yaml:"location"`
	// Places configures the place autocomplete client.
	Places PlacesConfig `yaml:"places"`
}

// LocationConfig tunes the location provider and the tracking session.
type LocationConfig struct {
	// Accuracy is the requested provider accuracy (low, balanced, high, best).
	Accuracy string `yaml:"accuracy"`
	// Interval is the requested spacing between continuous updates.
	Interval time.Duration `yaml:"interval"`
	// MinDistanceMeters suppresses updates closer than this to the last one.
	MinDistanceMeters float64 `yaml:"min_distance_m"`
	// OneShotTimeout bounds a single current-location query.
	OneShotTimeout time.Duration `yaml:"one_shot_timeout"`
	// PollInterval drives the engine's fallback one-shot polling loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PermissionSettleDelay is the pause after a fresh permission grant,
	// letting the platform's async authorization callback land before
	// status is queried again.
	PermissionSettleDelay time.Duration `yaml:"permission_settle_delay"`
}

// PlacesConfig configures the place autocomplete/details client.
type PlacesConfig struct {
	// APIKey authenticates requests to the places service.
	APIKey string `yaml:"api_key"`
	// BaseURL is the places service root. Defaults to the Google Maps API.
	BaseURL string `yaml:"base_url"`
	// RequestsPerSecond caps outbound lookup traffic.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "wakemeup-settings.yaml"

	// DefaultStateFilename is the default filename for the alarm collection JSON.
	DefaultStateFilename = "wakemeup-alarms.json"

	// DefaultListenAddress is the default HTTP bind address.
	DefaultListenAddress = ":8080"

	// DefaultOneShotTimeout bounds one-shot location queries.
	DefaultOneShotTimeout = 10 * time.Second

	// DefaultPollInterval is the fallback proximity polling interval.
	DefaultPollInterval = 15 * time.Second

	// DefaultUpdateInterval is the requested spacing between stream updates.
	DefaultUpdateInterval = time.Second

	// DefaultMinDistanceMeters is the minimum movement between stream updates.
	DefaultMinDistanceMeters = 10

	// DefaultPermissionSettleDelay lets a fresh permission grant settle.
	DefaultPermissionSettleDelay = 500 * time.Millisecond

	// DefaultPlacesBaseURL is the Google Maps API root the original app used
	// through its CORS proxy.
	DefaultPlacesBaseURL = "https://maps.googleapis.com"

	// DefaultPlacesRequestsPerSecond caps autocomplete traffic.
	DefaultPlacesRequestsPerSecond = 5

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential
// fields. A missing file is not an error: the daemon runs on defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling defaults for anything left unset.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
	}

	if _, err := url.ParseRequestURI(cfg.Places.BaseURL); err != nil {
		return fmt.Errorf("invalid places base URL: %w", err)
	}

	return nil
}

// applyDefaults fills zero-valued fields in place.
func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Location.Accuracy == "" {
		cfg.Location.Accuracy = "high"
	}

	if cfg.Location.Interval <= 0 {
		cfg.Location.Interval = DefaultUpdateInterval
	}

	if cfg.Location.MinDistanceMeters <= 0 {
		cfg.Location.MinDistanceMeters = DefaultMinDistanceMeters
	}

	if cfg.Location.OneShotTimeout <= 0 {
		cfg.Location.OneShotTimeout = DefaultOneShotTimeout
	}

	if cfg.Location.PollInterval <= 0 {
		cfg.Location.PollInterval = DefaultPollInterval
	}

	if cfg.Location.PermissionSettleDelay <= 0 {
		cfg.Location.PermissionSettleDelay = DefaultPermissionSettleDelay
	}

	if cfg.Places.BaseURL == "" {
		cfg.Places.BaseURL = DefaultPlacesBaseURL
	}

	if cfg.Places.RequestsPerSecond <= 0 {
		cfg.Places.RequestsPerSecond = DefaultPlacesRequestsPerSecond
	}
}
