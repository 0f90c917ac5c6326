// Package config loads session manager configuration from defaults, an
// optional YAML file, and environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables override file values.
const (
	EnvNamePrefix     = "CPENLINK_NAME_PREFIX"
	EnvAdapterPath    = "CPENLINK_ADAPTER_PATH"
	EnvScanDuration   = "CPENLINK_SCAN_DURATION"
	EnvCommandTimeout = "CPENLINK_COMMAND_TIMEOUT"
	EnvCacheTTL       = "CPENLINK_CACHE_TTL"
	EnvPushWait       = "CPENLINK_PUSH_WAIT"
	EnvConnectBudget  = "CPENLINK_CONNECT_BUDGET"
	EnvProtocolLog    = "CPENLINK_PROTOCOL_LOG"
	EnvLogLevel       = "CPENLINK_LOG_LEVEL"
)

// Duration wraps time.Duration for YAML parsing ("500ms", "30s").
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all tunables of the session manager.
type Config struct {
	// NamePrefix selects target devices by advertised name.
	NamePrefix string `yaml:"name_prefix"`

	// AdapterPath is the BlueZ adapter object path.
	AdapterPath string `yaml:"adapter_path"`

	// ScanDuration bounds one discovery pass.
	ScanDuration Duration `yaml:"scan_duration"`

	// CommandTimeout bounds one command round trip.
	CommandTimeout Duration `yaml:"command_timeout"`

	// CacheTTL is how long a fetched value is reused.
	CacheTTL Duration `yaml:"cache_ttl"`

	// PushWait bounds the post-fetch wait for unsolicited pushes.
	PushWait Duration `yaml:"push_wait"`

	// ConnectBudget bounds the combined discover+connect+fetch path.
	ConnectBudget Duration `yaml:"connect_budget"`

	// ProtocolLog is the capture file path. Empty disables capture.
	ProtocolLog string `yaml:"protocol_log"`

	// LogLevel is the operational log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration matching the device firmware's
// timing expectations.
func Default() *Config {
	return &Config{
		NamePrefix:     "cpen",
		AdapterPath:    "/org/bluez/hci0",
		ScanDuration:   Duration(5 * time.Second),
		CommandTimeout: Duration(500 * time.Millisecond),
		CacheTTL:       Duration(30 * time.Second),
		PushWait:       Duration(2 * time.Second),
		ConnectBudget:  Duration(15 * time.Second),
		LogLevel:       "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped
// when path is empty or the file does not exist), and environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv(EnvNamePrefix); v != "" {
		cfg.NamePrefix = v
	}
	if v := os.Getenv(EnvAdapterPath); v != "" {
		cfg.AdapterPath = v
	}
	if v := os.Getenv(EnvProtocolLog); v != "" {
		cfg.ProtocolLog = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	durations := []struct {
		env string
		dst *Duration
	}{
		{EnvScanDuration, &cfg.ScanDuration},
		{EnvCommandTimeout, &cfg.CommandTimeout},
		{EnvCacheTTL, &cfg.CacheTTL},
		{EnvPushWait, &cfg.PushWait},
		{EnvConnectBudget, &cfg.ConnectBudget},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = Duration(parsed)
	}
	return nil
}

// Validate checks that all tunables are usable.
func (c *Config) Validate() error {
	if c.NamePrefix == "" {
		return fmt.Errorf("name_prefix must not be empty")
	}
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"scan_duration", c.ScanDuration},
		{"command_timeout", c.CommandTimeout},
		{"cache_ttl", c.CacheTTL},
		{"push_wait", c.PushWait},
		{"connect_budget", c.ConnectBudget},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
