// Package config loads the tool configuration from YAML and builds the
// shared logger. All fields carry sensible defaults, so an absent file and
// an empty file behave the same.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use Go duration strings
// like "10s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DeviceConfig describes one known bidet unit.
type DeviceConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name,omitempty"`
	// Variant selects the frame encoding: "modern" (default) or "legacy".
	Variant string `yaml:"variant,omitempty" default:"modern"`
}

// Config is the full tool configuration.
type Config struct {
	LogLevel       string         `yaml:"log_level,omitempty" default:"info"`
	ScanTimeout    Duration       `yaml:"scan_timeout,omitempty"`
	ConnectTimeout Duration       `yaml:"connect_timeout,omitempty"`
	WriteTimeout   Duration       `yaml:"write_timeout,omitempty"`
	RetryBackoff   Duration       `yaml:"retry_backoff,omitempty"`
	ConnectRetries int            `yaml:"connect_retries,omitempty" default:"3"`
	Devices        []DeviceConfig `yaml:"devices,omitempty"`
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	cfg := &Config{
		ScanTimeout:    Duration(10 * time.Second),
		ConnectTimeout: Duration(30 * time.Second),
		WriteTimeout:   Duration(5 * time.Second),
		RetryBackoff:   Duration(2 * time.Second),
	}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML configuration file. An empty path returns the defaults;
// a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	// Zero or negative values in the file fall back to the defaults.
	def := Default()
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = def.ScanTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.ConnectRetries <= 0 {
		cfg.ConnectRetries = def.ConnectRetries
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	for i := range cfg.Devices {
		if cfg.Devices[i].Variant == "" {
			cfg.Devices[i].Variant = "modern"
		}
	}
	return cfg, nil
}

// Device looks up a configured device by address or by name.
func (c *Config) Device(key string) (DeviceConfig, bool) {
	for _, dev := range c.Devices {
		if dev.Address == key || (dev.Name != "" && dev.Name == key) {
			return dev, true
		}
	}
	return DeviceConfig{}, false
}

// NewLogger builds a logger honoring the configured level.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
