package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type MetricsCfg struct {
	Port int `yaml:"port" json:"port"` // 0 disables the listener
}

type LoggingCfg struct {
	File        string `yaml:"file" json:"file"`                   // Optional log file, appended alongside stdout
	RotateMaxMB int    `yaml:"rotate_max_mb" json:"rotate_max_mb"` // Rotate the log file once it exceeds this size
}

type ResourceLimits struct {
	MaxCPUPercent float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"` // 0 disables throttling
}

type Config struct {
	Workers        int            `yaml:"workers" json:"workers"`                 // Fingerprint pool size; 0 = auto (NumCPU-based)
	Exclude        []string       `yaml:"exclude" json:"exclude"`                 // Glob patterns matched against relative paths
	DatabasePath   string         `yaml:"database_path" json:"database_path"`     // SQLite deletion history; empty disables
	KeepEmptyDirs  bool           `yaml:"keep_empty_dirs" json:"keep_empty_dirs"` // Skip the prune pass after commit runs
	ResourceLimits ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
	Metrics        MetricsCfg     `yaml:"metrics" json:"metrics"`
	Logging        LoggingCfg     `yaml:"logging" json:"logging"`
}

var (
	errNegativeWorkers = errors.New("workers cannot be negative")
	errInvalidPort     = errors.New("metrics port out of range")
	errInvalidPattern  = errors.New("invalid exclude pattern")
	errInvalidCPULimit = errors.New("max_cpu_percent cannot be negative")
)

// Default returns the configuration used when no config file is given:
// auto-sized workers, no excludes, history and metrics disabled, pruning
// enabled.
func Default() *Config {
	cfg := &Config{}
	// Zero values validate cleanly
	if err := cfg.validateAndDefault(); err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if c.Workers < 0 {
		return errNegativeWorkers
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.Metrics.Port)
	}

	if c.ResourceLimits.MaxCPUPercent < 0 {
		return errInvalidCPULimit
	}

	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", errInvalidPattern, pattern)
		}
	}

	// Set defaults for logging
	if c.Logging.RotateMaxMB <= 0 {
		c.Logging.RotateMaxMB = 100
	}

	return nil
}

func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Port > 0
}

func (c *Config) MetricsAddress() string {
	return fmt.Sprintf(":%d", c.Metrics.Port)
}

func (c *Config) HistoryEnabled() bool {
	return c.DatabasePath != ""
}
