package service

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Listen         string `yaml:"listen"`
	ReplicateToken string `yaml:"replicate_token"`
	// StylesFile optionally points at a yaml file of style overrides.
	StylesFile     string `yaml:"styles_file"`
	CanvasSize     int    `yaml:"canvas_size"`
	MaxVariations  int    `yaml:"max_variations"`
	MinPassing     int    `yaml:"min_passing"`
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxBodyMB      int    `yaml:"max_body_mb"`
	Debug          bool   `yaml:"debug"`
}

// DefaultConfig returns sane defaults. The Replicate token and listen
// address pick up REPLICATE_API_TOKEN and SIGIL_GUARD_LISTEN when set.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:         ":8001",
		ReplicateToken: os.Getenv("REPLICATE_API_TOKEN"),
		CanvasSize:     1024,
		MaxVariations:  8,
		MinPassing:     2,
		Workers:        4,
		TimeoutSeconds: 300,
		MaxBodyMB:      32,
	}
	if addr := os.Getenv("SIGIL_GUARD_LISTEN"); addr != "" {
		cfg.Listen = addr
	}
	return cfg
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig
// merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.CanvasSize < 64 {
		return fmt.Errorf("canvas_size must be >= 64")
	}
	if c.MaxVariations <= 0 || c.MaxVariations > 16 {
		return fmt.Errorf("max_variations must be in 1..16")
	}
	if c.MinPassing < 0 {
		return fmt.Errorf("min_passing must be >= 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0")
	}
	if c.MaxBodyMB <= 0 {
		return fmt.Errorf("max_body_mb must be > 0")
	}
	return nil
}

// GenerationTimeout returns the per-request generation budget.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaxBodyBytes returns max request body size in bytes.
func (c *Config) MaxBodyBytes() int64 { return int64(c.MaxBodyMB) * 1024 * 1024 }
