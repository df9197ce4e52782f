package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "")
	t.Setenv("SIGIL_GUARD_LISTEN", "")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Listen != ":8001" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.CanvasSize != 1024 {
		t.Errorf("CanvasSize = %d", cfg.CanvasSize)
	}
	if cfg.MaxVariations != 8 || cfg.MinPassing != 2 || cfg.Workers != 4 {
		t.Errorf("limits = %d/%d/%d", cfg.MaxVariations, cfg.MinPassing, cfg.Workers)
	}
	if cfg.MaxBodyBytes() != 32<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.MaxBodyBytes())
	}
	if cfg.GenerationTimeout() != 300*time.Second {
		t.Errorf("GenerationTimeout = %v", cfg.GenerationTimeout())
	}
}

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "tok-env")
	t.Setenv("SIGIL_GUARD_LISTEN", ":9999")

	cfg := DefaultConfig()
	if cfg.ReplicateToken != "tok-env" {
		t.Errorf("ReplicateToken = %q", cfg.ReplicateToken)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SIGIL_GUARD_LISTEN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen: \":7777\"\ncanvas_size: 256\ndebug: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":7777" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.CanvasSize != 256 {
		t.Errorf("CanvasSize = %d", cfg.CanvasSize)
	}
	if !cfg.Debug {
		t.Error("Debug not set")
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want default kept", cfg.Workers)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("{{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("canvas_size: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"tiny canvas", func(c *Config) { c.CanvasSize = 32 }, "canvas_size"},
		{"zero variations", func(c *Config) { c.MaxVariations = 0 }, "max_variations"},
		{"too many variations", func(c *Config) { c.MaxVariations = 17 }, "max_variations"},
		{"negative min passing", func(c *Config) { c.MinPassing = -1 }, "min_passing"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"zero timeout", func(c *Config) { c.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"zero body limit", func(c *Config) { c.MaxBodyMB = 0 }, "max_body_mb"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want mention of %s", tt.name, err, tt.want)
		}
	}
}
