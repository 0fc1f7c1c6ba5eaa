package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Interval != 100*time.Millisecond {
		t.Errorf("Interval = %v, want 100ms", cfg.Interval)
	}
	if !cfg.TrackChildren {
		t.Error("TrackChildren should default to true")
	}
	if cfg.Baseline.RegressionThreshold != 10 {
		t.Errorf("RegressionThreshold = %v, want 10", cfg.Baseline.RegressionThreshold)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `interval: 250ms
threshold: 1G
track_children: false
format: json
units: MiB
baseline:
  backend: sqlite
  regression_threshold: 5.5
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Interval)
	}
	if cfg.TrackChildren {
		t.Error("TrackChildren = true, want false")
	}
	if cfg.Format != "json" || cfg.Units != "MiB" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Baseline.Backend != "sqlite" || cfg.Baseline.RegressionThreshold != 5.5 {
		t.Errorf("unexpected baseline config: %+v", cfg.Baseline)
	}
	// Unset keys keep their defaults.
	if cfg.Baseline.Dir != DefaultConfig().Baseline.Dir {
		t.Errorf("Baseline.Dir = %q, want default", cfg.Baseline.Dir)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	n, err := cfg.ThresholdBytes()
	if err != nil || n == nil || *n != 1_000_000_000 {
		t.Errorf("ThresholdBytes = %v, %v", n, err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("intervall: 1s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("empty file changed defaults: %+v", cfg)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 0
	cfg.Threshold = "huge"
	cfg.Format = "xml"
	cfg.Units = "mb"
	cfg.Baseline.Backend = "redis"
	cfg.Baseline.RegressionThreshold = -1
	cfg.LogLevel = "trace"
	cfg.LogFormat = "yaml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"interval must be greater than 0",
		`invalid size "huge"`,
		`unknown output format "xml"`,
		`invalid unit "mb"`,
		`unknown baseline backend "redis"`,
		"regression threshold must not be negative",
		`unknown log level "trace"`,
		`unknown log format "yaml"`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateBaselineConflicts(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"save and compare", func(c *Config) { c.Baseline.Save = "a"; c.Baseline.Compare = "b" }, "cannot save and compare"},
		{"overwrite without save", func(c *Config) { c.Baseline.Overwrite = true }, "overwrite requires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestThresholdBytesUnset(t *testing.T) {
	cfg := DefaultConfig()
	n, err := cfg.ThresholdBytes()
	if err != nil || n != nil {
		t.Errorf("ThresholdBytes() = %v, %v; want nil, nil", n, err)
	}
}
