// Package config holds peak-mem settings that can come from a YAML file
// and be overridden by command-line flags.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cloudeng.io/errors"
	"gopkg.in/yaml.v3"

	"github.com/charmitro/peak-mem/internal/logging"
	"github.com/charmitro/peak-mem/internal/report"
	"github.com/charmitro/peak-mem/internal/sampler"
	"github.com/charmitro/peak-mem/internal/store"
	"github.com/charmitro/peak-mem/internal/verdict"
)

// BaselineConfig controls baseline storage and regression comparison.
type BaselineConfig struct {
	Dir                 string  `yaml:"dir"`     // Baseline directory (default ~/.cache/peak-mem/baselines)
	Backend             string  `yaml:"backend"` // file, sqlite or bolt
	Save                string  `yaml:"save"`
	Compare             string  `yaml:"compare"`
	Overwrite           bool    `yaml:"overwrite"`
	RegressionThreshold float64 `yaml:"regression_threshold"` // Percent RSS increase that counts as a regression
}

// Config holds configuration for a monitored run.
type Config struct {
	Interval      time.Duration  `yaml:"interval"`  // Sampling interval (default 100ms)
	Threshold     string         `yaml:"threshold"` // Peak RSS limit such as "512M"; empty disables the check
	TrackChildren bool           `yaml:"track_children"`
	Timeline      string         `yaml:"timeline"` // Timeline output path; format follows the extension
	Format        string         `yaml:"format"`   // human, json, csv, quiet
	Verbose       bool           `yaml:"verbose"`
	Units         string         `yaml:"units"`
	Watch         bool           `yaml:"watch"`
	Baseline      BaselineConfig `yaml:"baseline"`
	StatusAddr    string         `yaml:"status_addr"` // Listen address for the live status endpoint; empty disables it
	LogLevel      string         `yaml:"log_level"`   // debug, info, warn, error
	LogFormat     string         `yaml:"log_format"`  // text, json
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	smp := sampler.DefaultConfig()
	return Config{
		Interval:      smp.Interval,
		TrackChildren: smp.TrackChildren,
		Format:        string(report.FormatHuman),
		Baseline: BaselineConfig{
			Dir:                 store.DefaultDir(),
			Backend:             store.BackendFile,
			RegressionThreshold: verdict.DefaultRegressionThreshold,
		},
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "peak-mem", "config.yaml")
}

// Load reads path on top of DefaultConfig. An empty path reads DefaultPath
// if that file exists and otherwise returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs errors.M
	if c.Interval <= 0 {
		errs.Append(fmt.Errorf("interval must be greater than 0, got %v", c.Interval))
	}
	if _, err := c.ThresholdBytes(); err != nil {
		errs.Append(err)
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		errs.Append(err)
	}
	if _, err := report.ParseUnit(c.Units); err != nil {
		errs.Append(err)
	}
	if !slices.Contains(store.Backends, c.Baseline.Backend) {
		errs.Append(fmt.Errorf("unknown baseline backend %q (want file, sqlite or bolt)", c.Baseline.Backend))
	}
	if c.Baseline.RegressionThreshold < 0 {
		errs.Append(fmt.Errorf("regression threshold must not be negative, got %v", c.Baseline.RegressionThreshold))
	}
	if c.Baseline.Save != "" && c.Baseline.Compare != "" {
		errs.Append(fmt.Errorf("cannot save and compare a baseline in the same run"))
	}
	if c.Baseline.Overwrite && c.Baseline.Save == "" {
		errs.Append(fmt.Errorf("overwrite requires a baseline name to save"))
	}
	if _, err := logging.ValidateLevel(c.LogLevel); err != nil {
		errs.Append(err)
	}
	errs.Append(logging.ValidateFormat(c.LogFormat))
	return errs.Err()
}

// ThresholdBytes parses Threshold. It returns nil when no threshold is set.
func (c *Config) ThresholdBytes() (*uint64, error) {
	if c.Threshold == "" {
		return nil, nil
	}
	n, err := report.ParseSize(c.Threshold)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
