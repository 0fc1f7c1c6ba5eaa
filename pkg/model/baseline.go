package model

import "time"

// BaselineMetadata records where a baseline was captured.
type BaselineMetadata struct {
	Platform string    `json:"platform"`
	Arch     string    `json:"arch"`
	MainPID  ProcessID `json:"main_pid"`
}

// Baseline is a named, previously recorded run used for regression comparison.
type Baseline struct {
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	Command      []string         `json:"command"`
	PeakRSSBytes uint64           `json:"peak_rss_bytes"`
	PeakVSZBytes uint64           `json:"peak_vsz_bytes"`
	DurationMS   int64            `json:"duration_ms"`
	CreatedAt    time.Time        `json:"created_at"`
	Metadata     BaselineMetadata `json:"metadata"`
}

// RegressionVerdict compares a run against a baseline. Percent fields are
// (current-baseline)/baseline*100; a zero baseline with a non-zero current
// value is reported as 100 with the matching Unbounded flag set.
type RegressionVerdict struct {
	Baseline string `json:"baseline"`

	DiffRSSBytes   int64 `json:"diff_rss_bytes"`
	DiffVSZBytes   int64 `json:"diff_vsz_bytes"`
	DiffDurationMS int64 `json:"diff_duration_ms"`

	PercentChangeRSS      float64 `json:"percent_change_rss"`
	PercentChangeVSZ      float64 `json:"percent_change_vsz"`
	PercentChangeDuration float64 `json:"percent_change_duration"`

	RSSUnbounded      bool `json:"rss_unbounded,omitempty"`
	VSZUnbounded      bool `json:"vsz_unbounded,omitempty"`
	DurationUnbounded bool `json:"duration_unbounded,omitempty"`

	Threshold    float64 `json:"threshold"`
	IsRegression bool    `json:"regression_detected"`
}
