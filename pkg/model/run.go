package model

import (
	"fmt"
	"time"
)

// ExitStatus describes how the monitored child terminated.
type ExitStatus struct {
	Code     int  `json:"code"`
	Signal   int  `json:"signal,omitempty"`
	Signaled bool `json:"signaled,omitempty"`
}

// ShellCode maps the status to a shell-style exit code: the child's own
// code, or 128+signal if it was killed by a signal.
func (e ExitStatus) ShellCode() int {
	if e.Signaled {
		return 128 + e.Signal
	}
	return e.Code
}

// String returns a short description such as "exit 0" or "signal 9".
func (e ExitStatus) String() string {
	if e.Signaled {
		return fmt.Sprintf("signal %d", e.Signal)
	}
	return fmt.Sprintf("exit %d", e.Code)
}

// TimelinePoint is the aggregate of one tick. Processes is only populated
// when per-process detail was requested.
type TimelinePoint struct {
	Timestamp time.Time             `json:"timestamp" yaml:"timestamp"`
	RSSBytes  uint64                `json:"rss_bytes" yaml:"rss_bytes"`
	VSZBytes  uint64                `json:"vsz_bytes" yaml:"vsz_bytes"`
	Processes []ProcessMemorySample `json:"processes,omitempty" yaml:"processes,omitempty"`
}

// RunSummary is the result of monitoring one command invocation.
type RunSummary struct {
	ID                string                `json:"id"`
	Command           []string              `json:"command"`
	MainPID           ProcessID             `json:"main_pid"`
	PeakRSSBytes      uint64                `json:"peak_rss_bytes"`
	PeakVSZBytes      uint64                `json:"peak_vsz_bytes"`
	StartTime         time.Time             `json:"start_time"`
	Duration          time.Duration         `json:"-"`
	Exit              ExitStatus            `json:"exit"`
	ThresholdExceeded *bool                 `json:"threshold_exceeded,omitempty"`
	TrackedChildren   bool                  `json:"tracked_children"`
	SampleCount       int                   `json:"sample_count"`
	ReadErrors        int                   `json:"read_errors"`
	PeakProcesses     []ProcessMemorySample `json:"peak_processes,omitempty"`
	Timeline          []TimelinePoint       `json:"timeline,omitempty"`
}

// DurationMS returns the run duration in whole milliseconds.
func (r *RunSummary) DurationMS() int64 {
	return r.Duration.Milliseconds()
}
