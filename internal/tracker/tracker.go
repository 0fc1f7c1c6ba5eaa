// Package tracker folds sampler snapshots into running peak totals and an
// optional timeline.
package tracker

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/charmitro/peak-mem/pkg/model"
)

// ErrFinalized is returned by Finalize when the summary was already produced.
var ErrFinalized = errors.New("tracker already finalized")

// Options control what the tracker retains beyond the running peaks.
type Options struct {
	RecordTimeline bool
	// Verbose keeps per-process samples for the peak tick and timeline.
	Verbose bool
}

// Aggregate is a consistent copy of the tracker's running state.
type Aggregate struct {
	CurrentRSSBytes uint64    `json:"current_rss_bytes"`
	CurrentVSZBytes uint64    `json:"current_vsz_bytes"`
	PeakRSSBytes    uint64    `json:"peak_rss_bytes"`
	PeakVSZBytes    uint64    `json:"peak_vsz_bytes"`
	Processes       int       `json:"processes"`
	SampleCount     int       `json:"sample_count"`
	LastSample      time.Time `json:"last_sample"`
	Finalized       bool      `json:"finalized"`
}

// Tracker is safe for one writer calling Fold and any number of readers.
type Tracker struct {
	opts Options

	mu            sync.RWMutex
	agg           Aggregate
	peakProcesses []model.ProcessMemorySample
	timeline      []model.TimelinePoint
}

// New creates an empty tracker.
func New(opts Options) *Tracker {
	return &Tracker{opts: opts}
}

// Fold adds one tick. The tick's RSS and VSZ sums are maximized
// independently; an empty snapshot counts as a zero sum. Folds after
// Finalize are ignored.
func (t *Tracker) Fold(snap model.Snapshot) {
	rss, vsz := snap.Totals()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.agg.Finalized {
		return
	}

	t.agg.SampleCount++
	t.agg.CurrentRSSBytes = rss
	t.agg.CurrentVSZBytes = vsz
	t.agg.Processes = len(snap.Samples)
	t.agg.LastSample = snap.Timestamp

	if rss > t.agg.PeakRSSBytes {
		t.agg.PeakRSSBytes = rss
		if t.opts.Verbose {
			t.peakProcesses = slices.Clone(snap.Samples)
		}
	}
	if vsz > t.agg.PeakVSZBytes {
		t.agg.PeakVSZBytes = vsz
	}

	if t.opts.RecordTimeline {
		point := model.TimelinePoint{Timestamp: snap.Timestamp, RSSBytes: rss, VSZBytes: vsz}
		if t.opts.Verbose {
			point.Processes = slices.Clone(snap.Samples)
		}
		t.timeline = append(t.timeline, point)
	}
}

// Current returns the latest aggregate. Readers never observe a partially
// applied fold.
func (t *Tracker) Current() Aggregate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.agg
}

// Timeline returns a copy of the points recorded so far.
func (t *Tracker) Timeline() []model.TimelinePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.timeline)
}

// Finalize copies the peaks, sample count, peak breakdown and timeline into
// summary and freezes the tracker. It succeeds once. Current and Timeline
// keep returning the final state afterwards.
func (t *Tracker) Finalize(summary model.RunSummary) (model.RunSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.agg.Finalized {
		return summary, ErrFinalized
	}
	t.agg.Finalized = true

	summary.PeakRSSBytes = t.agg.PeakRSSBytes
	summary.PeakVSZBytes = t.agg.PeakVSZBytes
	summary.SampleCount = t.agg.SampleCount
	summary.PeakProcesses = slices.Clone(t.peakProcesses)
	summary.Timeline = slices.Clone(t.timeline)
	return summary, nil
}
