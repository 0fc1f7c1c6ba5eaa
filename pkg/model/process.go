package model

import (
	"strconv"
	"time"
)

// ProcessID is a platform process identifier. It is used as a lookup key only.
type ProcessID int

// String returns the decimal form of the pid.
func (p ProcessID) String() string {
	return strconv.Itoa(int(p))
}

// ProcessMemorySample is the memory usage of a single process at one tick.
type ProcessMemorySample struct {
	PID      ProcessID `json:"pid" yaml:"pid"`
	RSSBytes uint64    `json:"rss_bytes" yaml:"rss_bytes"`
	VSZBytes uint64    `json:"vsz_bytes" yaml:"vsz_bytes"`
}

// Snapshot holds the samples of every tree member alive at one tick.
// A Snapshot is never mutated after the sampler emits it.
type Snapshot struct {
	Timestamp time.Time
	Samples   []ProcessMemorySample
}

// Totals returns the tree-wide sums of resident and virtual bytes.
// An empty snapshot totals zero.
func (s Snapshot) Totals() (rss, vsz uint64) {
	for _, smp := range s.Samples {
		rss += smp.RSSBytes
		vsz += smp.VSZBytes
	}
	return rss, vsz
}
