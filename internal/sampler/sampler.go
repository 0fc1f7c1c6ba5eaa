// Package sampler periodically snapshots the memory of a process tree.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmitro/peak-mem/internal/procmem"
	"github.com/charmitro/peak-mem/pkg/model"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// ErrInvalidInterval is returned by Start when the interval is not positive.
var ErrInvalidInterval = errors.New("sampling interval must be greater than zero")

// Config holds sampler configuration.
type Config struct {
	Interval      time.Duration
	TrackChildren bool
	// Verbose promotes per-process read failures from debug to warn.
	Verbose bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, TrackChildren: true}
}

// MemoryReader reads a single process. procmem.Source satisfies it.
type MemoryReader interface {
	Read(pid model.ProcessID) (model.ProcessMemorySample, error)
}

// Discoverer enumerates descendants of a process. proctree.Discovery
// satisfies it.
type Discoverer interface {
	ChildrenOf(root model.ProcessID, recursive bool) (map[model.ProcessID]struct{}, error)
}

// Sink receives snapshots in tick order.
type Sink interface {
	Fold(snap model.Snapshot)
}

// Sampler drives the discover-read-aggregate cycle on a fixed interval.
// It moves Idle → Running → Stopped and never leaves Stopped.
type Sampler struct {
	reader MemoryReader
	tree   Discoverer
	sink   Sink
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	state   model.SamplerState
	started bool

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	ticks      atomic.Int64
	readErrors atomic.Int64

	// warned is only touched by the goroutine running Tick.
	warned map[model.ProcessID]bool
}

// New creates an idle sampler.
func New(reader MemoryReader, tree Discoverer, sink Sink, cfg Config, logger *slog.Logger) *Sampler {
	return &Sampler{
		reader: reader,
		tree:   tree,
		sink:   sink,
		config: cfg,
		logger: logger.With("component", "sampler"),
		state:  model.SamplerStateIdle,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		warned: make(map[model.ProcessID]bool),
	}
}

// State returns the current lifecycle state.
func (s *Sampler) State() model.SamplerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ticks returns the number of snapshots emitted so far.
func (s *Sampler) Ticks() int {
	return int(s.ticks.Load())
}

// ReadErrors returns the number of unexpected per-process read failures.
// Processes that exited before they could be read are not counted.
func (s *Sampler) ReadErrors() int {
	return int(s.readErrors.Load())
}

// Start samples root immediately and then once per interval until Stop is
// called or ctx is cancelled. It returns without waiting for the first tick.
func (s *Sampler) Start(ctx context.Context, root model.ProcessID) error {
	if s.config.Interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	if err := s.transitionLocked(model.SamplerStateRunning); err != nil {
		s.mu.Unlock()
		return err
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Debug("sampler started", "pid", root, "interval", s.config.Interval, "track_children", s.config.TrackChildren)
	go s.loop(ctx, root)
	return nil
}

// Stop ends sampling and blocks until the sampler is Stopped. A tick that
// is in progress is folded before Stop returns. Stop is idempotent.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	if !started && !s.state.IsTerminal() {
		// Never started: Idle goes straight to Stopped.
		_ = s.transitionLocked(model.SamplerStateStopped)
	}
	s.mu.Unlock()

	if started {
		<-s.doneCh
	}
}

// Done is closed once the sampling loop has exited.
func (s *Sampler) Done() <-chan struct{} {
	return s.doneCh
}

func (s *Sampler) loop(ctx context.Context, root model.ProcessID) {
	defer close(s.doneCh)
	defer s.finish()

	s.Tick(root)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sampler stopping (context cancelled)", "ticks", s.Ticks())
			return
		case <-s.stopCh:
			s.logger.Debug("sampler stopping (stop called)", "ticks", s.Ticks())
			return
		case <-ticker.C:
			// A stop that raced with the ticker wins.
			select {
			case <-s.stopCh:
				s.logger.Debug("sampler stopping (stop called)", "ticks", s.Ticks())
				return
			default:
			}
			s.Tick(root)
		}
	}
}

// transitionLocked moves to next if the state table allows it. s.mu must
// be held.
func (s *Sampler) transitionLocked(next model.SamplerState) error {
	if !s.state.CanTransitionTo(next) {
		return &model.InvalidTransitionError{Entity: "sampler", From: s.state.String(), To: next.String()}
	}
	s.state = next
	return nil
}

func (s *Sampler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transitionLocked(model.SamplerStateStopped); err != nil {
		s.logger.Warn("sampler state", "error", err)
	}
}

// Tick runs a single discover-read-aggregate cycle and hands the snapshot
// to the sink. It must not be called concurrently with a running loop.
func (s *Sampler) Tick(root model.ProcessID) model.Snapshot {
	snap := model.Snapshot{Timestamp: time.Now()}

	children, err := s.tree.ChildrenOf(root, s.config.TrackChildren)
	if err != nil {
		s.logger.Debug("discovery failed, sampling root only", "pid", root, "error", err)
	}

	members := make([]model.ProcessID, 0, len(children)+1)
	members = append(members, root)
	for pid := range children {
		members = append(members, pid)
	}
	slices.Sort(members[1:])

	snap.Samples = make([]model.ProcessMemorySample, 0, len(members))
	for _, pid := range members {
		sample, err := s.reader.Read(pid)
		if err != nil {
			if !procmem.IsNotFound(err) {
				s.readErrors.Add(1)
				s.reportReadError(pid, err)
			}
			continue
		}
		snap.Samples = append(snap.Samples, sample)
	}

	s.ticks.Add(1)
	s.sink.Fold(snap)
	return snap
}

// reportReadError logs the first failure for a pid; repeats go to debug.
func (s *Sampler) reportReadError(pid model.ProcessID, err error) {
	if s.config.Verbose && !s.warned[pid] {
		s.warned[pid] = true
		s.logger.Warn("memory read failed", "pid", pid, "error", err)
		return
	}
	s.logger.Debug("memory read failed", "pid", pid, "error", err)
}
