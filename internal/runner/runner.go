// Package runner spawns a command and monitors its process tree until it
// exits.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"github.com/charmitro/peak-mem/internal/procmem"
	"github.com/charmitro/peak-mem/internal/proctree"
	"github.com/charmitro/peak-mem/internal/sampler"
	"github.com/charmitro/peak-mem/internal/tracker"
	"github.com/charmitro/peak-mem/internal/verdict"
	"github.com/charmitro/peak-mem/pkg/model"
)

// Options describe a single monitored invocation. They are expected to be
// validated by the caller.
type Options struct {
	Command        []string
	Interval       time.Duration
	TrackChildren  bool
	Verbose        bool
	RecordTimeline bool

	// ThresholdBytes enables the threshold check when non-nil.
	ThresholdBytes *uint64

	// Baseline enables regression comparison when non-nil.
	Baseline            *model.Baseline
	RegressionThreshold float64

	// Stdin, Stdout and Stderr default to the caller's own streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Observe is called once sampling has started, before the runner
	// blocks on the child. The tracker may be read concurrently.
	Observe func(pid model.ProcessID, tr *tracker.Tracker)
}

// Result is the outcome of a monitored run.
type Result struct {
	Summary    model.RunSummary
	Regression *model.RegressionVerdict
	// ExitCode is the code peak-mem itself should exit with.
	ExitCode int
}

// Runner drives the spawn, sample, wait and finalize lifecycle.
type Runner struct {
	source procmem.Source
	logger *slog.Logger
}

// New creates a Runner that samples memory through source.
func New(source procmem.Source, logger *slog.Logger) *Runner {
	return &Runner{
		source: source,
		logger: logger.With("component", "runner"),
	}
}

type exitEvent struct {
	err error
	at  time.Time
}

// Run spawns opts.Command, samples it until it exits, and returns the
// finalized summary. Signals delivered to this process while the child
// runs are forwarded to the child. Cancelling ctx kills the child.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Command) == 0 {
		return nil, ErrNoCommand
	}
	interval := opts.Interval
	if interval <= 0 {
		return nil, sampler.ErrInvalidInterval
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Env = os.Environ()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}

	tr := tracker.New(tracker.Options{RecordTimeline: opts.RecordTimeline, Verbose: opts.Verbose})
	smp := sampler.New(r.source, proctree.New(r.source), tr, sampler.Config{
		Interval:      interval,
		TrackChildren: opts.TrackChildren,
		Verbose:       opts.Verbose,
	}, r.logger)

	// Register before spawning so no signal slips through to the default
	// handler while the child starts.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, forwardedSignals...)
	defer signal.Stop(sigCh)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: opts.Command[0], Err: err}
	}
	pid := model.ProcessID(cmd.Process.Pid)
	r.logger.Debug("child started", "pid", pid, "command", opts.Command)

	done := make(chan exitEvent, 1)
	go func() {
		err := cmd.Wait()
		done <- exitEvent{err: err, at: time.Now()}
	}()

	// Sampling ends with the child, not with ctx.
	if err := smp.Start(context.WithoutCancel(ctx), pid); err != nil {
		_ = cmd.Process.Kill()
		<-done
		return nil, err
	}
	if opts.Observe != nil {
		opts.Observe(pid, tr)
	}

	ctxDone := ctx.Done()
	var exit exitEvent
wait:
	for {
		select {
		case exit = <-done:
			break wait
		case sig := <-sigCh:
			r.logger.Debug("forwarding signal", "pid", pid, "signal", sig)
			if err := forwardSignal(cmd.Process, sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				r.logger.Warn("signal forwarding failed", "pid", pid, "signal", sig, "error", err)
			}
		case <-ctxDone:
			r.logger.Debug("context cancelled, killing child", "pid", pid)
			_ = cmd.Process.Kill()
			ctxDone = nil
		}
	}

	// Stop returns only after the last tick has been folded.
	smp.Stop()

	status := exitStatusOf(cmd.ProcessState)
	var exitErr *exec.ExitError
	if exit.err != nil && !errors.As(exit.err, &exitErr) {
		r.logger.Warn("wait failed", "pid", pid, "error", exit.err)
	}

	summary, err := tr.Finalize(model.RunSummary{
		ID:              uuid.NewString(),
		Command:         opts.Command,
		MainPID:         pid,
		StartTime:       start,
		Duration:        exit.at.Sub(start),
		Exit:            status,
		TrackedChildren: opts.TrackChildren,
		ReadErrors:      smp.ReadErrors(),
	})
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if opts.ThresholdBytes != nil {
		exceeded := verdict.Exceeds(summary.PeakRSSBytes, *opts.ThresholdBytes)
		summary.ThresholdExceeded = &exceeded
	}
	if opts.Baseline != nil {
		v := verdict.Compare(summary, *opts.Baseline, opts.RegressionThreshold)
		res.Regression = &v
	}
	res.Summary = summary
	res.ExitCode = verdict.ExitCode(summary, res.Regression)

	r.logger.Debug("run finished",
		"pid", pid,
		"exit", status,
		"duration", summary.Duration,
		"peak_rss", summary.PeakRSSBytes,
		"peak_vsz", summary.PeakVSZBytes,
		"samples", summary.SampleCount,
		"read_errors", summary.ReadErrors,
	)
	return res, nil
}
