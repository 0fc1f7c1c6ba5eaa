package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/charmitro/peak-mem/internal/config"
	"github.com/charmitro/peak-mem/internal/procmem"
	"github.com/charmitro/peak-mem/internal/report"
	"github.com/charmitro/peak-mem/internal/runner"
	"github.com/charmitro/peak-mem/internal/statusserver"
	"github.com/charmitro/peak-mem/internal/store"
	"github.com/charmitro/peak-mem/internal/timeline"
	"github.com/charmitro/peak-mem/internal/tracker"
	"github.com/charmitro/peak-mem/internal/watch"
	"github.com/charmitro/peak-mem/pkg/model"
)

var (
	flagJSON       bool
	flagCSV        bool
	flagQuiet      bool
	flagVerbose    bool
	flagWatch      bool
	flagThreshold  string
	flagNoChildren bool
	flagTimeline   string
	flagIntervalMS int
	flagUnits      string

	flagSaveBaseline        string
	flagCompareBaseline     string
	flagOverwriteBaseline   bool
	flagRegressionThreshold float64
	flagListBaselines       bool
	flagDeleteBaseline      string

	flagStatusAddr string
)

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVarP(&flagJSON, "json", "j", false, "Output in JSON format")
	f.BoolVarP(&flagCSV, "csv", "c", false, "Output in CSV format")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "Only print the peak RSS in bytes")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "Show the per-process breakdown at peak")
	f.BoolVarP(&flagWatch, "watch", "w", false, "Show memory usage in real time")
	f.StringVarP(&flagThreshold, "threshold", "t", "", "Exit with code 1 if peak RSS exceeds this size (e.g. 512M, 1G)")
	f.BoolVar(&flagNoChildren, "no-children", false, "Only monitor the main process")
	f.StringVar(&flagTimeline, "timeline", "", "Write the memory timeline to FILE (.json, .csv, .yaml)")
	f.IntVar(&flagIntervalMS, "interval", 100, "Sampling interval in milliseconds")
	f.StringVar(&flagUnits, "units", "", "Force memory units (B, KB, MB, GB, KiB, MiB, GiB)")

	f.StringVar(&flagSaveBaseline, "save-baseline", "", "Save the run as baseline NAME")
	f.StringVar(&flagCompareBaseline, "compare-baseline", "", "Compare the run against baseline NAME")
	f.BoolVar(&flagOverwriteBaseline, "overwrite-baseline", false, "Replace an existing baseline when saving")
	f.Float64Var(&flagRegressionThreshold, "regression-threshold", 10.0, "Percent RSS increase that counts as a regression")
	f.BoolVar(&flagListBaselines, "list-baselines", false, "List saved baselines and exit")
	f.StringVar(&flagDeleteBaseline, "delete-baseline", "", "Delete baseline NAME and exit")

	f.StringVar(&flagStatusAddr, "status-addr", "", "Serve live status over HTTP on ADDR while the command runs")

	cmd.MarkFlagsMutuallyExclusive("json", "csv", "quiet")
	cmd.MarkFlagsMutuallyExclusive("save-baseline", "compare-baseline")
}

// applyRunFlags overrides c with every run flag that was set explicitly.
func applyRunFlags(f *pflag.FlagSet, c *config.Config) {
	switch {
	case flagJSON:
		c.Format = string(report.FormatJSON)
	case flagCSV:
		c.Format = string(report.FormatCSV)
	case flagQuiet:
		c.Format = string(report.FormatQuiet)
	}
	if f.Changed("verbose") {
		c.Verbose = flagVerbose
	}
	if f.Changed("watch") {
		c.Watch = flagWatch
	}
	if f.Changed("threshold") {
		c.Threshold = flagThreshold
	}
	if flagNoChildren {
		c.TrackChildren = false
	}
	if f.Changed("timeline") {
		c.Timeline = flagTimeline
	}
	if f.Changed("interval") {
		c.Interval = time.Duration(flagIntervalMS) * time.Millisecond
	}
	if f.Changed("units") {
		c.Units = flagUnits
	}
	if f.Changed("save-baseline") {
		c.Baseline.Save = flagSaveBaseline
	}
	if f.Changed("compare-baseline") {
		c.Baseline.Compare = flagCompareBaseline
	}
	if f.Changed("overwrite-baseline") {
		c.Baseline.Overwrite = flagOverwriteBaseline
	}
	if f.Changed("regression-threshold") {
		c.Baseline.RegressionThreshold = flagRegressionThreshold
	}
	if f.Changed("status-addr") {
		c.StatusAddr = flagStatusAddr
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	c := cfg
	applyRunFlags(cmd.Flags(), &c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, _ := report.ParseFormat(c.Format)
	unit, _ := report.ParseUnit(c.Units)
	renderer := report.New(report.Options{
		Format:   format,
		Verbose:  c.Verbose,
		Unit:     unit,
		Color:    format == report.FormatHuman && isTerminal(out),
		Interval: c.Interval,
	})

	if flagListBaselines {
		return listBaselines(ctx, c, renderer, out)
	}
	if flagDeleteBaseline != "" {
		return deleteBaseline(ctx, c, flagDeleteBaseline, out)
	}
	if len(args) == 0 {
		return errors.New("no command specified (usage: peak-mem [flags] <command> [args...])")
	}

	threshold, _ := c.ThresholdBytes()

	var (
		st   store.Store
		base *model.Baseline
		err  error
	)
	if c.Baseline.Save != "" || c.Baseline.Compare != "" {
		st, err = store.Open(ctx, c.Baseline.Backend, c.Baseline.Dir, logger)
		if err != nil {
			return fmt.Errorf("open baseline store: %w", err)
		}
		defer st.Close()
	}
	if c.Baseline.Compare != "" {
		base, err = st.GetBaseline(ctx, c.Baseline.Compare)
		if err != nil {
			return fmt.Errorf("load baseline %q: %w", c.Baseline.Compare, err)
		}
	}
	if c.Baseline.Save != "" && !c.Baseline.Overwrite {
		if _, err := st.GetBaseline(ctx, c.Baseline.Save); err == nil {
			return fmt.Errorf("baseline %q: %w (use --overwrite-baseline to replace it)", c.Baseline.Save, store.ErrExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check baseline %q: %w", c.Baseline.Save, err)
		}
	}

	var status *statusserver.Server
	if c.StatusAddr != "" {
		status = statusserver.New(args, logger, statusserver.WithVersion(Version))
		addr, err := status.Listen(c.StatusAddr)
		if err != nil {
			return fmt.Errorf("start status server: %w", err)
		}
		logger.Info("serving status", "addr", addr.String())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := status.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", "error", err)
			}
		}()
	}

	stderr := cmd.ErrOrStderr()
	useWatch := c.Watch
	if useWatch && !isTerminal(stderr) {
		logger.Warn("watch mode needs a terminal on stderr, disabling it")
		useWatch = false
	}

	var display *watch.Display
	opts := runner.Options{
		Command:             args,
		Interval:            c.Interval,
		TrackChildren:       c.TrackChildren,
		Verbose:             c.Verbose,
		RecordTimeline:      c.Timeline != "" || status != nil,
		ThresholdBytes:      threshold,
		Baseline:            base,
		RegressionThreshold: c.Baseline.RegressionThreshold,
		Stdin:               cmd.InOrStdin(),
		Stdout:              out,
		Stderr:              stderr,
		Observe: func(pid model.ProcessID, tr *tracker.Tracker) {
			if status != nil {
				status.Attach(pid, tr)
			}
			if useWatch {
				m := watch.NewModel(tr, args, pid, c.Interval)
				m.Unit = unit
				m.Threshold = threshold
				display = watch.Start(m, stderr)
			}
		},
	}

	res, err := runner.New(procmem.New(), logger).Run(ctx, opts)
	if display != nil {
		if err := display.Stop(); err != nil {
			logger.Warn("watch display", "error", err)
		}
	}
	if err != nil {
		return err
	}
	summary := &res.Summary

	if res.Regression != nil {
		err = renderer.Comparison(out, summary, base, res.Regression)
	} else {
		err = renderer.Summary(out, summary)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if c.Timeline != "" {
		if err := timeline.WriteFile(c.Timeline, summary.Timeline); err != nil {
			return fmt.Errorf("write timeline: %w", err)
		}
		logger.Info("timeline written", "path", c.Timeline, "points", len(summary.Timeline))
	}

	if c.Baseline.Save != "" {
		b := newBaseline(c.Baseline.Save, summary)
		if err := st.SaveBaseline(ctx, b, c.Baseline.Overwrite); err != nil {
			return fmt.Errorf("save baseline %q: %w", b.Name, err)
		}
		if format != report.FormatQuiet {
			fmt.Fprintf(stderr, "Baseline saved as %q\n", b.Name)
		}
	}

	if res.ExitCode != 0 {
		return &ExitCodeError{Code: res.ExitCode}
	}
	return nil
}

func newBaseline(name string, s *model.RunSummary) *model.Baseline {
	return &model.Baseline{
		Name:         name,
		Version:      Version,
		Command:      s.Command,
		PeakRSSBytes: s.PeakRSSBytes,
		PeakVSZBytes: s.PeakVSZBytes,
		DurationMS:   s.DurationMS(),
		CreatedAt:    time.Now().UTC(),
		Metadata: model.BaselineMetadata{
			Platform: runtime.GOOS,
			Arch:     runtime.GOARCH,
			MainPID:  s.MainPID,
		},
	}
}

// isTerminal reports whether w is a terminal device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
