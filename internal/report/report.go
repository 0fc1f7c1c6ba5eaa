// Package report renders run summaries, baseline comparisons and baseline
// listings in the supported output formats.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatHuman Format = "human"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatQuiet Format = "quiet"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatHuman, FormatJSON, FormatCSV, FormatQuiet}

// ParseFormat validates a format name. The empty string means human.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatHuman, nil
	}
	f := Format(strings.ToLower(s))
	if slices.Contains(Formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want human, json, csv or quiet)", s)
}

// Options configure a Renderer.
type Options struct {
	Format  Format
	Verbose bool
	Unit    Unit
	// Color enables terminal styling of verdict lines in human output.
	Color bool
	// Interval is the configured sampling interval, shown in verbose output.
	Interval time.Duration
}

// Renderer writes reports.
type Renderer struct {
	opts    Options
	printer *message.Printer

	warn lipgloss.Style
	ok   lipgloss.Style
	bold lipgloss.Style
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatHuman
	}
	return &Renderer{
		opts:    opts,
		printer: message.NewPrinter(language.English),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		bold:    lipgloss.NewStyle().Bold(true),
	}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.opts.Color {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) bytes(b uint64) string {
	return FormatBytes(b, r.opts.Unit)
}

// summaryJSON adds derived fields to the serialized summary.
type summaryJSON struct {
	*model.RunSummary
	DurationMS int64     `json:"duration_ms"`
	ExitCode   int       `json:"exit_code"`
	Timestamp  time.Time `json:"timestamp"`
}

func newSummaryJSON(s *model.RunSummary) summaryJSON {
	return summaryJSON{
		RunSummary: s,
		DurationMS: s.DurationMS(),
		ExitCode:   s.Exit.ShellCode(),
		Timestamp:  s.StartTime.Add(s.Duration).UTC(),
	}
}

func thresholdExceeded(s *model.RunSummary) bool {
	return s.ThresholdExceeded != nil && *s.ThresholdExceeded
}

// Summary writes the report for a finished run.
func (r *Renderer) Summary(w io.Writer, s *model.RunSummary) error {
	switch r.opts.Format {
	case FormatJSON:
		return writeJSON(w, newSummaryJSON(s))
	case FormatCSV:
		return r.summaryCSV(w, s)
	case FormatQuiet:
		_, err := fmt.Fprintln(w, s.PeakRSSBytes)
		return err
	default:
		if r.opts.Verbose {
			return r.summaryVerbose(w, s)
		}
		return r.summaryHuman(w, s)
	}
}

func (r *Renderer) summaryHuman(w io.Writer, s *model.RunSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(s.Command, " "))
	fmt.Fprintf(&b, "Peak memory usage: %s (RSS) / %s (VSZ)\n", r.bytes(s.PeakRSSBytes), r.bytes(s.PeakVSZBytes))
	fmt.Fprintf(&b, "Exit code: %d\n", s.Exit.ShellCode())
	fmt.Fprintf(&b, "Duration: %s\n", formatDuration(s.Duration))
	if thresholdExceeded(s) {
		fmt.Fprintf(&b, "\n%s\n", r.style(r.warn, "THRESHOLD EXCEEDED"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) summaryVerbose(w io.Writer, s *model.RunSummary) error {
	p := r.printer
	var b strings.Builder

	fmt.Fprintf(&b, "Command: %s\n", strings.Join(s.Command, " "))
	fmt.Fprintf(&b, "Run ID: %s\n", s.ID)
	fmt.Fprintf(&b, "Started: %s UTC\n", s.StartTime.UTC().Format(time.DateTime))
	fmt.Fprintf(&b, "Process ID: %d\n\n", s.MainPID)

	fmt.Fprintln(&b, r.style(r.bold, "Memory Usage:"))
	b.WriteString(p.Sprintf("  Peak RSS: %s (%d bytes)\n", r.bytes(s.PeakRSSBytes), s.PeakRSSBytes))
	b.WriteString(p.Sprintf("  Peak VSZ: %s (%d bytes)\n\n", r.bytes(s.PeakVSZBytes), s.PeakVSZBytes))

	if !s.TrackedChildren {
		fmt.Fprintln(&b, "Processes at peak: (child tracking disabled with --no-children)")
	} else {
		fmt.Fprintf(&b, "Processes at peak: (%d processes monitored)\n", len(s.PeakProcesses))
	}
	procs := slices.Clone(s.PeakProcesses)
	slices.SortStableFunc(procs, func(a, b model.ProcessMemorySample) int {
		switch {
		case a.RSSBytes > b.RSSBytes:
			return -1
		case a.RSSBytes < b.RSSBytes:
			return 1
		}
		return int(a.PID) - int(b.PID)
	})
	if len(procs) > 0 {
		fmt.Fprintf(&b, "  %-10s  %14s  %14s\n", "PID", "RSS", "VSZ")
		for _, proc := range procs {
			marker := ""
			if proc.PID == s.MainPID {
				marker = " (main)"
			}
			fmt.Fprintf(&b, "  %-10d  %14s  %14s%s\n", proc.PID, r.bytes(proc.RSSBytes), r.bytes(proc.VSZBytes), marker)
		}
	}
	b.WriteString("\n")

	fmt.Fprintln(&b, r.style(r.bold, "Performance:"))
	fmt.Fprintf(&b, "  Duration: %.3fs\n", s.Duration.Seconds())
	b.WriteString(p.Sprintf("  Samples collected: %d\n", s.SampleCount))
	if r.opts.Interval > 0 {
		fmt.Fprintf(&b, "  Sampling interval: %dms\n", r.opts.Interval.Milliseconds())
	}
	if s.ReadErrors > 0 {
		b.WriteString(p.Sprintf("  Read errors: %d\n", s.ReadErrors))
	}
	b.WriteString("\n")

	status := "success"
	if s.Exit.Signaled {
		status = "killed by " + s.Exit.String()
	} else if s.Exit.Code != 0 {
		status = "failed"
	}
	fmt.Fprintf(&b, "Exit Status: %d (%s)\n", s.Exit.ShellCode(), status)

	if thresholdExceeded(s) {
		fmt.Fprintf(&b, "\n%s\n", r.style(r.warn, "THRESHOLD EXCEEDED"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) summaryCSV(w io.Writer, s *model.RunSummary) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"command", "peak_rss_bytes", "peak_vsz_bytes", "duration_ms", "exit_code", "threshold_exceeded", "timestamp"})
	cw.Write([]string{
		strings.Join(s.Command, " "),
		strconv.FormatUint(s.PeakRSSBytes, 10),
		strconv.FormatUint(s.PeakVSZBytes, 10),
		strconv.FormatInt(s.DurationMS(), 10),
		strconv.Itoa(s.Exit.ShellCode()),
		strconv.FormatBool(thresholdExceeded(s)),
		s.StartTime.Add(s.Duration).UTC().Format(time.RFC3339),
	})
	cw.Flush()
	return cw.Error()
}

type comparisonJSON struct {
	Baseline   *model.Baseline          `json:"baseline"`
	Current    summaryJSON              `json:"current"`
	Comparison *model.RegressionVerdict `json:"comparison"`
}

// Comparison writes the report for a run compared against a baseline.
func (r *Renderer) Comparison(w io.Writer, s *model.RunSummary, base *model.Baseline, v *model.RegressionVerdict) error {
	switch r.opts.Format {
	case FormatJSON:
		return writeJSON(w, comparisonJSON{Baseline: base, Current: newSummaryJSON(s), Comparison: v})
	case FormatCSV:
		return r.comparisonCSV(w, s, base, v)
	case FormatQuiet:
		word := "ok"
		if v.IsRegression {
			word = "regression"
		}
		_, err := fmt.Fprintln(w, word)
		return err
	default:
		return r.comparisonHuman(w, s, base, v)
	}
}

func percent(pct float64, unbounded bool) string {
	if unbounded {
		return "new"
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

func (r *Renderer) comparisonHuman(w io.Writer, s *model.RunSummary, base *model.Baseline, v *model.RegressionVerdict) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(s.Command, " "))
	fmt.Fprintf(&b, "Baseline: %s (recorded %s)\n\n", base.Name, base.CreatedAt.UTC().Format(time.DateTime))

	fmt.Fprintln(&b, "Baseline vs Current:")
	fmt.Fprintf(&b, "  Peak RSS: %s → %s (%s)\n", r.bytes(base.PeakRSSBytes), r.bytes(s.PeakRSSBytes), percent(v.PercentChangeRSS, v.RSSUnbounded))
	switch {
	case v.DiffRSSBytes > 0:
		fmt.Fprintf(&b, "  Absolute increase: %s\n", r.bytes(uint64(v.DiffRSSBytes)))
	case v.DiffRSSBytes < 0:
		fmt.Fprintf(&b, "  Absolute decrease: %s\n", r.bytes(uint64(-v.DiffRSSBytes)))
	}
	fmt.Fprintf(&b, "  Peak VSZ: %s → %s (%s)\n", r.bytes(base.PeakVSZBytes), r.bytes(s.PeakVSZBytes), percent(v.PercentChangeVSZ, v.VSZUnbounded))
	fmt.Fprintf(&b, "  Duration: %s → %s (%s)\n\n",
		formatDuration(time.Duration(base.DurationMS)*time.Millisecond), formatDuration(s.Duration),
		percent(v.PercentChangeDuration, v.DurationUnbounded))

	if v.IsRegression {
		msg := fmt.Sprintf("REGRESSION DETECTED: peak RSS increased by %.1f%% (threshold %.1f%%)", v.PercentChangeRSS, v.Threshold)
		if v.RSSUnbounded {
			msg = "REGRESSION DETECTED: baseline peak RSS was zero"
		}
		fmt.Fprintln(&b, r.style(r.warn, msg))
	} else {
		fmt.Fprintln(&b, r.style(r.ok, "No regression detected"))
	}
	if thresholdExceeded(s) {
		fmt.Fprintln(&b, r.style(r.warn, "THRESHOLD EXCEEDED"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) comparisonCSV(w io.Writer, s *model.RunSummary, base *model.Baseline, v *model.RegressionVerdict) error {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	cw := csv.NewWriter(w)
	cw.Write([]string{
		"baseline_command", "baseline_rss_bytes", "baseline_vsz_bytes", "baseline_duration_ms",
		"current_command", "current_rss_bytes", "current_vsz_bytes", "current_duration_ms",
		"rss_diff_bytes", "rss_diff_percent", "vsz_diff_bytes", "vsz_diff_percent",
		"duration_diff_ms", "duration_diff_percent", "regression_detected",
	})
	cw.Write([]string{
		strings.Join(base.Command, " "),
		strconv.FormatUint(base.PeakRSSBytes, 10),
		strconv.FormatUint(base.PeakVSZBytes, 10),
		strconv.FormatInt(base.DurationMS, 10),
		strings.Join(s.Command, " "),
		strconv.FormatUint(s.PeakRSSBytes, 10),
		strconv.FormatUint(s.PeakVSZBytes, 10),
		strconv.FormatInt(s.DurationMS(), 10),
		strconv.FormatInt(v.DiffRSSBytes, 10),
		f(v.PercentChangeRSS),
		strconv.FormatInt(v.DiffVSZBytes, 10),
		f(v.PercentChangeVSZ),
		strconv.FormatInt(v.DiffDurationMS, 10),
		f(v.PercentChangeDuration),
		strconv.FormatBool(v.IsRegression),
	})
	cw.Flush()
	return cw.Error()
}

// Baselines writes a listing of saved baselines.
func (r *Renderer) Baselines(w io.Writer, list []*model.Baseline) error {
	switch r.opts.Format {
	case FormatJSON:
		if list == nil {
			list = []*model.Baseline{}
		}
		return writeJSON(w, list)
	case FormatCSV:
		cw := csv.NewWriter(w)
		cw.Write([]string{"name", "peak_rss_bytes", "peak_vsz_bytes", "duration_ms", "created_at", "command"})
		for _, b := range list {
			cw.Write([]string{
				b.Name,
				strconv.FormatUint(b.PeakRSSBytes, 10),
				strconv.FormatUint(b.PeakVSZBytes, 10),
				strconv.FormatInt(b.DurationMS, 10),
				b.CreatedAt.UTC().Format(time.RFC3339),
				strings.Join(b.Command, " "),
			})
		}
		cw.Flush()
		return cw.Error()
	case FormatQuiet:
		for _, b := range list {
			if _, err := fmt.Fprintln(w, b.Name); err != nil {
				return err
			}
		}
		return nil
	}

	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No baselines found.")
		return err
	}

	nameLen := 4 // "NAME"
	for _, b := range list {
		nameLen = max(nameLen, len(b.Name))
	}
	nameLen = min(nameLen, 40)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %12s  %12s  %10s  %-19s  %s\n", nameLen, "NAME", "PEAK RSS", "PEAK VSZ", "DURATION", "CREATED", "COMMAND")
	for _, b := range list {
		fmt.Fprintf(&sb, "%-*s  %12s  %12s  %10s  %-19s  %s\n",
			nameLen, b.Name,
			r.bytes(b.PeakRSSBytes), r.bytes(b.PeakVSZBytes),
			formatDuration(time.Duration(b.DurationMS)*time.Millisecond),
			b.CreatedAt.UTC().Format(time.DateTime),
			strings.Join(b.Command, " "))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Baseline writes a single baseline in detail.
func (r *Renderer) Baseline(w io.Writer, b *model.Baseline) error {
	if r.opts.Format == FormatJSON {
		return writeJSON(w, b)
	}
	if r.opts.Format != FormatHuman {
		return r.Baselines(w, []*model.Baseline{b})
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", b.Name)
	fmt.Fprintf(&sb, "Command: %s\n", strings.Join(b.Command, " "))
	fmt.Fprintf(&sb, "Created: %s UTC\n", b.CreatedAt.UTC().Format(time.DateTime))
	sb.WriteString(r.printer.Sprintf("Peak RSS: %s (%d bytes)\n", r.bytes(b.PeakRSSBytes), b.PeakRSSBytes))
	sb.WriteString(r.printer.Sprintf("Peak VSZ: %s (%d bytes)\n", r.bytes(b.PeakVSZBytes), b.PeakVSZBytes))
	fmt.Fprintf(&sb, "Duration: %s\n", formatDuration(time.Duration(b.DurationMS)*time.Millisecond))
	fmt.Fprintf(&sb, "Platform: %s/%s (pid %d)\n", b.Metadata.Platform, b.Metadata.Arch, b.Metadata.MainPID)
	if b.Version != "" {
		fmt.Fprintf(&sb, "Recorded by: peak-mem %s\n", b.Version)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
