// Package watch renders a live terminal view of memory usage while a
// monitored command runs.
package watch

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charmitro/peak-mem/internal/report"
	"github.com/charmitro/peak-mem/internal/tracker"
	"github.com/charmitro/peak-mem/pkg/model"
)

const (
	barWidth = 30

	// DefaultRefresh is used when no refresh interval is given.
	DefaultRefresh = 250 * time.Millisecond
)

// Source provides the latest aggregate. *tracker.Tracker satisfies it.
type Source interface {
	Current() tracker.Aggregate
}

type tickMsg time.Time

// doneMsg tells the model the monitored command has exited.
type doneMsg struct{}

// Model is the bubbletea model for the live view.
type Model struct {
	Command   string
	PID       model.ProcessID
	Refresh   time.Duration
	Unit      report.Unit
	Threshold *uint64

	src   Source
	start time.Time
	now   time.Time
	agg   tracker.Aggregate
	done  bool
}

// NewModel creates a model that polls src every refresh interval.
func NewModel(src Source, command []string, pid model.ProcessID, refresh time.Duration) *Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	now := time.Now()
	return &Model{
		Command: strings.Join(command, " "),
		PID:     pid,
		Refresh: refresh,
		src:     src,
		start:   now,
		now:     now,
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	m.agg = m.src.Current()
	return m.tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.now = time.Time(msg)
		m.agg = m.src.Current()
		return m, m.tick()
	case doneMsg:
		m.now = time.Now()
		m.agg = m.src.Current()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	status := "running"
	if m.done {
		status = "exited"
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("peak-mem"), m.Command)
	m.row(&b, "PID", fmt.Sprintf("%d (%s)", m.PID, status))
	m.row(&b, "Elapsed", m.now.Sub(m.start).Truncate(100*time.Millisecond).String())
	m.row(&b, "Current RSS", report.FormatBytes(m.agg.CurrentRSSBytes, m.Unit))
	m.row(&b, "Current VSZ", report.FormatBytes(m.agg.CurrentVSZBytes, m.Unit))
	m.row(&b, "Peak RSS", report.FormatBytes(m.agg.PeakRSSBytes, m.Unit))
	m.row(&b, "Peak VSZ", report.FormatBytes(m.agg.PeakVSZBytes, m.Unit))
	m.row(&b, "Processes", fmt.Sprintf("%d", m.agg.Processes))
	m.row(&b, "Samples", fmt.Sprintf("%d", m.agg.SampleCount))
	if m.Threshold != nil {
		limit := *m.Threshold
		m.row(&b, "Threshold", bar(m.agg.CurrentRSSBytes, limit)+" "+report.FormatBytes(limit, m.Unit))
		if m.agg.PeakRSSBytes > limit {
			b.WriteString(alertStyle.Render("THRESHOLD EXCEEDED"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *Model) row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// bar renders cur as a fraction of limit, clamped to full.
func bar(cur, limit uint64) string {
	filled := barWidth
	if limit > 0 && cur < limit {
		filled = int(float64(cur) / float64(limit) * barWidth)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// Display runs a Model in its own bubbletea program.
type Display struct {
	prog *tea.Program
	done chan error
}

// Start launches the live view on out. Input is not read and signals are
// left to the caller.
func Start(m *Model, out io.Writer) *Display {
	d := &Display{
		prog: tea.NewProgram(m,
			tea.WithInput(nil),
			tea.WithOutput(out),
			tea.WithoutSignalHandler(),
		),
		done: make(chan error, 1),
	}
	go func() {
		_, err := d.prog.Run()
		d.done <- err
	}()
	return d
}

// Stop renders a final frame, ends the program and waits for it to exit.
func (d *Display) Stop() error {
	d.prog.Send(doneMsg{})
	return <-d.done
}
