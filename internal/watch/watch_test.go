package watch

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charmitro/peak-mem/internal/tracker"
)

type fakeSource struct {
	mu  sync.Mutex
	agg tracker.Aggregate
}

func (f *fakeSource) Current() tracker.Aggregate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agg
}

func (f *fakeSource) set(a tracker.Aggregate) {
	f.mu.Lock()
	f.agg = a
	f.mu.Unlock()
}

func TestModelTickRefreshesAggregate(t *testing.T) {
	src := &fakeSource{}
	m := NewModel(src, []string{"sleep", "1"}, 42, 10*time.Millisecond)
	if cmd := m.Init(); cmd == nil {
		t.Fatal("Init should schedule a tick")
	}

	src.set(tracker.Aggregate{CurrentRSSBytes: 1 << 20, PeakRSSBytes: 2 << 20, Processes: 3, SampleCount: 7})
	_, cmd := m.Update(tickMsg(m.start.Add(time.Second)))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}

	view := m.View()
	for _, want := range []string{"sleep 1", "42 (running)", "1.0 MiB", "2.0 MiB", "1s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelDoneQuits(t *testing.T) {
	src := &fakeSource{}
	m := NewModel(src, []string{"true"}, 1, 0)
	if m.Refresh != DefaultRefresh {
		t.Errorf("Refresh = %v, want %v", m.Refresh, DefaultRefresh)
	}
	m.Init()

	src.set(tracker.Aggregate{PeakRSSBytes: 5 << 20, Finalized: true})
	_, cmd := m.Update(doneMsg{})
	if cmd == nil {
		t.Fatal("done should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done command is not tea.Quit")
	}
	if !strings.Contains(m.View(), "exited") {
		t.Errorf("view should show exited:\n%s", m.View())
	}

	// Ticks after exit do not reschedule.
	if _, cmd := m.Update(tickMsg(time.Now())); cmd != nil {
		t.Error("tick after done should not reschedule")
	}
}

func TestModelThreshold(t *testing.T) {
	src := &fakeSource{}
	m := NewModel(src, []string{"x"}, 1, time.Second)
	limit := uint64(1 << 20)
	m.Threshold = &limit

	src.set(tracker.Aggregate{CurrentRSSBytes: 512 << 10, PeakRSSBytes: 512 << 10})
	m.Init()
	if strings.Contains(m.View(), "THRESHOLD EXCEEDED") {
		t.Error("threshold flagged below limit")
	}

	src.set(tracker.Aggregate{CurrentRSSBytes: 2 << 20, PeakRSSBytes: 2 << 20})
	m.Update(tickMsg(time.Now()))
	if !strings.Contains(m.View(), "THRESHOLD EXCEEDED") {
		t.Errorf("threshold not flagged:\n%s", m.View())
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		cur, limit uint64
		full       int
	}{
		{0, 100, 0},
		{50, 100, barWidth / 2},
		{100, 100, barWidth},
		{500, 100, barWidth},
		{10, 0, barWidth},
	}
	for _, tt := range tests {
		got := strings.Count(bar(tt.cur, tt.limit), "█")
		if got != tt.full {
			t.Errorf("bar(%d, %d) filled %d, want %d", tt.cur, tt.limit, got, tt.full)
		}
		if total := got + strings.Count(bar(tt.cur, tt.limit), "░"); total != barWidth {
			t.Errorf("bar(%d, %d) width %d, want %d", tt.cur, tt.limit, total, barWidth)
		}
	}
}

func TestDisplayStartStop(t *testing.T) {
	src := &fakeSource{}
	src.set(tracker.Aggregate{PeakRSSBytes: 3 << 20})
	var out bytes.Buffer
	d := Start(NewModel(src, []string{"make"}, 7, 5*time.Millisecond), &out)

	stopped := make(chan error, 1)
	go func() { stopped <- d.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("display did not stop")
	}
}
