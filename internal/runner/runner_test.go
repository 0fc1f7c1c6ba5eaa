//go:build unix

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strconv"
	"testing"
	"time"

	"github.com/charmitro/peak-mem/internal/procmem"
	"github.com/charmitro/peak-mem/internal/tracker"
	"github.com/charmitro/peak-mem/pkg/model"
)

const helperEnv = "PEAK_MEM_HELPER_ALLOC_MB"

// TestHelperProcess is not a real test. It is re-executed as the monitored
// child: it allocates and touches the requested amount of memory, holds it
// briefly, then releases it before exiting.
func TestHelperProcess(t *testing.T) {
	mb, err := strconv.Atoi(os.Getenv(helperEnv))
	if err != nil {
		return
	}
	buf := make([]byte, mb<<20)
	for i := 0; i < len(buf); i += 4096 {
		buf[i] = 1
	}
	time.Sleep(400 * time.Millisecond)
	runtime.KeepAlive(buf)
	buf = nil
	debug.FreeOSMemory()
	time.Sleep(300 * time.Millisecond)
	os.Exit(0)
}

func testRunner() *Runner {
	return New(procmem.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func baseOptions(command ...string) Options {
	return Options{
		Command:             command,
		Interval:            10 * time.Millisecond,
		TrackChildren:       true,
		RegressionThreshold: 10,
		Stdin:               bytes.NewReader(nil),
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	}
}

func requireSampling(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skipf("process memory sampling not available on %s", runtime.GOOS)
	}
}

func TestRun_ExitCode(t *testing.T) {
	res, err := testRunner().Run(context.Background(), baseOptions("sh", "-c", "exit 3"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Exit.Code != 3 || res.Summary.Exit.Signaled {
		t.Errorf("Exit = %+v, want code 3", res.Summary.Exit)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Summary.SampleCount < 1 {
		t.Errorf("SampleCount = %d, want at least 1", res.Summary.SampleCount)
	}
	if res.Summary.ID == "" || res.Summary.MainPID <= 0 {
		t.Errorf("summary identity not set: id=%q pid=%d", res.Summary.ID, res.Summary.MainPID)
	}
	if res.Summary.ThresholdExceeded != nil {
		t.Errorf("ThresholdExceeded = %v without a threshold", *res.Summary.ThresholdExceeded)
	}
}

func TestRun_Signaled(t *testing.T) {
	res, err := testRunner().Run(context.Background(), baseOptions("sh", "-c", "kill -TERM $$"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Summary.Exit.Signaled || res.Summary.Exit.Signal != 15 {
		t.Errorf("Exit = %+v, want signal 15", res.Summary.Exit)
	}
	if res.ExitCode != 143 {
		t.Errorf("ExitCode = %d, want 143", res.ExitCode)
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	_, err := testRunner().Run(context.Background(), baseOptions("/nonexistent/peak-mem-test-binary"))
	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
	if se.Command != "/nonexistent/peak-mem-test-binary" {
		t.Errorf("Command = %q", se.Command)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("SpawnError does not unwrap to ErrNotExist: %v", err)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	if _, err := testRunner().Run(context.Background(), Options{Interval: time.Second}); !errors.Is(err, ErrNoCommand) {
		t.Errorf("empty command: err = %v, want ErrNoCommand", err)
	}
	opts := baseOptions("true")
	opts.Interval = 0
	if _, err := testRunner().Run(context.Background(), opts); err == nil {
		t.Error("zero interval accepted")
	}
}

func TestRun_Duration(t *testing.T) {
	res, err := testRunner().Run(context.Background(), baseOptions("sleep", "0.2"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Duration < 200*time.Millisecond {
		t.Errorf("Duration = %v, want at least 200ms", res.Summary.Duration)
	}
	if res.Summary.Duration > 10*time.Second {
		t.Errorf("Duration = %v, unexpectedly long", res.Summary.Duration)
	}
}

func TestRun_Threshold(t *testing.T) {
	requireSampling(t)

	low := uint64(1)
	opts := baseOptions("sleep", "0.1")
	opts.ThresholdBytes = &low
	res, err := testRunner().Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.ThresholdExceeded == nil || !*res.Summary.ThresholdExceeded {
		t.Fatalf("ThresholdExceeded = %v, want true", res.Summary.ThresholdExceeded)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}

	high := uint64(1 << 50)
	opts.ThresholdBytes = &high
	res, err = testRunner().Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *res.Summary.ThresholdExceeded || res.ExitCode != 0 {
		t.Errorf("exceeded=%v exit=%d, want false/0", *res.Summary.ThresholdExceeded, res.ExitCode)
	}
}

func TestRun_Regression(t *testing.T) {
	requireSampling(t)

	opts := baseOptions("sleep", "0.1")
	opts.Baseline = &model.Baseline{Name: "tiny", PeakRSSBytes: 1, PeakVSZBytes: 1, DurationMS: 1}
	res, err := testRunner().Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Regression == nil || !res.Regression.IsRegression {
		t.Fatalf("Regression = %+v, want regression", res.Regression)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
}

func TestRun_TracksChildren(t *testing.T) {
	requireSampling(t)

	for _, track := range []bool{true, false} {
		opts := baseOptions("sh", "-c", "sleep 0.5 & sleep 0.5; wait")
		opts.Verbose = true
		opts.TrackChildren = track
		res, err := testRunner().Run(context.Background(), opts)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		n := len(res.Summary.PeakProcesses)
		if track && n < 2 {
			t.Errorf("tracking children: peak tick has %d processes, want at least 2", n)
		}
		if !track && n != 1 {
			t.Errorf("not tracking children: peak tick has %d processes, want 1", n)
		}
		if res.Summary.TrackedChildren != track {
			t.Errorf("TrackedChildren = %v, want %v", res.Summary.TrackedChildren, track)
		}
	}
}

func TestRun_CapturesTransientPeak(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on procfs RSS accounting")
	}
	const allocMB = 64

	opts := baseOptions(os.Args[0], "-test.run=^TestHelperProcess$")
	opts.RecordTimeline = true

	var observed *tracker.Tracker
	opts.Observe = func(pid model.ProcessID, tr *tracker.Tracker) { observed = tr }

	t.Setenv(helperEnv, strconv.Itoa(allocMB))
	res, err := testRunner().Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Exit.Code != 0 {
		t.Fatalf("helper exited with %v", res.Summary.Exit)
	}
	if res.Summary.PeakRSSBytes < allocMB<<20 {
		t.Errorf("PeakRSSBytes = %d, want at least %d", res.Summary.PeakRSSBytes, allocMB<<20)
	}
	if len(res.Summary.Timeline) != res.Summary.SampleCount {
		t.Errorf("timeline has %d points, SampleCount = %d", len(res.Summary.Timeline), res.Summary.SampleCount)
	}
	last := res.Summary.Timeline[len(res.Summary.Timeline)-1]
	if last.RSSBytes >= res.Summary.PeakRSSBytes {
		t.Errorf("last tick rss %d is not below the peak %d", last.RSSBytes, res.Summary.PeakRSSBytes)
	}
	if observed == nil || !observed.Current().Finalized {
		t.Error("Observe hook did not receive the run's tracker")
	}
}

func TestRun_ContextCancelKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := baseOptions("sleep", "30")
	opts.Observe = func(model.ProcessID, *tracker.Tracker) { cancel() }

	start := time.Now()
	res, err := testRunner().Run(ctx, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("child was not killed on cancellation")
	}
	if !res.Summary.Exit.Signaled || res.ExitCode != 137 {
		t.Errorf("Exit = %+v code %d, want SIGKILL/137", res.Summary.Exit, res.ExitCode)
	}
}

func TestRun_InheritsEnvironment(t *testing.T) {
	t.Setenv("PEAK_MEM_TEST_VAR", "hello")
	var out bytes.Buffer
	opts := baseOptions("sh", "-c", "printf %s \"$PEAK_MEM_TEST_VAR\"")
	opts.Stdout = &out
	if _, err := testRunner().Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "hello" {
		t.Errorf("child stdout = %q, want %q", out.String(), "hello")
	}
}

func TestExitStatusOf(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 42")
	_ = cmd.Run()
	if got := exitStatusOf(cmd.ProcessState); got.Code != 42 || got.Signaled {
		t.Errorf("exitStatusOf = %+v, want code 42", got)
	}
	if got := exitStatusOf(nil); got.Code != -1 {
		t.Errorf("exitStatusOf(nil) = %+v", got)
	}
}
