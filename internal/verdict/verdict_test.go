package verdict

import (
	"math"
	"testing"
	"time"

	"github.com/charmitro/peak-mem/pkg/model"
)

func TestExceeds(t *testing.T) {
	tests := []struct {
		peak      uint64
		threshold uint64
		want      bool
	}{
		{1_073_741_824, 1_000_000_000, true},
		{1_073_741_824, 2_000_000_000, false},
		{100, 100, false},
		{101, 100, true},
		{0, 0, false},
	}
	for _, tt := range tests {
		if got := Exceeds(tt.peak, tt.threshold); got != tt.want {
			t.Errorf("Exceeds(%d, %d) = %v, want %v", tt.peak, tt.threshold, got, tt.want)
		}
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompare(t *testing.T) {
	base := model.Baseline{Name: "main", PeakRSSBytes: 100_000_000, PeakVSZBytes: 200_000_000, DurationMS: 1000}

	tests := []struct {
		name       string
		rss        uint64
		vsz        uint64
		duration   time.Duration
		wantRSS    float64
		wantVSZ    float64
		wantDur    float64
		regression bool
	}{
		{"over threshold", 111_000_000, 200_000_000, time.Second, 11, 0, 0, true},
		{"under threshold", 105_000_000, 220_000_000, 1500 * time.Millisecond, 5, 10, 50, false},
		{"exactly threshold", 110_000_000, 200_000_000, time.Second, 10, 0, 0, false},
		{"improvement", 50_000_000, 100_000_000, 500 * time.Millisecond, -50, -50, -50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := model.RunSummary{PeakRSSBytes: tt.rss, PeakVSZBytes: tt.vsz, Duration: tt.duration}
			v := Compare(cur, base, DefaultRegressionThreshold)
			if !approx(v.PercentChangeRSS, tt.wantRSS) {
				t.Errorf("PercentChangeRSS = %v, want %v", v.PercentChangeRSS, tt.wantRSS)
			}
			if !approx(v.PercentChangeVSZ, tt.wantVSZ) {
				t.Errorf("PercentChangeVSZ = %v, want %v", v.PercentChangeVSZ, tt.wantVSZ)
			}
			if !approx(v.PercentChangeDuration, tt.wantDur) {
				t.Errorf("PercentChangeDuration = %v, want %v", v.PercentChangeDuration, tt.wantDur)
			}
			if v.IsRegression != tt.regression {
				t.Errorf("IsRegression = %v, want %v", v.IsRegression, tt.regression)
			}
			if v.Baseline != "main" || v.Threshold != DefaultRegressionThreshold {
				t.Errorf("verdict metadata = %q/%v", v.Baseline, v.Threshold)
			}
		})
	}
}

func TestCompare_Diffs(t *testing.T) {
	base := model.Baseline{PeakRSSBytes: 1000, PeakVSZBytes: 5000, DurationMS: 200}
	cur := model.RunSummary{PeakRSSBytes: 800, PeakVSZBytes: 6000, Duration: 250 * time.Millisecond}

	v := Compare(cur, base, 10)
	if v.DiffRSSBytes != -200 || v.DiffVSZBytes != 1000 || v.DiffDurationMS != 50 {
		t.Errorf("diffs = (%d, %d, %d), want (-200, 1000, 50)", v.DiffRSSBytes, v.DiffVSZBytes, v.DiffDurationMS)
	}
}

func TestCompare_ZeroBaseline(t *testing.T) {
	tests := []struct {
		name       string
		baseRSS    uint64
		curRSS     uint64
		wantPct    float64
		unbounded  bool
		regression bool
	}{
		{"both zero", 0, 0, 0, false, false},
		{"grew from zero", 0, 4096, 100, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Compare(model.RunSummary{PeakRSSBytes: tt.curRSS}, model.Baseline{PeakRSSBytes: tt.baseRSS}, 500)
			if math.IsNaN(v.PercentChangeRSS) || math.IsInf(v.PercentChangeRSS, 0) {
				t.Fatalf("PercentChangeRSS = %v", v.PercentChangeRSS)
			}
			if v.PercentChangeRSS != tt.wantPct || v.RSSUnbounded != tt.unbounded {
				t.Errorf("rss = %v unbounded=%v, want %v unbounded=%v", v.PercentChangeRSS, v.RSSUnbounded, tt.wantPct, tt.unbounded)
			}
			if v.IsRegression != tt.regression {
				t.Errorf("IsRegression = %v, want %v", v.IsRegression, tt.regression)
			}
			if v.PercentChangeVSZ != 0 || v.PercentChangeDuration != 0 {
				t.Errorf("zero vsz/duration change = %v/%v, want 0", v.PercentChangeVSZ, v.PercentChangeDuration)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name       string
		exit       model.ExitStatus
		exceeded   *bool
		regression *model.RegressionVerdict
		want       int
	}{
		{"success", model.ExitStatus{Code: 0}, nil, nil, 0},
		{"child failure", model.ExitStatus{Code: 3}, &no, nil, 3},
		{"signal", model.ExitStatus{Signal: 9, Signaled: true}, nil, nil, 137},
		{"threshold exceeded", model.ExitStatus{Code: 0}, &yes, nil, 1},
		{"threshold overrides child code", model.ExitStatus{Code: 7}, &yes, nil, 1},
		{"regression", model.ExitStatus{Code: 0}, nil, &model.RegressionVerdict{IsRegression: true}, 1},
		{"no regression", model.ExitStatus{Code: 2}, nil, &model.RegressionVerdict{}, 2},
		{"signal and regression", model.ExitStatus{Signal: 15, Signaled: true}, nil, &model.RegressionVerdict{IsRegression: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := model.RunSummary{Exit: tt.exit, ThresholdExceeded: tt.exceeded}
			if got := ExitCode(sum, tt.regression); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
