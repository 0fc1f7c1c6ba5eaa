// Package verdict classifies a finished run against a memory threshold or a
// recorded baseline.
package verdict

import (
	"github.com/charmitro/peak-mem/pkg/model"
)

// DefaultRegressionThreshold is the RSS increase, in percent, above which a
// run is reported as a regression.
const DefaultRegressionThreshold = 10.0

// Exceeds reports whether peakRSS is strictly above threshold bytes.
func Exceeds(peakRSS, threshold uint64) bool {
	return peakRSS > threshold
}

// Compare computes the change of current relative to base. A zero baseline
// value yields 0% when current is also zero, otherwise 100% with the
// Unbounded flag set; an unbounded RSS increase is always a regression.
func Compare(current model.RunSummary, base model.Baseline, thresholdPct float64) model.RegressionVerdict {
	v := model.RegressionVerdict{
		Baseline:       base.Name,
		Threshold:      thresholdPct,
		DiffRSSBytes:   diff(current.PeakRSSBytes, base.PeakRSSBytes),
		DiffVSZBytes:   diff(current.PeakVSZBytes, base.PeakVSZBytes),
		DiffDurationMS: current.DurationMS() - base.DurationMS,
	}

	v.PercentChangeRSS, v.RSSUnbounded = percentChange(float64(current.PeakRSSBytes), float64(base.PeakRSSBytes))
	v.PercentChangeVSZ, v.VSZUnbounded = percentChange(float64(current.PeakVSZBytes), float64(base.PeakVSZBytes))
	v.PercentChangeDuration, v.DurationUnbounded = percentChange(float64(current.DurationMS()), float64(base.DurationMS))

	v.IsRegression = v.RSSUnbounded || v.PercentChangeRSS > thresholdPct
	return v
}

func percentChange(current, base float64) (pct float64, unbounded bool) {
	if base == 0 {
		if current == 0 {
			return 0, false
		}
		return 100, true
	}
	return (current - base) / base * 100, false
}

func diff(current, base uint64) int64 {
	if current >= base {
		return int64(current - base)
	}
	return -int64(base - current)
}

// ExitCode maps a run to the process exit code: the child's code, or
// 128+signal, replaced by 1 when the threshold was exceeded or a
// regression was detected.
func ExitCode(summary model.RunSummary, regression *model.RegressionVerdict) int {
	code := summary.Exit.ShellCode()
	if summary.ThresholdExceeded != nil && *summary.ThresholdExceeded {
		code = 1
	}
	if regression != nil && regression.IsRegression {
		code = 1
	}
	return code
}
