//go:build windows

package runner

import (
	"os"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Console control events already reach every process attached to the
// console, so nothing is forwarded explicitly.
var forwardedSignals = []os.Signal{os.Interrupt}

func forwardSignal(_ *os.Process, _ os.Signal) error {
	return nil
}

func exitStatusOf(ps *os.ProcessState) model.ExitStatus {
	if ps == nil {
		return model.ExitStatus{Code: -1}
	}
	return model.ExitStatus{Code: ps.ExitCode()}
}
