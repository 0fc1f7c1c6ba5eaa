//go:build !unix && !windows

package runner

import (
	"os"

	"github.com/charmitro/peak-mem/pkg/model"
)

var forwardedSignals = []os.Signal{os.Interrupt}

func forwardSignal(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}

func exitStatusOf(ps *os.ProcessState) model.ExitStatus {
	if ps == nil {
		return model.ExitStatus{Code: -1}
	}
	return model.ExitStatus{Code: ps.ExitCode()}
}
