//go:build unix

package runner

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/charmitro/peak-mem/pkg/model"
)

var forwardedSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT}

func forwardSignal(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}

func exitStatusOf(ps *os.ProcessState) model.ExitStatus {
	if ps == nil {
		return model.ExitStatus{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return model.ExitStatus{Signal: int(ws.Signal()), Signaled: true}
	}
	return model.ExitStatus{Code: ps.ExitCode()}
}
