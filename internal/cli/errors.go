package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"

	"github.com/charmitro/peak-mem/internal/runner"
)

// ExitCodeError reports a completed run whose exit code is non-zero. It
// carries no diagnostic of its own.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error returned by the root command to the process exit
// code. Commands that cannot be found or executed map to 127 and 126 as in
// POSIX shells.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var spawnErr *runner.SpawnError
	if errors.As(err, &spawnErr) {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return 127
		case errors.Is(err, fs.ErrPermission):
			return 126
		}
	}
	return 1
}
