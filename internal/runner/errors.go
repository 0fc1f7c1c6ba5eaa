package runner

import (
	"errors"
	"fmt"
)

// ErrNoCommand is returned when Options.Command is empty.
var ErrNoCommand = errors.New("no command given")

// SpawnError is returned when the target command could not be launched.
// No sampling happens in that case.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
