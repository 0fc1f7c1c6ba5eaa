// Package procmem reads the memory usage of individual processes from the
// platform's per-process accounting facility.
package procmem

import (
	"errors"
	"fmt"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Sentinel errors for process memory reads.
var (
	ErrNotFound    = errors.New("process not found")
	ErrPermission  = errors.New("permission denied")
	ErrUnsupported = errors.New("process memory sampling is not supported on this platform")
)

// ErrorKind classifies a failed read.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindPermission
)

// String returns the kind name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission_denied"
	default:
		return "other"
	}
}

// ReadError is returned by Source.Read. A KindNotFound error means the
// process exited before it could be read.
type ReadError struct {
	PID  model.ProcessID
	Kind ErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read memory of pid %d (%s): %v", e.PID, e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind so callers can use errors.Is.
func (e *ReadError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermission:
		return e.Kind == KindPermission
	}
	return false
}

// IsNotFound reports whether err means the process no longer exists.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Source reads per-process memory and the system's parent linkage.
type Source interface {
	// Read returns the current resident and virtual size of pid in bytes.
	Read(pid model.ProcessID) (model.ProcessMemorySample, error)

	// ParentMap returns the parent of every process visible to the caller.
	ParentMap() (map[model.ProcessID]model.ProcessID, error)
}

func notFound(pid model.ProcessID, err error) *ReadError {
	return &ReadError{PID: pid, Kind: KindNotFound, Err: err}
}

func permissionDenied(pid model.ProcessID, err error) *ReadError {
	return &ReadError{PID: pid, Kind: KindPermission, Err: err}
}

func otherError(pid model.ProcessID, err error) *ReadError {
	return &ReadError{PID: pid, Kind: KindOther, Err: err}
}
