//go:build !linux && !windows && !(darwin && cgo)

package procmem

import "github.com/charmitro/peak-mem/pkg/model"

type unsupportedSource struct{}

// New returns a Source that fails every read on this platform.
func New() Source {
	return unsupportedSource{}
}

func (unsupportedSource) Read(pid model.ProcessID) (model.ProcessMemorySample, error) {
	return model.ProcessMemorySample{PID: pid}, otherError(pid, ErrUnsupported)
}

func (unsupportedSource) ParentMap() (map[model.ProcessID]model.ProcessID, error) {
	return nil, ErrUnsupported
}
