//go:build darwin && cgo

package procmem

// #include <libproc.h>
// #include <sys/proc_info.h>
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/charmitro/peak-mem/pkg/model"
)

// LibprocSource reads task info through proc_pidinfo.
type LibprocSource struct{}

// New returns the Source for this platform.
func New() Source {
	return &LibprocSource{}
}

// Read returns pti_resident_size and pti_virtual_size, which libproc
// already reports in bytes.
func (s *LibprocSource) Read(pid model.ProcessID) (model.ProcessMemorySample, error) {
	sample := model.ProcessMemorySample{PID: pid}

	var info C.struct_proc_taskinfo
	size := C.int(unsafe.Sizeof(info))
	n, err := C.proc_pidinfo(C.int(pid), C.PROC_PIDTASKINFO, 0, unsafe.Pointer(&info), size)
	if n <= 0 {
		return sample, classify(pid, err)
	}
	if n < size {
		return sample, otherError(pid, fmt.Errorf("short task info: %d of %d bytes", n, size))
	}
	sample.RSSBytes = uint64(info.pti_resident_size)
	sample.VSZBytes = uint64(info.pti_virtual_size)
	return sample, nil
}

// ParentMap lists all pids and reads pbi_ppid for each.
func (s *LibprocSource) ParentMap() (map[model.ProcessID]model.ProcessID, error) {
	count, err := C.proc_listallpids(nil, 0)
	if count <= 0 {
		return nil, fmt.Errorf("proc_listallpids: %v", err)
	}
	// Leave headroom for processes spawned between the two calls.
	buf := make([]C.int, int(count)+64)
	count, err = C.proc_listallpids(unsafe.Pointer(&buf[0]), C.int(len(buf))*C.int(unsafe.Sizeof(buf[0])))
	if count <= 0 {
		return nil, fmt.Errorf("proc_listallpids: %v", err)
	}

	parents := make(map[model.ProcessID]model.ProcessID, int(count))
	for _, p := range buf[:count] {
		if p <= 0 {
			continue
		}
		var info C.struct_proc_bsdinfo
		size := C.int(unsafe.Sizeof(info))
		if n, _ := C.proc_pidinfo(p, C.PROC_PIDTBSDINFO, 0, unsafe.Pointer(&info), size); n < size {
			continue
		}
		parents[model.ProcessID(p)] = model.ProcessID(info.pbi_ppid)
	}
	return parents, nil
}

func classify(pid model.ProcessID, err error) error {
	switch {
	case err == nil:
		return otherError(pid, errors.New("proc_pidinfo returned no data"))
	case errors.Is(err, unix.ESRCH):
		return notFound(pid, err)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return permissionDenied(pid, err)
	default:
		return otherError(pid, err)
	}
}
