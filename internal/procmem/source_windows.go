//go:build windows

package procmem

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/charmitro/peak-mem/pkg/model"
)

// processMemoryCounters mirrors PROCESS_MEMORY_COUNTERS from psapi.h.
type processMemoryCounters struct {
	cb                         uint32
	pageFaultCount             uint32
	peakWorkingSetSize         uintptr
	workingSetSize             uintptr
	quotaPeakPagedPoolUsage    uintptr
	quotaPagedPoolUsage        uintptr
	quotaPeakNonPagedPoolUsage uintptr
	quotaNonPagedPoolUsage     uintptr
	pagefileUsage              uintptr
	peakPagefileUsage          uintptr
}

const stillActive = 259

var (
	modpsapi                 = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = modpsapi.NewProc("GetProcessMemoryInfo")
)

// WindowsSource reads the working set and pagefile usage of a process.
type WindowsSource struct{}

// New returns the Source for this platform.
func New() Source {
	return &WindowsSource{}
}

// Read maps WorkingSetSize to resident bytes and PagefileUsage (private
// committed bytes) to virtual bytes.
func (s *WindowsSource) Read(pid model.ProcessID) (model.ProcessMemorySample, error) {
	sample := model.ProcessMemorySample{PID: pid}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return sample, classify(pid, err)
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err == nil && code != stillActive {
		return sample, notFound(pid, errors.New("process has exited"))
	}

	var pmc processMemoryCounters
	pmc.cb = uint32(unsafe.Sizeof(pmc))
	ret, _, callErr := procGetProcessMemoryInfo.Call(uintptr(h), uintptr(unsafe.Pointer(&pmc)), uintptr(pmc.cb))
	if ret == 0 {
		return sample, classify(pid, callErr)
	}
	sample.RSSBytes = uint64(pmc.workingSetSize)
	sample.VSZBytes = uint64(pmc.pagefileUsage)
	return sample, nil
}

// ParentMap walks a toolhelp process snapshot.
func (s *WindowsSource) ParentMap() (map[model.ProcessID]model.ProcessID, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32First(snap, &pe); err != nil {
		return nil, fmt.Errorf("Process32First: %w", err)
	}

	parents := make(map[model.ProcessID]model.ProcessID)
	for {
		if pe.ProcessID != 0 {
			parents[model.ProcessID(pe.ProcessID)] = model.ProcessID(pe.ParentProcessID)
		}
		if err := windows.Process32Next(snap, &pe); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("Process32Next: %w", err)
		}
	}
	return parents, nil
}

func classify(pid model.ProcessID, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return notFound(pid, err)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return permissionDenied(pid, err)
	default:
		return otherError(pid, err)
	}
}
