//go:build linux

package procmem

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/charmitro/peak-mem/pkg/model"
)

// DefaultProcRoot is where procfs is mounted.
const DefaultProcRoot = "/proc"

// ProcfsSource reads memory from /proc/<pid>/status and parent linkage from
// /proc/<pid>/stat.
type ProcfsSource struct {
	root string
}

// New returns the Source for this platform.
func New() Source {
	return NewProcfs(DefaultProcRoot)
}

// NewProcfs returns a Source reading a procfs tree mounted at root.
func NewProcfs(root string) *ProcfsSource {
	return &ProcfsSource{root: root}
}

// Read parses VmRSS and VmSize (reported in kB) from the status file.
// A zombie is reported as not found since it no longer owns memory.
func (s *ProcfsSource) Read(pid model.ProcessID) (model.ProcessMemorySample, error) {
	sample := model.ProcessMemorySample{PID: pid}

	data, err := os.ReadFile(filepath.Join(s.root, pid.String(), "status"))
	if err != nil {
		return sample, classify(pid, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch key {
		case "State":
			if strings.HasPrefix(strings.TrimSpace(val), "Z") {
				return sample, notFound(pid, errors.New("zombie"))
			}
		case "VmRSS":
			n, err := parseKB(val)
			if err != nil {
				return sample, otherError(pid, fmt.Errorf("VmRSS: %w", err))
			}
			sample.RSSBytes = n * 1024
		case "VmSize":
			n, err := parseKB(val)
			if err != nil {
				return sample, otherError(pid, fmt.Errorf("VmSize: %w", err))
			}
			sample.VSZBytes = n * 1024
		}
	}
	if err := sc.Err(); err != nil {
		return sample, otherError(pid, err)
	}
	return sample, nil
}

// ParentMap scans every numeric entry under the procfs root. Processes
// that vanish during the scan are skipped.
func (s *ProcfsSource) ParentMap() (map[model.ProcessID]model.ProcessID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}
	parents := make(map[model.ProcessID]model.ProcessID, len(entries))
	for _, e := range entries {
		n, err := strconv.Atoi(e.Name())
		if err != nil || n <= 0 {
			continue
		}
		pid := model.ProcessID(n)
		ppid, err := s.parentOf(pid)
		if err != nil {
			continue
		}
		parents[pid] = ppid
	}
	return parents, nil
}

// parentOf reads field 4 of /proc/<pid>/stat. The command name in field 2
// may contain spaces and parentheses, so parsing starts after the last ')'.
func (s *ProcfsSource) parentOf(pid model.ProcessID) (model.ProcessID, error) {
	data, err := os.ReadFile(filepath.Join(s.root, pid.String(), "stat"))
	if err != nil {
		return 0, err
	}
	end := bytes.LastIndexByte(data, ')')
	if end < 0 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(string(data[end+1:]))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("parse ppid for pid %d: %w", pid, err)
	}
	return model.ProcessID(ppid), nil
}

func parseKB(val string) (uint64, error) {
	val = strings.TrimSpace(val)
	val = strings.TrimSuffix(val, "kB")
	return strconv.ParseUint(strings.TrimSpace(val), 10, 64)
}

func classify(pid model.ProcessID, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ESRCH):
		return notFound(pid, err)
	case errors.Is(err, fs.ErrPermission):
		return permissionDenied(pid, err)
	default:
		return otherError(pid, err)
	}
}
