// Package proctree enumerates the live descendants of a process.
package proctree

import (
	"fmt"

	"github.com/charmitro/peak-mem/pkg/model"
)

// Lister returns the parent of every visible process. procmem.Source
// satisfies it.
type Lister interface {
	ParentMap() (map[model.ProcessID]model.ProcessID, error)
}

// DiscoveryError is returned when the process listing itself fails.
type DiscoveryError struct {
	Root model.ProcessID
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover descendants of pid %d: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Discovery resolves tree membership from the OS on every call. It keeps
// no state between calls.
type Discovery struct {
	lister Lister
}

// New creates a Discovery backed by lister.
func New(lister Lister) *Discovery {
	return &Discovery{lister: lister}
}

// ChildrenOf returns every descendant of root reachable through parent
// linkage at the time of the call. With recursive false it returns an
// empty set without touching the OS. The root itself is never included.
func (d *Discovery) ChildrenOf(root model.ProcessID, recursive bool) (map[model.ProcessID]struct{}, error) {
	descendants := make(map[model.ProcessID]struct{})
	if !recursive {
		return descendants, nil
	}

	parents, err := d.lister.ParentMap()
	if err != nil {
		return descendants, &DiscoveryError{Root: root, Err: err}
	}

	children := make(map[model.ProcessID][]model.ProcessID, len(parents))
	for pid, ppid := range parents {
		if pid == ppid {
			continue
		}
		children[ppid] = append(children[ppid], pid)
	}

	queue := append([]model.ProcessID(nil), children[root]...)
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]

		// Pid reuse can make the linkage loop back to an ancestor.
		if pid == root {
			continue
		}
		if _, seen := descendants[pid]; seen {
			continue
		}
		descendants[pid] = struct{}{}
		queue = append(queue, children[pid]...)
	}
	return descendants, nil
}
