package proctree

import (
	"errors"
	"testing"

	"github.com/charmitro/peak-mem/pkg/model"
)

type fakeLister struct {
	parents map[model.ProcessID]model.ProcessID
	err     error
	calls   int
}

func (f *fakeLister) ParentMap() (map[model.ProcessID]model.ProcessID, error) {
	f.calls++
	return f.parents, f.err
}

func pids(set map[model.ProcessID]struct{}) map[model.ProcessID]bool {
	out := make(map[model.ProcessID]bool, len(set))
	for pid := range set {
		out[pid] = true
	}
	return out
}

func TestChildrenOf(t *testing.T) {
	// 1 ─┬─ 100 ─┬─ 101 ── 103
	//    │       └─ 102
	//    └─ 200 ── 201
	parents := map[model.ProcessID]model.ProcessID{
		1:   0,
		100: 1,
		101: 100,
		102: 100,
		103: 101,
		200: 1,
		201: 200,
	}
	tests := []struct {
		name string
		root model.ProcessID
		want []model.ProcessID
	}{
		{"subtree", 100, []model.ProcessID{101, 102, 103}},
		{"leaf", 103, nil},
		{"unknown root", 999, nil},
		{"whole tree", 1, []model.ProcessID{100, 101, 102, 103, 200, 201}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeLister{parents: parents})
			got, err := d.ChildrenOf(tt.root, true)
			if err != nil {
				t.Fatalf("ChildrenOf: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ChildrenOf(%d) = %v, want %v", tt.root, pids(got), tt.want)
			}
			set := pids(got)
			for _, pid := range tt.want {
				if !set[pid] {
					t.Errorf("missing descendant %d", pid)
				}
			}
			if set[tt.root] {
				t.Errorf("root %d included in its own descendants", tt.root)
			}
		})
	}
}

func TestChildrenOf_NotRecursive(t *testing.T) {
	lister := &fakeLister{parents: map[model.ProcessID]model.ProcessID{
		10: 1, 11: 10, 12: 10, 13: 11,
	}}
	got, err := New(lister).ChildrenOf(10, false)
	if err != nil {
		t.Fatalf("ChildrenOf: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ChildrenOf(recursive=false) = %v, want empty", pids(got))
	}
	if lister.calls != 0 {
		t.Errorf("lister called %d times, want 0", lister.calls)
	}
}

func TestChildrenOf_Cycle(t *testing.T) {
	// A recycled pid can claim a descendant as its parent.
	lister := &fakeLister{parents: map[model.ProcessID]model.ProcessID{
		10: 12, 11: 10, 12: 11, 13: 13,
	}}
	got, err := New(lister).ChildrenOf(10, true)
	if err != nil {
		t.Fatalf("ChildrenOf: %v", err)
	}
	set := pids(got)
	if len(set) != 2 || !set[11] || !set[12] {
		t.Errorf("ChildrenOf = %v, want {11, 12}", set)
	}
}

func TestChildrenOf_ListingFailure(t *testing.T) {
	cause := errors.New("procfs unavailable")
	got, err := New(&fakeLister{err: cause}).ChildrenOf(5, true)
	if err == nil {
		t.Fatal("expected discovery error")
	}
	var de *DiscoveryError
	if !errors.As(err, &de) {
		t.Fatalf("error %T is not *DiscoveryError", err)
	}
	if de.Root != 5 || !errors.Is(err, cause) {
		t.Errorf("DiscoveryError = %+v", de)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ChildrenOf on failure = %v, want empty non-nil set", got)
	}
}
