package proctree

import (
	"sort"
	"sync"
)

// maxWalkDepth bounds the parent-chain walk against pathological or
// cyclic parent links.
const maxWalkDepth = 256

// Tracker maintains the set of PIDs considered part of the monitored
// root's process tree. The set grows monotonically between Refresh
// calls: positive membership results discovered by the parent-chain walk
// are memoized, negative results are not, because a PID that is not yet
// a descendant may become one.
type Tracker struct {
	root int
	src  Source

	mu      sync.RWMutex
	members map[int]bool
}

// NewTracker builds a tracker rooted at rootPID and seeds the membership
// set with all current descendants.
func NewTracker(rootPID int, src Source) *Tracker {
	t := &Tracker{
		root:    rootPID,
		src:     src,
		members: make(map[int]bool),
	}
	t.rebuild()
	return t
}

// RootPID returns the monitored root.
func (t *Tracker) RootPID() int { return t.root }

// IsTracked reports whether pid belongs to the monitored tree. For a PID
// not in the set it walks the parent chain; every PID visited on a
// successful walk is memoized to bound the cost of future queries. A
// failed parent lookup (process already exited) terminates the walk with
// a negative answer, never an error.
func (t *Tracker) IsTracked(pid int) bool {
	if pid == t.root {
		return true
	}

	t.mu.RLock()
	known := t.members[pid]
	t.mu.RUnlock()
	if known {
		return true
	}

	visited := []int{pid}
	current := pid
	for depth := 0; depth < maxWalkDepth; depth++ {
		parent, err := t.src.Parent(current)
		if err != nil {
			return false
		}
		if parent == t.root {
			t.memoize(visited)
			return true
		}
		if parent <= 1 {
			// Reached init without meeting the tree. Not memoized:
			// the tree may still grow under this PID's ancestors.
			return false
		}

		t.mu.RLock()
		known = t.members[parent]
		t.mu.RUnlock()
		if known {
			t.memoize(visited)
			return true
		}

		visited = append(visited, parent)
		current = parent
	}
	return false
}

// ProcessPath returns the executable path of a tracked process.
func (t *Tracker) ProcessPath(pid int) (string, bool) {
	path, err := t.src.ExecutablePath(pid)
	if err != nil {
		return "", false
	}
	return path, true
}

// Refresh discards the membership set and rebuilds it from the root.
func (t *Tracker) Refresh() {
	t.rebuild()
}

// Snapshot returns the current members in ascending PID order, for
// diagnostics.
func (t *Tracker) Snapshot() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pids := make([]int, 0, len(t.members))
	for pid := range t.members {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

func (t *Tracker) memoize(pids []int) {
	t.mu.Lock()
	for _, pid := range pids {
		t.members[pid] = true
	}
	t.mu.Unlock()
}

// rebuild enumerates all descendants of the root breadth-first and
// replaces the membership set.
func (t *Tracker) rebuild() {
	members := map[int]bool{t.root: true}
	queue := []int{t.root}

	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]

		children, err := t.src.Children(pid)
		if err != nil {
			// Process may have exited mid-walk; skip silently.
			continue
		}
		for _, child := range children {
			if !members[child] {
				members[child] = true
				queue = append(queue, child)
			}
		}
	}

	t.mu.Lock()
	t.members = members
	t.mu.Unlock()
}
