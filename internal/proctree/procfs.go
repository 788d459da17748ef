package proctree

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ProcfsSource reads /proc to answer process-table queries. Linux-only
// at runtime.
type ProcfsSource struct{}

// Children reads /proc/<pid>/task/*/children for immediate child PIDs.
func (ProcfsSource) Children(pid int) ([]int, error) {
	taskDir := fmt.Sprintf("/proc/%d/task", pid)
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(taskDir, entry.Name(), "children"))
		if err != nil {
			continue
		}
		for _, field := range strings.Fields(string(data)) {
			if childPID, err := strconv.Atoi(field); err == nil {
				seen[childPID] = true
			}
		}
	}

	result := make([]int, 0, len(seen))
	for child := range seen {
		result = append(result, child)
	}
	return result, nil
}

// Parent reads the PPid field from /proc/<pid>/status.
func (ProcfsSource) Parent(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "PPid:"); ok {
			ppid, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, fmt.Errorf("proctree: parse PPid for %d: %w", pid, err)
			}
			return ppid, nil
		}
	}
	return 0, fmt.Errorf("proctree: no PPid in /proc/%d/status", pid)
}

// ExecutablePath resolves /proc/<pid>/exe, falling back to the first
// cmdline argument when the link is unreadable.
func (ProcfsSource) ExecutablePath(pid int) (string, error) {
	if path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid)); err == nil {
		return path, nil
	}
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return "", err
	}
	args := strings.Split(string(data), "\x00")
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("proctree: empty cmdline for %d", pid)
	}
	return args[0], nil
}
