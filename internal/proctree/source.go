package proctree

// Source answers process-table questions for the Tracker.
// The procfs implementation covers Linux; tests inject a fake.
type Source interface {
	// Children returns the direct child PIDs of pid.
	Children(pid int) ([]int, error)
	// Parent returns the parent PID of pid. An error means the process
	// could not be inspected, typically because it already exited.
	Parent(pid int) (int, error)
	// ExecutablePath returns the executable path of pid, best effort.
	ExecutablePath(pid int) (string, error)
}
