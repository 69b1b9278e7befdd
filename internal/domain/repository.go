package domain

import "time"

// ProcessDirectory enumerates live OS processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessDirectory interface {
	// FindByName returns PIDs of all processes whose name equals name exactly.
	FindByName(name string) ([]int, error)
}

// ConfigStore is the flat key=value settings file.
type ConfigStore interface {
	// Load reads and validates the whole file.
	Load() (*Settings, error)

	// SetExpectedCount rewrites psCnt in place, keeping every other line.
	SetExpectedCount(n int) error

	// Path returns the backing file path.
	Path() string
}

// MonitorHandle is a running monitor process bound to one snapshot.
type MonitorHandle interface {
	// PID returns the OS process id of the monitor.
	PID() int

	// Snapshot returns the snapshot the monitor was launched for.
	Snapshot() Snapshot

	// Terminate asks the monitor to exit (SIGTERM).
	// Terminating an already exited monitor is a no-op.
	Terminate() error

	// Wait blocks until the monitor exits or the timeout elapses.
	// Returns the exit code, or ErrWaitTimeout.
	Wait(timeout time.Duration) (int, error)

	// Done is closed once the monitor has exited.
	Done() <-chan struct{}

	// ExitCode returns the exit code once Done is closed, -1 before.
	ExitCode() int

	// Status returns the externally observed process status (e.g. "running", "zombie").
	Status() string
}

// MonitorSpawner launches monitor processes.
type MonitorSpawner interface {
	// Spawn starts a monitor with one "-p <pid>" filter per snapshot entry, in order.
	Spawn(snapshot Snapshot) (MonitorHandle, error)
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// Size returns the file size in bytes.
	Size(path string) (int64, error)

	// Delete removes a file.
	Delete(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}
