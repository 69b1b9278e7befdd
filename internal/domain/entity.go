// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "sort"

// Snapshot is one enumeration pass worth of target process PIDs,
// in the order the process directory reported them.
// Snapshots are rebuilt on every pass and never mutated in place.
type Snapshot []int

// Len returns the number of processes in the snapshot.
func (s Snapshot) Len() int {
	return len(s)
}

// Equal reports whether both snapshots hold the same set of PIDs.
// Enumeration order is ignored: the OS does not promise a stable order
// across passes and a reordering alone must not respawn the monitor.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	a, b := s.sorted(), other.sorted()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

func (s Snapshot) sorted() []int {
	out := make([]int, len(s))
	copy(out, s)
	sort.Ints(out)
	return out
}

// Settings is the parsed content of the config store.
type Settings struct {
	ExpectedCount    int    // psCnt: adaptive expected process count (0 = unknown)
	TerminateSignals []int  // sigTerm: signals that shut the program down
	SilentSignals    []int  // sigNoLog: signals ignored without logging
	ProcessName      string // procName: exact name of the target service process
	MonitorCommand   string // monitorCmd: monitor command line, PIDs are appended as -p flags
}

// SignalAction is what the program does when a signal arrives.
type SignalAction int

const (
	// ActionLog records the signal and keeps running.
	ActionLog SignalAction = iota
	// ActionIgnore drops the signal without a log entry.
	ActionIgnore
	// ActionTerminate stops the monitor and ends the program.
	ActionTerminate
)

// String returns the action name used in log fields.
func (a SignalAction) String() string {
	switch a {
	case ActionTerminate:
		return "terminate"
	case ActionIgnore:
		return "ignore"
	default:
		return "log"
	}
}
