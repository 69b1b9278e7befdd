// Package infra implements infrastructure concerns (process, filesystem, config, monitor).
package infra

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// ProcessDirectoryImpl implements domain.ProcessDirectory using gopsutil.
type ProcessDirectoryImpl struct{}

// NewProcessDirectory creates a new process directory.
func NewProcessDirectory() domain.ProcessDirectory {
	return &ProcessDirectoryImpl{}
}

// FindByName returns PIDs of processes whose name equals name exactly,
// in the order gopsutil lists them.
func (d *ProcessDirectoryImpl) FindByName(name string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		procName, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		if procName == name {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// ProcessStatus returns the OS status of pid as a comma-separated string
// (e.g. "running", "sleep", "zombie"), or "gone" if it no longer exists.
func ProcessStatus(pid int) string {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "gone"
	}
	status, err := p.Status()
	if err != nil || len(status) == 0 {
		return "unknown"
	}
	return strings.Join(status, ",")
}

// Ensure ProcessDirectoryImpl implements domain.ProcessDirectory.
var _ domain.ProcessDirectory = (*ProcessDirectoryImpl)(nil)
