// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// FakeService runs copies of /bin/sleep under a unique executable name so the
// process directory sees a service group that no other process shares.
type FakeService struct {
	Name   string
	binary string
	procs  []*exec.Cmd
}

// NewFakeService installs the fake service binary into dir.
// The name stays under 15 characters so the kernel does not truncate it.
func NewFakeService(dir string) (*FakeService, error) {
	name := fmt.Sprintf("psfake%d", os.Getpid()%1000000)
	binary := filepath.Join(dir, name)

	sleep, err := exec.LookPath("sleep")
	if err != nil {
		return nil, err
	}
	if err := copyFile(sleep, binary); err != nil {
		return nil, fmt.Errorf("failed to install fake service: %w", err)
	}

	return &FakeService{Name: name, binary: binary}, nil
}

// Start launches n more service processes.
func (f *FakeService) Start(n int) error {
	for i := 0; i < n; i++ {
		cmd := exec.Command(f.binary, "300")
		if err := cmd.Start(); err != nil {
			return err
		}
		f.procs = append(f.procs, cmd)
	}
	return nil
}

// StopOne kills the most recently started process and reaps it.
func (f *FakeService) StopOne() error {
	if len(f.procs) == 0 {
		return nil
	}
	cmd := f.procs[len(f.procs)-1]
	f.procs = f.procs[:len(f.procs)-1]
	if err := cmd.Process.Kill(); err != nil {
		return err
	}
	_ = cmd.Wait()
	return nil
}

// StopAll kills every running service process.
func (f *FakeService) StopAll() {
	for len(f.procs) > 0 {
		_ = f.StopOne()
	}
}

// PIDs returns the PIDs of the running service processes.
func (f *FakeService) PIDs() []int {
	pids := make([]int, len(f.procs))
	for i, cmd := range f.procs {
		pids[i] = cmd.Process.Pid
	}
	return pids
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// WriteConfig writes a psmon config file with the given expected count.
func WriteConfig(path, procName, monitorCmd string, expected int) error {
	content := fmt.Sprintf(`# psmon integration config
psCnt=%d
sigTerm=1,2,3,15
sigNoLog=17,28
procName=%s
monitorCmd=%s
`, expected, procName, monitorCmd)
	return os.WriteFile(path, []byte(content), 0644)
}

// FakeMonitor is a monitor command that runs until SIGTERM and then exits 0.
const FakeMonitor = `sh -c 'trap "exit 0" TERM; while :; do sleep 0.1; done' sh`
