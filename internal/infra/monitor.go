package infra

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// MonitorSpawnerImpl implements domain.MonitorSpawner by exec'ing the
// configured monitor command (top by default) on the operator's terminal.
type MonitorSpawnerImpl struct {
	name   string
	args   []string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// NewMonitorSpawner creates a spawner for command, split with shell quoting
// rules (e.g. `top -d 2`). The monitor inherits the process's stdio.
func NewMonitorSpawner(command string, logger *zap.Logger) (*MonitorSpawnerImpl, error) {
	return NewMonitorSpawnerWithIO(command, os.Stdin, os.Stdout, os.Stderr, logger)
}

// NewMonitorSpawnerWithIO creates a spawner with custom stdio (for testing).
func NewMonitorSpawnerWithIO(command string, stdin io.Reader, stdout, stderr io.Writer, logger *zap.Logger) (*MonitorSpawnerImpl, error) {
	parts, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid monitor command %q: %w", command, err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("monitor command is empty")
	}
	return &MonitorSpawnerImpl{
		name:   parts[0],
		args:   parts[1:],
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: logger,
	}, nil
}

// Command returns the executable and the fixed leading arguments.
func (s *MonitorSpawnerImpl) Command() (string, []string) {
	return s.name, s.args
}

// Spawn launches the monitor filtered to the snapshot's PIDs.
func (s *MonitorSpawnerImpl) Spawn(snapshot domain.Snapshot) (domain.MonitorHandle, error) {
	args := append(append([]string{}, s.args...), FilterArgs(snapshot)...)

	cmd := exec.Command(s.name, args...)
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if f, ok := s.stdout.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		s.logger.Warn("monitor output is not a terminal", zap.String("command", s.name))
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.name, err)
	}

	h := &execHandle{
		cmd:      cmd,
		snapshot: snapshot.Clone(),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go h.reap()

	return h, nil
}

// FilterArgs builds one "-p <pid>" pair per PID, in snapshot order.
func FilterArgs(snapshot domain.Snapshot) []string {
	args := make([]string, 0, 2*len(snapshot))
	for _, pid := range snapshot {
		args = append(args, "-p", strconv.Itoa(pid))
	}
	return args
}

// execHandle implements domain.MonitorHandle over an exec.Cmd.
type execHandle struct {
	cmd      *exec.Cmd
	snapshot domain.Snapshot

	mu       sync.Mutex
	exitCode int
	done     chan struct{}
}

// reap waits for the process and records its exit code.
func (h *execHandle) reap() {
	_ = h.cmd.Wait()

	h.mu.Lock()
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.mu.Unlock()

	close(h.done)
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Snapshot() domain.Snapshot {
	return h.snapshot
}

// Terminate sends SIGTERM. Already exited monitors are left alone.
func (h *execHandle) Terminate() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	err := h.cmd.Process.Signal(syscall.SIGTERM)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (h *execHandle) Wait(timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.ExitCode(), nil
	case <-timer.C:
		return -1, domain.ErrWaitTimeout
	}
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

func (h *execHandle) Status() string {
	select {
	case <-h.done:
		return "exited"
	default:
		return ProcessStatus(h.PID())
	}
}

// Ensure the implementations satisfy the domain interfaces.
var (
	_ domain.MonitorSpawner = (*MonitorSpawnerImpl)(nil)
	_ domain.MonitorHandle  = (*execHandle)(nil)
)
