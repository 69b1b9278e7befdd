package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// DefaultTerminateTimeout bounds the wait for a terminated monitor to exit.
const DefaultTerminateTimeout = 2 * time.Second

// ErrMonitorClosed is returned when the monitor exited on its own with code 0
// (the operator quit it).
var ErrMonitorClosed = errors.New("monitor closed by operator")

// SpawnError means the monitor executable could not be launched.
type SpawnError struct {
	Snapshot domain.Snapshot
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to launch monitor for %v: %v", []int(e.Snapshot), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// TerminateTimeoutError means the monitor did not exit after a termination request.
type TerminateTimeoutError struct {
	PID     int
	Status  string // externally observed process status at the deadline
	Timeout time.Duration
}

func (e *TerminateTimeoutError) Error() string {
	return fmt.Sprintf("monitor (pid %d) still alive %s after termination request, status %q",
		e.PID, e.Timeout, e.Status)
}

// AbnormalExitError means the monitor exited with a non-zero code.
type AbnormalExitError struct {
	PID  int
	Code int
}

func (e *AbnormalExitError) Error() string {
	return fmt.Sprintf("monitor (pid %d) exited with unusual code %d", e.PID, e.Code)
}

// SnapshotSource yields stabilized snapshots. Implemented by *Tracker.
type SnapshotSource interface {
	Stabilize(ctx context.Context) (domain.Snapshot, error)
}

// LifecycleConfig holds monitor lifecycle configuration.
type LifecycleConfig struct {
	TerminateTimeout time.Duration // How long to wait for a terminated monitor to exit
}

// DefaultLifecycleConfig returns default lifecycle configuration.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		TerminateTimeout: DefaultTerminateTimeout,
	}
}

// Lifecycle keeps exactly one monitor alive, bound to the latest stabilized
// snapshot, and replaces it when the snapshot changes. A replacement is only
// spawned after the old monitor has exited cleanly.
//
// Lifecycle is not safe for concurrent use; the watcher loop owns it.
type Lifecycle struct {
	config  LifecycleConfig
	spawner domain.MonitorSpawner
	logger  *zap.Logger
	handle  domain.MonitorHandle
}

// NewLifecycle creates a monitor lifecycle.
func NewLifecycle(config LifecycleConfig, spawner domain.MonitorSpawner, logger *zap.Logger) *Lifecycle {
	if config.TerminateTimeout <= 0 {
		config.TerminateTimeout = DefaultTerminateTimeout
	}
	return &Lifecycle{
		config:  config,
		spawner: spawner,
		logger:  logger,
	}
}

// Handle returns the live monitor, or nil before Start.
func (l *Lifecycle) Handle() domain.MonitorHandle {
	return l.handle
}

// Start spawns the first monitor for snapshot.
func (l *Lifecycle) Start(snapshot domain.Snapshot) error {
	if l.handle != nil {
		return fmt.Errorf("monitor already running (pid %d)", l.handle.PID())
	}
	if err := l.spawn(snapshot); err != nil {
		return err
	}
	l.logger.Info("monitor started",
		zap.Int("pid", l.handle.PID()),
		zap.Ints("pids", snapshot))
	return nil
}

// Reconcile stabilizes a fresh snapshot and, if it differs from the one the
// live monitor is bound to, terminates the monitor and spawns a replacement.
// An empty snapshot leaves no monitor running: an unfiltered monitor would
// show every process on the host.
//
// Returned errors: the context cause when ctx is canceled during stabilization;
// *TerminateTimeoutError, *AbnormalExitError and *SpawnError are fatal.
func (l *Lifecycle) Reconcile(ctx context.Context, source SnapshotSource) error {
	snapshot, err := source.Stabilize(ctx)
	if err != nil {
		return err
	}

	if l.handle == nil {
		if snapshot.Len() == 0 {
			return nil
		}
		return l.Start(snapshot)
	}

	if snapshot.Equal(l.handle.Snapshot()) {
		return nil
	}

	old := l.handle
	l.logger.Debug("change in monitored processes detected",
		zap.Ints("old_pids", old.Snapshot()),
		zap.Ints("new_pids", snapshot))

	if err := l.stop(old); err != nil {
		return err
	}
	l.logger.Debug("monitor terminated", zap.Int("pid", old.PID()))
	l.handle = nil

	if snapshot.Len() == 0 {
		l.logger.Info("no target processes running, monitor paused",
			zap.Ints("old_pids", old.Snapshot()))
		return nil
	}

	if err := l.spawn(snapshot); err != nil {
		return err
	}
	l.logger.Info("monitor re-initialized for new process set",
		zap.Int("pid", l.handle.PID()),
		zap.Ints("pids", snapshot))
	return nil
}

// CheckExited reports how a monitor that exited on its own ended:
// ErrMonitorClosed for code 0, *AbnormalExitError otherwise.
func (l *Lifecycle) CheckExited() error {
	code := l.handle.ExitCode()
	if code == 0 {
		l.logger.Info("monitor closed by operator", zap.Int("pid", l.handle.PID()))
		return ErrMonitorClosed
	}
	l.logger.Debug("monitor exited unexpectedly",
		zap.Int("pid", l.handle.PID()),
		zap.Int("exit_code", code))
	return &AbnormalExitError{PID: l.handle.PID(), Code: code}
}

// Shutdown asks the live monitor to exit and waits up to the terminate timeout.
// Safe in any state: no monitor, running, or already exited.
func (l *Lifecycle) Shutdown() {
	if l.handle == nil {
		return
	}
	if err := l.handle.Terminate(); err != nil {
		l.logger.Debug("monitor termination request failed",
			zap.Int("pid", l.handle.PID()),
			zap.Error(err))
		return
	}
	if _, err := l.handle.Wait(l.config.TerminateTimeout); err != nil {
		l.logger.Debug("monitor did not exit during shutdown",
			zap.Int("pid", l.handle.PID()),
			zap.String("status", l.handle.Status()))
	}
}

// stop terminates h and waits for a clean exit.
func (l *Lifecycle) stop(h domain.MonitorHandle) error {
	if err := h.Terminate(); err != nil {
		l.logger.Debug("monitor termination request failed",
			zap.Int("pid", h.PID()),
			zap.Error(err))
	}

	code, err := h.Wait(l.config.TerminateTimeout)
	if errors.Is(err, domain.ErrWaitTimeout) {
		status := h.Status()
		l.logger.Debug("monitor timed out while waiting for termination",
			zap.Int("pid", h.PID()),
			zap.String("status", status))
		return &TerminateTimeoutError{PID: h.PID(), Status: status, Timeout: l.config.TerminateTimeout}
	}
	if err != nil {
		return err
	}

	if code != 0 {
		l.logger.Debug("unusual monitor exit code, stopping",
			zap.Int("pid", h.PID()),
			zap.Int("exit_code", code))
		return &AbnormalExitError{PID: h.PID(), Code: code}
	}
	return nil
}

func (l *Lifecycle) spawn(snapshot domain.Snapshot) error {
	h, err := l.spawner.Spawn(snapshot)
	if err != nil {
		l.logger.Error("failed to launch monitor", zap.Ints("pids", snapshot), zap.Error(err))
		return &SpawnError{Snapshot: snapshot, Err: err}
	}
	l.handle = h
	return nil
}
