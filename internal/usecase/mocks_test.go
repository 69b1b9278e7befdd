package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// mockProcessDirectory implements domain.ProcessDirectory for testing.
// Results are returned in order; the last one repeats.
type mockProcessDirectory struct {
	results [][]int
	err     error
	calls   int
	names   []string
}

func (m *mockProcessDirectory) FindByName(name string) ([]int, error) {
	m.calls++
	m.names = append(m.names, name)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) == 0 {
		return nil, nil
	}
	idx := m.calls - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	return append([]int(nil), m.results[idx]...), nil
}

// mockConfigStore implements domain.ConfigStore for testing
type mockConfigStore struct {
	settings *domain.Settings
	saved    []int
	setErr   error
}

func (m *mockConfigStore) Load() (*domain.Settings, error) {
	return m.settings, nil
}

func (m *mockConfigStore) SetExpectedCount(n int) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.saved = append(m.saved, n)
	return nil
}

func (m *mockConfigStore) Path() string {
	return "/tmp/psmon-test.conf"
}

// mockHandle implements domain.MonitorHandle for testing.
type mockHandle struct {
	pid      int
	snapshot domain.Snapshot

	// Behavior on Terminate
	exitOnTerminate bool
	terminateCode   int
	terminateErr    error
	status          string

	mu         sync.Mutex
	terminated int
	code       int
	done       chan struct{}
}

func newMockHandle(pid int, snapshot domain.Snapshot) *mockHandle {
	return &mockHandle{
		pid:             pid,
		snapshot:        snapshot,
		exitOnTerminate: true,
		status:          "sleep",
		code:            -1,
		done:            make(chan struct{}),
	}
}

// exit simulates the monitor process ending with code.
func (h *mockHandle) exit(code int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return
	default:
	}
	h.code = code
	close(h.done)
}

func (h *mockHandle) terminateCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

func (h *mockHandle) PID() int                  { return h.pid }
func (h *mockHandle) Snapshot() domain.Snapshot { return h.snapshot }
func (h *mockHandle) Done() <-chan struct{}     { return h.done }

func (h *mockHandle) Terminate() error {
	h.mu.Lock()
	h.terminated++
	h.mu.Unlock()
	if h.terminateErr != nil {
		return h.terminateErr
	}
	if h.exitOnTerminate {
		h.exit(h.terminateCode)
	}
	return nil
}

func (h *mockHandle) Wait(timeout time.Duration) (int, error) {
	select {
	case <-h.done:
		return h.ExitCode(), nil
	case <-time.After(timeout):
		return -1, domain.ErrWaitTimeout
	}
}

func (h *mockHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code
}

func (h *mockHandle) Status() string {
	select {
	case <-h.done:
		return "exited"
	default:
		return h.status
	}
}

// mockSpawner implements domain.MonitorSpawner for testing
type mockSpawner struct {
	spawnErr error
	nextPID  int
	handles  []*mockHandle

	// Applied to every spawned handle
	stubborn      bool
	terminateCode int
}

func (s *mockSpawner) Spawn(snapshot domain.Snapshot) (domain.MonitorHandle, error) {
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	s.nextPID++
	h := newMockHandle(1000+s.nextPID, snapshot.Clone())
	h.exitOnTerminate = !s.stubborn
	h.terminateCode = s.terminateCode
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *mockSpawner) last() *mockHandle {
	if len(s.handles) == 0 {
		return nil
	}
	return s.handles[len(s.handles)-1]
}

// staticSource implements SnapshotSource with a fixed answer.
type staticSource struct {
	snapshot domain.Snapshot
	err      error
}

func (s *staticSource) Stabilize(_ context.Context) (domain.Snapshot, error) {
	return s.snapshot, s.err
}

var errSpawn = errors.New("exec: \"top\": executable file not found in $PATH")
