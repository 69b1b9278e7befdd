//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/daemon"
	"github.com/eliteGoblin/psmon/internal/domain"
	"github.com/eliteGoblin/psmon/internal/infra"
	"github.com/eliteGoblin/psmon/internal/usecase"
	"github.com/eliteGoblin/psmon/test/fixtures"
)

var _ = Describe("Psmon", func() {
	var (
		tmpDir     string
		configPath string
		service    *fixtures.FakeService
		store      domain.ConfigStore
		logger     *zap.Logger
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "psmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		service, err = fixtures.NewFakeService(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		configPath = filepath.Join(tmpDir, "psmon.conf")
		store = infra.NewFileConfigStore(configPath)
		logger = zap.NewNop()
	})

	AfterEach(func() {
		service.StopAll()
		os.RemoveAll(tmpDir)
	})

	newTracker := func(expected int) *usecase.Tracker {
		cfg := usecase.DefaultTrackerConfig(service.Name)
		cfg.RetryInterval = 10 * time.Millisecond
		cfg.RecalibrationThreshold = 3
		return usecase.NewTracker(cfg, infra.NewProcessDirectory(), store, expected, logger)
	}

	newSpawner := func() domain.MonitorSpawner {
		spawner, err := infra.NewMonitorSpawnerWithIO(fixtures.FakeMonitor, nil, nil, nil, logger)
		Expect(err).NotTo(HaveOccurred())
		return spawner
	}

	storedCount := func() int {
		settings, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		return settings.ExpectedCount
	}

	Describe("Process set tracking", func() {
		Context("when no count has been learned yet", func() {
			It("should learn and persist the group size at startup", func() {
				Expect(fixtures.WriteConfig(configPath, service.Name, fixtures.FakeMonitor, 0)).To(Succeed())
				Expect(service.Start(3)).To(Succeed())

				tracker := newTracker(0)
				snap := tracker.Seed()

				Expect([]int(snap)).To(ConsistOf(service.PIDs()))
				Expect(tracker.ExpectedCount()).To(Equal(3))
				Expect(storedCount()).To(Equal(3))
			})
		})

		Context("when the group shrinks for good", func() {
			It("should recalibrate and rewrite psCnt", func() {
				Expect(fixtures.WriteConfig(configPath, service.Name, fixtures.FakeMonitor, 3)).To(Succeed())
				Expect(service.Start(3)).To(Succeed())

				tracker := newTracker(3)
				Expect(service.StopOne()).To(Succeed())

				snap, err := tracker.Stabilize(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect([]int(snap)).To(ConsistOf(service.PIDs()))
				Expect(tracker.ExpectedCount()).To(Equal(2))
				Expect(storedCount()).To(Equal(2))
			})
		})

		Context("when the group is complete", func() {
			It("should keep the stored count", func() {
				Expect(fixtures.WriteConfig(configPath, service.Name, fixtures.FakeMonitor, 2)).To(Succeed())
				Expect(service.Start(2)).To(Succeed())

				tracker := newTracker(2)
				snap, err := tracker.Stabilize(context.Background())

				Expect(err).NotTo(HaveOccurred())
				Expect(snap.Len()).To(Equal(2))
				Expect(tracker.FailureCount()).To(Equal(0))

				data, err := os.ReadFile(configPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(ContainSubstring("# psmon integration config"))
				Expect(string(data)).To(ContainSubstring("psCnt=2"))
			})
		})
	})

	Describe("Monitor lifecycle", func() {
		It("should replace the monitor when the process set changes", func() {
			Expect(fixtures.WriteConfig(configPath, service.Name, fixtures.FakeMonitor, 0)).To(Succeed())
			Expect(service.Start(3)).To(Succeed())

			tracker := newTracker(0)
			lifecycle := usecase.NewLifecycle(usecase.DefaultLifecycleConfig(), newSpawner(), logger)
			Expect(lifecycle.Start(tracker.Seed())).To(Succeed())
			first := lifecycle.Handle()

			Expect(service.StopOne()).To(Succeed())
			Expect(lifecycle.Reconcile(context.Background(), tracker)).To(Succeed())

			second := lifecycle.Handle()
			Expect(second.PID()).NotTo(Equal(first.PID()))
			Expect([]int(second.Snapshot())).To(ConsistOf(service.PIDs()))
			Eventually(first.Done()).Should(BeClosed())
			Expect(first.ExitCode()).To(Equal(0))

			lifecycle.Shutdown()
			Eventually(second.Done(), 3*time.Second).Should(BeClosed())
		})
	})

	Describe("Watcher", func() {
		It("should stop the monitor when a termination signal arrives", func() {
			Expect(fixtures.WriteConfig(configPath, service.Name, fixtures.FakeMonitor, 0)).To(Succeed())
			Expect(service.Start(2)).To(Succeed())

			settings, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.ProcessName).To(Equal(service.Name))

			spawned := make(chan domain.MonitorHandle, 4)
			spawner := &notifyingSpawner{MonitorSpawner: newSpawner(), spawned: spawned}
			watcher := daemon.NewWatcher(
				daemon.WatcherConfig{PollInterval: 50 * time.Millisecond},
				newTracker(settings.ExpectedCount),
				usecase.NewLifecycle(usecase.DefaultLifecycleConfig(), spawner, logger),
				logger,
			)

			ctx, cancel := context.WithCancelCause(context.Background())
			result := make(chan error, 1)
			go func() { result <- watcher.Run(ctx) }()

			var monitor domain.MonitorHandle
			Eventually(spawned, 3*time.Second).Should(Receive(&monitor))
			Expect([]int(monitor.Snapshot())).To(ConsistOf(service.PIDs()))
			cancel(&daemon.ShutdownSignal{Signal: int(syscall.SIGTERM)})

			var runErr error
			Eventually(result, 5*time.Second).Should(Receive(&runErr))
			Expect(runErr).To(MatchError(ContainSubstring("terminated by SIGTERM")))
			Expect(monitor.Done()).To(BeClosed())
			Expect(monitor.ExitCode()).To(Equal(0))
		})
	})
})

// notifyingSpawner reports every monitor it launches.
type notifyingSpawner struct {
	domain.MonitorSpawner
	spawned chan<- domain.MonitorHandle
}

func (s *notifyingSpawner) Spawn(snapshot domain.Snapshot) (domain.MonitorHandle, error) {
	h, err := s.MonitorSpawner.Spawn(snapshot)
	if err == nil {
		s.spawned <- h
	}
	return h, err
}
