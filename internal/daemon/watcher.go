// Package daemon implements the polling loop and its signal handling.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/usecase"
)

// DefaultPollInterval is the pause before each reconcile pass.
const DefaultPollInterval = 5 * time.Second

// WatcherConfig holds watcher configuration.
type WatcherConfig struct {
	PollInterval time.Duration // How long to wait between reconcile passes
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: DefaultPollInterval,
	}
}

// Watcher is the single-threaded main loop: it seeds the process set, starts
// the monitor, then periodically reconciles the monitor with a fresh snapshot.
type Watcher struct {
	config    WatcherConfig
	tracker   *usecase.Tracker
	lifecycle *usecase.Lifecycle
	logger    *zap.Logger
}

// NewWatcher creates a new watcher.
func NewWatcher(
	config WatcherConfig,
	tracker *usecase.Tracker,
	lifecycle *usecase.Lifecycle,
	logger *zap.Logger,
) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Watcher{
		config:    config,
		tracker:   tracker,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Run blocks until the context is canceled or a fatal lifecycle outcome occurs.
// On cancellation the live monitor is terminated and the context cause is
// returned (a *ShutdownSignal when a signal stopped the program).
func (w *Watcher) Run(ctx context.Context) error {
	snapshot := w.tracker.Seed()
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	if snapshot.Len() == 0 {
		w.logger.Info("no target processes found, waiting for them to start")
	} else if err := w.lifecycle.Start(snapshot); err != nil {
		return err
	}

	timer := time.NewTimer(w.config.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.shutdown(ctx)

		case <-w.monitorDone():
			if ctx.Err() != nil {
				return w.shutdown(ctx)
			}
			return w.lifecycle.CheckExited()

		case <-timer.C:
			err := w.lifecycle.Reconcile(ctx, w.tracker)
			if err == nil {
				timer.Reset(w.config.PollInterval)
				continue
			}
			// Stabilization interrupted by shutdown; fatal outcomes still win.
			if cause := context.Cause(ctx); cause != nil && errors.Is(err, cause) {
				return w.shutdown(ctx)
			}
			return err
		}
	}
}

// monitorDone returns the live monitor's Done channel, or nil (never ready)
// while no monitor is running.
func (w *Watcher) monitorDone() <-chan struct{} {
	if h := w.lifecycle.Handle(); h != nil {
		return h.Done()
	}
	return nil
}

func (w *Watcher) shutdown(ctx context.Context) error {
	w.lifecycle.Shutdown()
	cause := context.Cause(ctx)
	w.logger.Info("watcher stopping", zap.NamedError("cause", cause))
	return cause
}
