// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/domain"
)

const (
	// DefaultRetryInterval is the wait between undercounted enumeration passes.
	DefaultRetryInterval = 3 * time.Second
	// DefaultRecalibrationThreshold is the number of consecutive undercounts
	// after which the expected count is considered stale.
	DefaultRecalibrationThreshold = 20
)

// TrackerConfig holds process set tracker configuration.
type TrackerConfig struct {
	ProcessName            string        // Exact name of the target service process
	RetryInterval          time.Duration // Backoff between non-matching passes
	RecalibrationThreshold int           // Consecutive failures before recalibrating
}

// DefaultTrackerConfig returns default tracker configuration for processName.
func DefaultTrackerConfig(processName string) TrackerConfig {
	return TrackerConfig{
		ProcessName:            processName,
		RetryInterval:          DefaultRetryInterval,
		RecalibrationThreshold: DefaultRecalibrationThreshold,
	}
}

// countMismatchError marks an enumeration pass that did not reach the expected count.
type countMismatchError struct {
	got, want int
}

func (e *countMismatchError) Error() string {
	return fmt.Sprintf("found %d processes, expected %d", e.got, e.want)
}

// Tracker produces stable snapshots of the target process group.
// It self-calibrates the expected process count: the count varies by service
// version and changes again on upgrade, so it is learned and persisted.
//
// Tracker is not safe for concurrent use; the watcher loop owns it.
type Tracker struct {
	config    TrackerConfig
	directory domain.ProcessDirectory
	store     domain.ConfigStore
	logger    *zap.Logger

	expected int // 0 = unknown
	stored   int // last value known to be in the config store
	failures int
	current  domain.Snapshot
	previous domain.Snapshot
}

// NewTracker creates a tracker. expected is the psCnt value loaded from store.
func NewTracker(
	config TrackerConfig,
	directory domain.ProcessDirectory,
	store domain.ConfigStore,
	expected int,
	logger *zap.Logger,
) *Tracker {
	if config.RecalibrationThreshold < 1 {
		config.RecalibrationThreshold = DefaultRecalibrationThreshold
	}
	return &Tracker{
		config:    config,
		directory: directory,
		store:     store,
		logger:    logger,
		expected:  expected,
		stored:    expected,
	}
}

// ExpectedCount returns the current expected process count (0 = unknown).
func (t *Tracker) ExpectedCount() int {
	return t.expected
}

// FailureCount returns the number of consecutive undercounted passes.
func (t *Tracker) FailureCount() int {
	return t.failures
}

// Current returns the most recent snapshot returned by Seed or Stabilize.
func (t *Tracker) Current() domain.Snapshot {
	return t.current
}

// Previous returns the snapshot Current replaced.
func (t *Tracker) Previous() domain.Snapshot {
	return t.previous
}

// Enumerate performs a single pass over the process directory.
// Directory errors yield an empty snapshot.
func (t *Tracker) Enumerate() domain.Snapshot {
	pids, err := t.directory.FindByName(t.config.ProcessName)
	if err != nil {
		t.logger.Debug("process enumeration failed",
			zap.String("name", t.config.ProcessName),
			zap.Error(err))
		return domain.Snapshot{}
	}
	return domain.Snapshot(pids)
}

// Seed performs the unconstrained startup enumeration. Its length becomes the
// expected count; the store is only rewritten when that differs from psCnt.
func (t *Tracker) Seed() domain.Snapshot {
	snap := t.Enumerate()
	t.adopt(snap)
	t.remember(snap)

	t.logger.Info("process set seeded",
		zap.String("name", t.config.ProcessName),
		zap.Ints("pids", snap),
		zap.Int("expected_count", t.expected))
	return snap
}

// Stabilize enumerates until the snapshot length equals the expected count,
// waiting RetryInterval between passes. After RecalibrationThreshold consecutive
// misses the expected count is treated as stale: it is replaced by the length of
// one unconstrained pass, persisted, and that snapshot is returned as is.
//
// Only ctx cancellation makes Stabilize return an error.
func (t *Tracker) Stabilize(ctx context.Context) (domain.Snapshot, error) {
	if t.expected == 0 {
		snap := t.Enumerate()
		t.adopt(snap)
		t.remember(snap)
		return snap, nil
	}

	want := t.expected
	operation := func() (domain.Snapshot, error) {
		snap := t.Enumerate()
		if snap.Len() == want {
			return snap, nil
		}
		t.failures++
		t.logger.Debug("process count does not match expectation, will retry",
			zap.Int("found", snap.Len()),
			zap.Int("expected", want),
			zap.Int("failures", t.failures))
		return nil, &countMismatchError{got: snap.Len(), want: want}
	}

	snap, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(t.config.RetryInterval)),
		backoff.WithMaxTries(uint(t.config.RecalibrationThreshold)),
		backoff.WithMaxElapsedTime(0)) // only the failure counter ends the retries
	if err == nil {
		t.failures = 0
		t.remember(snap)
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	return t.recalibrate(), nil
}

// recalibrate adopts a fresh unconstrained count as the new expectation.
func (t *Tracker) recalibrate() domain.Snapshot {
	stale := t.expected
	t.logger.Info("expected process count looks stale, recalibrating",
		zap.Int("expected", stale),
		zap.Int("failures", t.failures))

	t.expected = 0
	snap := t.Enumerate()
	t.expected = snap.Len()
	t.failures = 0
	t.persist()
	t.remember(snap)

	t.logger.Info("expected process count recalibrated",
		zap.Int("previous", stale),
		zap.Int("expected", t.expected))
	return snap
}

// adopt takes snap's length as the expected count, persisting it if it changed.
func (t *Tracker) adopt(snap domain.Snapshot) {
	t.expected = snap.Len()
	t.failures = 0
	if t.expected != t.stored {
		t.persist()
	}
}

func (t *Tracker) persist() {
	if err := t.store.SetExpectedCount(t.expected); err != nil {
		t.logger.Warn("failed to persist expected process count",
			zap.Int("expected", t.expected),
			zap.String("path", t.store.Path()),
			zap.Error(err))
		return
	}
	t.stored = t.expected
	t.logger.Debug("expected process count persisted",
		zap.Int("expected", t.expected),
		zap.String("path", t.store.Path()))
}

func (t *Tracker) remember(snap domain.Snapshot) {
	t.previous = t.current
	t.current = snap
}
