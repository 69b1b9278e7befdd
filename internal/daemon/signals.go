package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/domain"
	"github.com/eliteGoblin/psmon/internal/policy"
)

// ShutdownSignal is the run context's cancel cause when a terminate-class
// signal arrives.
type ShutdownSignal struct {
	Signal int
}

func (e *ShutdownSignal) Error() string {
	return "terminated by " + policy.Name(e.Signal)
}

// SignalRouter drains OS signals on its own goroutine and applies the signal
// policy. It never touches the monitor: terminate-class signals cancel the run
// context and the watcher loop does the shutdown.
type SignalRouter struct {
	policy   *policy.SignalPolicy
	shutdown context.CancelCauseFunc
	logger   *zap.Logger

	sigCh    chan os.Signal
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSignalRouter creates a router that calls shutdown on terminate-class signals.
func NewSignalRouter(p *policy.SignalPolicy, shutdown context.CancelCauseFunc, logger *zap.Logger) *SignalRouter {
	return &SignalRouter{
		policy:   p,
		shutdown: shutdown,
		logger:   logger,
		sigCh:    make(chan os.Signal, 8),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start registers every catchable signal and begins draining them.
// Signals that cannot be registered are reported once each and skipped.
func (r *SignalRouter) Start() {
	sigs, rejected := r.policy.Signals()
	for _, rej := range rejected {
		r.logger.Warn("cannot register signal handler",
			zap.Int("signal", rej.Number),
			zap.String("reason", rej.Reason))
	}

	osSigs := make([]os.Signal, len(sigs))
	for i, s := range sigs {
		osSigs[i] = s
	}
	signal.Notify(r.sigCh, osSigs...)

	r.logger.Debug("signal handlers registered", zap.Int("count", len(osSigs)))

	go r.drain()
}

// Stop unregisters the handlers and waits for the drain goroutine to exit.
func (r *SignalRouter) Stop() {
	r.stopOnce.Do(func() {
		signal.Stop(r.sigCh)
		close(r.done)
	})
	<-r.stopped
}

func (r *SignalRouter) drain() {
	defer close(r.stopped)
	for {
		select {
		case sig := <-r.sigCh:
			r.Handle(sig)
		case <-r.done:
			return
		}
	}
}

// Handle applies the policy to one delivered signal and returns the action taken.
func (r *SignalRouter) Handle(sig os.Signal) domain.SignalAction {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return domain.ActionIgnore
	}
	n := int(s)

	action := r.policy.Action(n)
	switch action {
	case domain.ActionTerminate:
		r.logger.Info("termination signal received",
			zap.String("signal", policy.Name(n)),
			zap.Int("number", n))
		r.shutdown(&ShutdownSignal{Signal: n})
	case domain.ActionLog:
		r.logger.Info("signal received",
			zap.String("signal", policy.Name(n)),
			zap.Int("number", n))
	}
	return action
}
