// Package policy maps incoming OS signals to the action the program takes.
// The mapping is loaded once from the config store and never changes afterwards.
package policy

import (
	"fmt"
	"sort"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// Signal number ranges. The real-time range is the Linux one; 32 and 33 belong to libc.
const (
	maxStandardSignal = 31
	minRealtimeSignal = 34
	maxRealtimeSignal = 64
)

// reserved signals cannot be caught, blocked or ignored.
var reserved = map[syscall.Signal]bool{
	unix.SIGKILL: true,
	unix.SIGSTOP: true,
}

// optIn signals are only registered when the config names them.
// SIGURG is used by the Go runtime for goroutine preemption.
var optIn = map[syscall.Signal]bool{
	unix.SIGURG: true,
}

// RejectedSignal is a configured signal number that cannot be registered.
type RejectedSignal struct {
	Number int
	Reason string
}

func (r RejectedSignal) String() string {
	return fmt.Sprintf("signal %d: %s", r.Number, r.Reason)
}

// SignalPolicy maps signal numbers to actions. Unlisted signals are logged.
type SignalPolicy struct {
	actions map[int]domain.SignalAction
}

// NewSignalPolicy builds a policy. A number listed in both lists terminates.
func NewSignalPolicy(terminate, silent []int) *SignalPolicy {
	actions := make(map[int]domain.SignalAction, len(terminate)+len(silent))
	for _, n := range silent {
		actions[n] = domain.ActionIgnore
	}
	for _, n := range terminate {
		actions[n] = domain.ActionTerminate
	}
	return &SignalPolicy{actions: actions}
}

// FromSettings builds the policy from the sigTerm and sigNoLog keys.
func FromSettings(s *domain.Settings) *SignalPolicy {
	return NewSignalPolicy(s.TerminateSignals, s.SilentSignals)
}

// Action returns what to do for sig.
func (p *SignalPolicy) Action(sig int) domain.SignalAction {
	if action, ok := p.actions[sig]; ok {
		return action
	}
	return domain.ActionLog
}

// Signals returns every signal to register: all catchable standard signals plus
// any configured number, minus the reserved ones. Configured numbers that cannot
// be registered are returned in rejected, once each, in ascending order.
func (p *SignalPolicy) Signals() (sigs []syscall.Signal, rejected []RejectedSignal) {
	seen := make(map[syscall.Signal]bool)

	for n := 1; n <= maxStandardSignal; n++ {
		sig := syscall.Signal(n)
		if reserved[sig] || unix.SignalName(sig) == "" {
			continue
		}
		if optIn[sig] {
			if _, configured := p.actions[n]; !configured {
				continue
			}
		}
		seen[sig] = true
		sigs = append(sigs, sig)
	}

	configured := make([]int, 0, len(p.actions))
	for n := range p.actions {
		configured = append(configured, n)
	}
	sort.Ints(configured)

	for _, n := range configured {
		sig := syscall.Signal(n)
		switch {
		case n <= 0:
			rejected = append(rejected, RejectedSignal{Number: n, Reason: "not a valid signal number"})
		case reserved[sig]:
			rejected = append(rejected, RejectedSignal{Number: n, Reason: fmt.Sprintf("%s cannot be caught", unix.SignalName(sig))})
		case seen[sig]:
			// already registered
		case n >= minRealtimeSignal && n <= maxRealtimeSignal:
			seen[sig] = true
			sigs = append(sigs, sig)
		default:
			rejected = append(rejected, RejectedSignal{Number: n, Reason: "not a valid signal number"})
		}
	}

	return sigs, rejected
}

// Name returns a printable name for sig, e.g. "SIGTERM" or "signal 40".
func Name(sig int) string {
	if name := unix.SignalName(syscall.Signal(sig)); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", sig)
}
