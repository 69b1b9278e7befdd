package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/psmon/internal/daemon"
	"github.com/eliteGoblin/psmon/internal/infra"
	"github.com/eliteGoblin/psmon/internal/policy"
	"github.com/eliteGoblin/psmon/internal/usecase"
)

// Process exit codes.
const (
	exitOK          = 0
	exitConfig      = 1
	exitTimeout     = 2
	exitAbnormal    = 3
	exitSpawnFailed = 4
)

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	hintStyle  = lipgloss.NewStyle().Faint(true)
)

// exitCode maps the run outcome to the process exit code.
func exitCode(err error) int {
	var (
		sig      *daemon.ShutdownSignal
		cfgErr   *infra.ConfigError
		timeout  *usecase.TerminateTimeoutError
		abnormal *usecase.AbnormalExitError
		spawn    *usecase.SpawnError
	)

	switch {
	case err == nil, errors.Is(err, usecase.ErrMonitorClosed), errors.As(err, &sig):
		return exitOK
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &timeout):
		return exitTimeout
	case errors.As(err, &abnormal):
		return exitAbnormal
	case errors.As(err, &spawn):
		return exitSpawnFailed
	default:
		return exitConfig
	}
}

// report prints the operator-facing diagnostic for the run outcome.
func report(w io.Writer, err error) {
	var (
		sig      *daemon.ShutdownSignal
		cfgErr   *infra.ConfigError
		timeout  *usecase.TerminateTimeoutError
		abnormal *usecase.AbnormalExitError
		spawn    *usecase.SpawnError
	)

	switch {
	case err == nil, errors.Is(err, usecase.ErrMonitorClosed):
		return
	case errors.As(err, &sig):
		fmt.Fprintf(w, "\nCaught %s, monitor stopped.\n", policy.Name(sig.Signal))
	case errors.As(err, &timeout):
		fmt.Fprintln(w, errorStyle.Render("\nThe monitor was asked to terminate, but the timeout expired while waiting."))
		fmt.Fprintf(w, "Current process status of the monitor (pid %d) on exit was: %s.\n", timeout.PID, timeout.Status)
	case errors.As(err, &abnormal):
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("\nThe monitor exited with unusual return code of (%d).", abnormal.Code)))
		fmt.Fprintln(w, hintStyle.Render("A negative code means the monitor was killed by a signal."))
	case errors.As(err, &spawn):
		fmt.Fprintln(w, errorStyle.Render("\nCould not launch the monitor: "+spawn.Err.Error()))
		fmt.Fprintln(w, hintStyle.Render("Check monitorCmd in the config file."))
	case errors.As(err, &cfgErr):
		fmt.Fprintln(w, errorStyle.Render("\nCannot use config: "+cfgErr.Error()))
		fmt.Fprintln(w, hintStyle.Render("See psmon.conf.example for the required psCnt, sigTerm and sigNoLog keys."))
	default:
		fmt.Fprintln(w, errorStyle.Render("\nError: "+err.Error()))
	}
}
