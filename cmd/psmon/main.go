// Package main is the CLI entry point for psmon.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/psmon/internal/daemon"
	"github.com/eliteGoblin/psmon/internal/infra"
	"github.com/eliteGoblin/psmon/internal/policy"
	"github.com/eliteGoblin/psmon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	err := rootCmd.Execute()
	report(os.Stderr, err)
	os.Exit(exitCode(err))
}

var rootCmd = &cobra.Command{
	Use:   "psmon",
	Short: "Adaptive top view of a service's processes",
	Long: `psmon keeps a top view focused on every process of one named service.
It polls the process table, waits for the process count to settle after a
restart or upgrade, and respawns top whenever the set of PIDs changes.

The expected process count is learned and stored in the config file (psCnt).
psmon runs until it receives a signal listed in sigTerm.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE:          runMonitor,
}

var (
	configPath string
	logPath    string
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file (default ~/.psmon/psmon.conf, /etc/psmon/psmon.conf as root)")
	rootCmd.Flags().StringVar(&logPath, "log-file", "", "Log file (default ~/.psmon/psmon.log, /var/log/psmon.log as root)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	execMode := infra.DetectExecMode()
	fs := infra.NewFileSystemManager()
	if configPath == "" {
		configPath = execMode.ConfigPath
	}
	if logPath == "" {
		logPath = execMode.LogPath
	}
	configPath = fs.ExpandHome(configPath)
	logPath = fs.ExpandHome(logPath)

	rotated, rotateErr := infra.RotateLog(fs, logPath, infra.MaxLogBytes)

	logger := createLogger(logPath)
	defer func() { _ = logger.Sync() }()

	if rotateErr != nil {
		logger.Warn("log rotation failed", zap.Error(rotateErr))
	}
	if rotated {
		logger.Info("log file exceeded size limit, started a new one",
			zap.Int64("max_bytes", infra.MaxLogBytes))
	}
	logger.Info("psmon started",
		zap.String("version", Version),
		zap.String("mode", execMode.Mode.String()),
		zap.String("config", configPath))

	store := infra.NewFileConfigStore(configPath)
	settings, err := store.Load()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	spawner, err := infra.NewMonitorSpawner(settings.MonitorCommand, logger)
	if err != nil {
		cfgErr := &infra.ConfigError{Path: configPath, Key: infra.KeyMonitorCommand, Msg: err.Error()}
		logger.Error("failed to load config", zap.Error(cfgErr))
		return cfgErr
	}

	tracker := usecase.NewTracker(
		usecase.DefaultTrackerConfig(settings.ProcessName),
		infra.NewProcessDirectory(),
		store,
		settings.ExpectedCount,
		logger,
	)
	lifecycle := usecase.NewLifecycle(usecase.DefaultLifecycleConfig(), spawner, logger)
	watcher := daemon.NewWatcher(daemon.DefaultWatcherConfig(), tracker, lifecycle, logger)

	// Set up signal-driven shutdown
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	router := daemon.NewSignalRouter(policy.FromSettings(settings), cancel, logger)
	router.Start()
	defer router.Stop()

	err = watcher.Run(ctx)
	logger.Info("psmon exiting", zap.NamedError("reason", err))
	return err
}

func createLogger(path string) *zap.Logger {
	logger, err := infra.NewFileLogger(path)
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
		logger.Warn("file logging unavailable", zap.String("path", path), zap.Error(err))
	}
	return logger
}
