package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// MaxLogBytes is the size above which the log file is discarded at startup.
const MaxLogBytes int64 = 100000

// logTimeLayout renders timestamps as "Oct 19 14:09:01".
const logTimeLayout = "Jan 02 15:04:05"

// RotateLog deletes the log file when it is larger than maxBytes so a fresh
// one is started. Checked once at startup. Returns true if the file was removed.
func RotateLog(fs domain.FileSystemManager, path string, maxBytes int64) (bool, error) {
	if !fs.Exists(path) {
		return false, nil
	}

	size, err := fs.Size(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}
	if size <= maxBytes {
		return false, nil
	}

	if err := fs.Delete(path); err != nil {
		return false, fmt.Errorf("failed to remove oversized log file: %w", err)
	}
	return true, nil
}

// NewFileLogger builds a debug-level console-encoded zap logger appending to path.
func NewFileLogger(path string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	config.Encoding = "console"
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{"stderr"}
	config.Sampling = nil // every signal and retry must be recorded
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(logTimeLayout)
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return config.Build()
}
