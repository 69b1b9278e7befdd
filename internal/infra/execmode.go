package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser runs as a regular user with files under ~/.psmon
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root with files under /etc and /var/log
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig holds default paths based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	ConfigPath string // key=value config store
	LogPath    string // event log
	IsRoot     bool
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			ConfigPath: "/etc/psmon/psmon.conf",
			LogPath:    "/var/log/psmon.log",
			IsRoot:     true,
		}
	}

	home := GetRealUserHome()
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		ConfigPath: filepath.Join(home, ".psmon", "psmon.conf"),
		LogPath:    filepath.Join(home, ".psmon", "psmon.log"),
		IsRoot:     false,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
