package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// Config store keys.
const (
	KeyExpectedCount    = "psCnt"
	KeyTerminateSignals = "sigTerm"
	KeySilentSignals    = "sigNoLog"
	KeyProcessName      = "procName"
	KeyMonitorCommand   = "monitorCmd"
)

// Defaults for the optional keys.
const (
	DefaultProcessName    = "bdsecd"
	DefaultMonitorCommand = "top"
)

var requiredKeys = []string{KeyExpectedCount, KeyTerminateSignals, KeySilentSignals}

// ConfigError describes an unreadable or malformed config store.
type ConfigError struct {
	Path string
	Line int // 1-based, 0 when not tied to a line
	Key  string
	Msg  string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("config %s:%d: %s", e.Path, e.Line, e.Msg)
	case e.Key != "":
		return fmt.Sprintf("config %s: key %q: %s", e.Path, e.Key, e.Msg)
	default:
		return fmt.Sprintf("config %s: %s", e.Path, e.Msg)
	}
}

// FileConfigStore implements domain.ConfigStore on a flat key=value file.
// Blank lines and '#' comments are kept verbatim on rewrite.
type FileConfigStore struct {
	path string
}

// NewFileConfigStore creates a config store backed by path.
func NewFileConfigStore(path string) domain.ConfigStore {
	return &FileConfigStore{path: path}
}

// Path returns the config file path.
func (s *FileConfigStore) Path() string {
	return s.path
}

// Load reads and validates the config file.
func (s *FileConfigStore) Load() (*domain.Settings, error) {
	lines, err := s.readLines()
	if err != nil {
		return nil, &ConfigError{Path: s.path, Msg: err.Error()}
	}

	values := make(map[string]string)
	for i, line := range lines {
		key, value, ok, err := parseLine(line)
		if err != nil {
			return nil, &ConfigError{Path: s.path, Line: i + 1, Msg: err.Error()}
		}
		if ok {
			values[key] = value
		}
	}

	for _, key := range requiredKeys {
		if _, ok := values[key]; !ok {
			return nil, &ConfigError{Path: s.path, Key: key, Msg: "missing required key"}
		}
	}

	count, err := strconv.Atoi(values[KeyExpectedCount])
	if err != nil || count < 0 {
		return nil, &ConfigError{Path: s.path, Key: KeyExpectedCount, Msg: "must be a non-negative integer"}
	}

	terminate, err := parseSignalList(values[KeyTerminateSignals])
	if err != nil {
		return nil, &ConfigError{Path: s.path, Key: KeyTerminateSignals, Msg: err.Error()}
	}
	silent, err := parseSignalList(values[KeySilentSignals])
	if err != nil {
		return nil, &ConfigError{Path: s.path, Key: KeySilentSignals, Msg: err.Error()}
	}

	settings := &domain.Settings{
		ExpectedCount:    count,
		TerminateSignals: terminate,
		SilentSignals:    silent,
		ProcessName:      values[KeyProcessName],
		MonitorCommand:   values[KeyMonitorCommand],
	}
	if settings.ProcessName == "" {
		settings.ProcessName = DefaultProcessName
	}
	if settings.MonitorCommand == "" {
		settings.MonitorCommand = DefaultMonitorCommand
	}

	return settings, nil
}

// SetExpectedCount rewrites the psCnt line in place (appending it if absent).
// The rewrite is a full read-modify-write under an exclusive lock.
func (s *FileConfigStore) SetExpectedCount(n int) error {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	lines, err := s.readLines()
	if err != nil {
		return err
	}

	replacement := KeyExpectedCount + "=" + strconv.Itoa(n)
	replaced := false
	for i, line := range lines {
		key, _, ok, _ := parseLine(line)
		if ok && key == KeyExpectedCount {
			lines[i] = replacement
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, replacement)
	}

	return s.atomicWrite(lines)
}

func (s *FileConfigStore) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

// atomicWrite writes the file atomically (write + rename).
func (s *FileConfigStore) atomicWrite(lines []string) error {
	data := []byte(strings.Join(lines, "\n") + "\n")

	mode := os.FileMode(0644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// parseLine splits a key=value line. ok is false for blank and comment lines.
func parseLine(line string) (key, value string, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false, nil
	}
	key, value, found := strings.Cut(trimmed, "=")
	if !found {
		return "", "", false, fmt.Errorf("expected key=value, got %q", trimmed)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false, fmt.Errorf("empty key in %q", trimmed)
	}
	return key, strings.TrimSpace(value), true, nil
}

// parseSignalList parses a comma-separated list of signal numbers. Empty is allowed.
func parseSignalList(value string) ([]int, error) {
	var sigs []int
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid signal number %q", field)
		}
		sigs = append(sigs, n)
	}
	return sigs, nil
}

// Ensure FileConfigStore implements domain.ConfigStore.
var _ domain.ConfigStore = (*FileConfigStore)(nil)
