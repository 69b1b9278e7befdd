package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/psmon/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	home, _ := os.UserHomeDir()
	return &FileSystemManagerImpl{homeDir: home}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Stat(fm.ExpandHome(path))
	return err == nil
}

// Size returns the size of a regular file.
func (fm *FileSystemManagerImpl) Size(path string) (int64, error) {
	info, err := os.Stat(fm.ExpandHome(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Delete removes a file. A missing file is not an error.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	err := os.Remove(fm.ExpandHome(path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
