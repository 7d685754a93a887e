// Package fileutil writes the local state files of the CLI.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WritePrivate atomically replaces path with data, readable and writable
// only by the owner. Missing parent directories are created with mode 0700.
func WritePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, 0600); err != nil {
		return err
	}
	// renameio applies perm through the umask; enforce the exact mode.
	return os.Chmod(path, 0600)
}
