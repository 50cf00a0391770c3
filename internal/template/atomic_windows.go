//go:build windows

package template

import (
	"os"
	"path/filepath"
)

// atomicWriteFile replaces the template file at path via a temp file and
// rename; renameio has no Windows support, so this is a best-effort swap.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return err
	}

	return nil
}
