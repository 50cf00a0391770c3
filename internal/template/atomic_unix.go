//go:build !windows

package template

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile replaces the template file at path in a single rename
// so a watcher or concurrent reader never observes a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
