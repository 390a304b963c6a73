//go:build !windows

package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkDirWritable asks the kernel whether the current user may create
// entries in dir, without modifying the filesystem.
func checkDirWritable(dir string) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	return nil
}
