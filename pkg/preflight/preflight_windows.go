//go:build windows

package preflight

import (
	"fmt"
	"os"
)

// checkDirWritable creates and removes a temporary file in dir. Windows ACLs
// are not reflected in permission bits, so a real write is the only reliable probe.
func checkDirWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".docsync-writetest-*.tmp")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return nil
}
