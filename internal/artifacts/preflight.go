//go:build !windows

package artifacts

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the free-space floor below which a staging directory is
// considered unusable for new uploads.
const minFreeBytes = 256 * 1024 * 1024

// CheckDir verifies that an artifact directory is accessible, writable, and
// has a minimum of free space. Used as a preflight before the daemon accepts
// work.
func CheckDir(path string) error {
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("directory %s is not read/write accessible: %w", path, err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	if free < minFreeBytes {
		return fmt.Errorf("directory %s has only %d bytes free (need %d)", path, free, uint64(minFreeBytes))
	}
	return nil
}
