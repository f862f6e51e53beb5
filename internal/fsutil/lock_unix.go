//go:build darwin || linux

package fsutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// WithExclusiveLock runs fn while holding an exclusive flock on lockPath.
// Lock a sidecar file, not the document itself: the document is replaced by
// rename and flock is bound to the inode.
func WithExclusiveLock(lockPath string, fn func() error) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("opening lock file %s: %w", lockPath, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("acquiring lock %s: %w", lockPath, err)
	}
	defer func() { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }()

	return fn()
}
