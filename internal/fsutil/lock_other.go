//go:build !darwin && !linux

package fsutil

// WithExclusiveLock runs fn without cross-process locking on platforms
// without flock.
func WithExclusiveLock(_ string, fn func() error) error {
	return fn()
}
