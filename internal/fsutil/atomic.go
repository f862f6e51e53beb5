package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// WriteFileAtomic writes data to a temp file next to the target, fsyncs it,
// and renames it over dir/name. Readers see either the old or the new
// document, never a partial one. It returns the final path.
func WriteFileAtomic(dir, name string, data []byte, perm os.FileMode) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, name)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", name, time.Now().UnixNano()))

	if err := writeSynced(tmp, data, perm); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("renaming %s: %w", tmp, err)
	}
	if err := syncDir(dir); err != nil {
		return "", err
	}
	return target, nil
}

func writeSynced(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Sync()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening directory %s: %w", dir, err)
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		// Some filesystems refuse fsync on directories.
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTSUP) {
			return nil
		}
		return fmt.Errorf("syncing directory %s: %w", dir, err)
	}
	return nil
}
