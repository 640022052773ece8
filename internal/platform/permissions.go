package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// chmod is skipped on Windows, which has no Unix permission bits.
func chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// WriteFileAtomic replaces path with data. The bytes go to a synced temp
// file in the same directory, which gets perm before it is renamed into
// place, so readers see either the old file or the complete new one and a
// secret is never readable under looser bits. The temp file is removed on
// failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(name)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = chmod(name, perm); err != nil {
		return err
	}
	return os.Rename(name, path)
}
