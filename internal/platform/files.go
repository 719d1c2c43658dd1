package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// DirMode and FileMode are the permissions used for synced content.
const (
	DirMode  os.FileMode = 0755
	FileMode os.FileMode = 0644
)

// EnsureDir creates dir and any missing parents. It succeeds when the
// directory already exists, including when a concurrent caller created it
// between our check and our mkdir.
func EnsureDir(fsys afero.Fs, dir string) error {
	if err := fsys.MkdirAll(dir, DirMode); err != nil {
		info, statErr := fsys.Stat(dir)
		if statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// Commit moves staging over destination. An existing destination is
// removed first; a missing one is not an error.
func Commit(fsys afero.Fs, staging, destination string) error {
	if err := fsys.Remove(destination); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", destination, err)
	}
	if err := fsys.Rename(staging, destination); err != nil {
		return fmt.Errorf("moving %s into place: %w", staging, err)
	}
	return nil
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(fsys afero.Fs, path string) error {
	if err := fsys.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
