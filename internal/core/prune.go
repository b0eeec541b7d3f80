package core

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// PruneEmptyDirs walks upward from dir toward root (exclusive), removing each
// directory that is empty. It stops at the first non-empty directory, at root,
// or at the first error, which is returned as a *PruneError. Directories that
// are already gone are stepped over, so running it again over a pruned chain
// does nothing.
func PruneEmptyDirs(fsys afero.Fs, root, dir string) (removed []string, err error) {
	root = filepath.Clean(root)
	dir = filepath.Clean(dir)

	for {
		if _, relErr := relUnder(root, dir); relErr != nil {
			return removed, nil
		}

		entries, readErr := afero.ReadDir(fsys, dir)
		if errors.Is(readErr, fs.ErrNotExist) {
			dir = filepath.Dir(dir)
			continue
		}
		if readErr != nil {
			return removed, &PruneError{Dir: dir, Err: readErr}
		}
		if len(entries) > 0 {
			return removed, nil
		}

		if rmErr := fsys.Remove(dir); rmErr != nil {
			return removed, &PruneError{Dir: dir, Err: rmErr}
		}
		removed = append(removed, dir)
		dir = filepath.Dir(dir)
	}
}
