package core

import (
	"errors"
	"fmt"
)

// ErrInvalidPath means a path does not lie under the root it was reported for.
var ErrInvalidPath = errors.New("path is not under watched root")

// UploadError wraps a failed put or delete against the remote store.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("remote operation on %s failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// LocalReadError means a file vanished or became unreadable after it was reported.
type LocalReadError struct {
	Path string
	Err  error
}

func (e *LocalReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *LocalReadError) Unwrap() error { return e.Err }

// PruneError stops the empty-directory walk. Never fatal.
type PruneError struct {
	Dir string
	Err error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("prune %s: %v", e.Dir, e.Err)
}

func (e *PruneError) Unwrap() error { return e.Err }
