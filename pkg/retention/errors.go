package retention

import (
	"errors"
	"fmt"
)

// ErrYearDirNotFound is returned by Prune when no year directory can be
// identified in the path. Nothing is deleted in that case.
var ErrYearDirNotFound = errors.New("cannot prune: year directory not found")

// ErrOutsideBoundary is returned for a deletion target that is empty, the
// filesystem root, or not strictly inside the permitted boundary.
var ErrOutsideBoundary = errors.New("deletion target outside permitted boundary")

// ConfigReadError reports an unreadable or malformed retention override
// file. The policy recovers by using the default retention age.
type ConfigReadError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *ConfigReadError) Error() string {
	return fmt.Sprintf("retention config error [path=%s]: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ConfigReadError) Unwrap() error {
	return e.Cause
}

// NewConfigReadError creates a new ConfigReadError.
func NewConfigReadError(path string, cause error) *ConfigReadError {
	return &ConfigReadError{Path: path, Cause: cause}
}

// DeletionError reports a file or directory that could not be removed.
type DeletionError struct {
	Path  string
	Dir   bool
	Cause error
}

// Error implements the error interface.
func (e *DeletionError) Error() string {
	kind := "file"
	if e.Dir {
		kind = "directory"
	}
	return fmt.Sprintf("did not delete %s %s: %v", kind, e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DeletionError) Unwrap() error {
	return e.Cause
}

// NewDeletionError creates a new DeletionError.
func NewDeletionError(path string, dir bool, cause error) *DeletionError {
	return &DeletionError{Path: path, Dir: dir, Cause: cause}
}
