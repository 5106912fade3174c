package logdir

import (
	"errors"
	"fmt"
)

// ErrFatalCondition marks an allocation where neither the requested
// directory nor the orphan directory could be created.
var ErrFatalCondition = errors.New("log directory unavailable")

// ConfigurationError reports a missing or unusable base path. The allocator
// recovers from it by switching to the orphan directory.
type ConfigurationError struct {
	BasePath string
	Reason   string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.BasePath == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error [base_path=%s]: %s", e.BasePath, e.Reason)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(basePath, reason string) *ConfigurationError {
	return &ConfigurationError{BasePath: basePath, Reason: reason}
}

// DirectoryCreationError reports a failed mkdir.
type DirectoryCreationError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("failed to create log directory %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DirectoryCreationError) Unwrap() error {
	return e.Cause
}

// NewDirectoryCreationError creates a new DirectoryCreationError.
func NewDirectoryCreationError(path string, cause error) *DirectoryCreationError {
	return &DirectoryCreationError{Path: path, Cause: cause}
}
