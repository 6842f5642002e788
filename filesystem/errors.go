package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Expected failures. These are ordinary outcomes callers branch on, so every
// mutator returns them as values. Each one matches its io/fs counterpart with
// errors.Is where one exists.
var (
	ErrNotExist = fmt.Errorf("no such file or directory: %w", fs.ErrNotExist)
	ErrExist    = fmt.Errorf("file exists: %w", fs.ErrExist)
	ErrNotDir   = errors.New("not a directory")
	ErrIsDir    = errors.New("is a directory")
	ErrNotEmpty = errors.New("directory not empty")
	ErrNoRoot   = fmt.Errorf("no active root: %w", ErrNotExist)
	// ErrCycle is returned when a directory would become its own descendant
	ErrCycle = fmt.Errorf("directory cannot be moved below itself: %w", fs.ErrInvalid)
	// ErrTooLarge is returned when a write or truncate would exceed the configured MaxFileSize
	ErrTooLarge = fmt.Errorf("file too large: %w", fs.ErrInvalid)
)

// ErrInvalidName is matched by every [InvalidNameError] via errors.Is
var ErrInvalidName = fmt.Errorf("invalid name: %w", fs.ErrInvalid)

// InvalidNameError is the structural fault raised when a node name is empty or
// contains the path separator. It signals a caller bug rather than a runtime state.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	if e.Name == "" {
		return "invalid name: name can not be empty"
	}
	return fmt.Sprintf("invalid name %q: name can not contain %s", e.Name, Separator)
}

func (e *InvalidNameError) Unwrap() error {
	return ErrInvalidName
}

// validateName returns an *InvalidNameError for names that can not be stored
func validateName(name string) error {
	if name == "" || strings.Contains(name, Separator) {
		return &InvalidNameError{Name: name}
	}
	return nil
}
