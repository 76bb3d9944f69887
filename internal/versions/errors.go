package versions

import "errors"

var (
	// ErrNotFound indicates the content key or version does not exist.
	ErrNotFound = errors.New("version not found")
	// ErrConflict indicates a version-number race that outlived the retry budget.
	ErrConflict = errors.New("version number conflict")
	// ErrInvalidOperation indicates an operation forbidden by an invariant,
	// such as deleting the current version.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnauthorized indicates an attempt to touch another owner's versions.
	ErrUnauthorized = errors.New("unauthorized")
)
