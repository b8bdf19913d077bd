package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrDependency indicates an external collaborator (media store, mail
	// relay) failed, aborting the enclosing operation.
	ErrDependency = errors.New("dependency failure")
)
