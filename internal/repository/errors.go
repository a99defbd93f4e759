package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrInvalidArgument indicates the input failed validation.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrForbidden indicates the actor lacks the role required for the operation.
	ErrForbidden = errors.New("repository: forbidden")
)
