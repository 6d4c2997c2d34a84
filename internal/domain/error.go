package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("document not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("document is being modified by another request")
	ErrAlreadyExists   = errors.New("job already exists")

	// Validation errors carry ErrInvalidArgument so callers can match the class.
	ErrReasonRequired   = fmt.Errorf("%w: rejection reason is required", ErrInvalidArgument)
	ErrFlagTypeRequired = fmt.Errorf("%w: flag type is required", ErrInvalidArgument)
	ErrEmptyDocumentIDs = fmt.Errorf("%w: documentIds must be a non-empty array", ErrInvalidArgument)
)
