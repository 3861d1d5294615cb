package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any storage I/O.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateData marks a fingerprint repeated with conflicting coordinates in one batch.
	ErrDuplicateData = errors.New("duplicate data")
	// ErrStorage marks a failure inside the unit of work. Nothing was committed.
	ErrStorage = errors.New("storage failure")

	ErrNoCashAccount = fmt.Errorf("%w: no cash account configured", ErrValidation)
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storageError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, step, err)
}
