package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks invalid user input (missing columns, empty catalogs, bad config).
	// It is fatal to a run and reported before any batch is processed.
	ErrInput = errors.New("input error")
	// ErrService marks a failed text generation call. It fails a single batch only.
	ErrService = errors.New("service error")
)

// NewInputError returns an error matching ErrInput.
func NewInputError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// NewServiceError wraps err so that it matches ErrService.
func NewServiceError(err error) error {
	if err == nil || errors.Is(err, ErrService) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrService, err)
}
