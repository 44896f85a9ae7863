package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotInitialised is returned by nil receivers of persistence helpers.
	ErrNotInitialised = errors.New("store not initialised")
)
