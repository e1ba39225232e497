package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStaleVersion means the booking changed since the caller read it.
	ErrStaleVersion = errors.New("booking version is stale")

	ErrTimeConflict = errors.New("booking time conflicts with existing booking")

	ErrInvalidHold = errors.New("invalid or tampered hold token")
)
