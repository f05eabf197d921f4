package e

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced SOS request or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation is not valid for the
	// current status of the SOS request.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnauthorized is returned when the caller does not own the SOS
	// request for an ownership-gated operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is returned for malformed coordinates or a non-positive radius.
	ErrValidation = errors.New("validation error")
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

// DispatchError describes a failed push delivery for a single recipient.
// It is logged and counted, never propagated out of a state transition.
type DispatchError struct {
	UserID uint
	Err    error
}

func (d *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to user %d failed: %v", d.UserID, d.Err)
}

func (d *DispatchError) Unwrap() error {
	return d.Err
}
