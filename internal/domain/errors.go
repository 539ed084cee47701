package domain

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed or inconsistent input.
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when a mutation loses to an already-terminal row.
	ErrConflict = errors.New("conflict")

	// ErrTemplateNotFound marks a missing email template. Permanent: a
	// configuration gap, never retried.
	ErrTemplateNotFound = errors.New("email template not found")

	// ErrProfileNotFound marks a missing outbound profile. Permanent for the
	// same reason as ErrTemplateNotFound.
	ErrProfileNotFound = errors.New("outbound profile not found")
)
