package service

import "errors"

var (
	ErrForbidden          = errors.New("forbidden: insufficient permissions")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrMissingInput       = errors.New("missing input")
)

// MissingInputError names a required form field or file that was absent.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return e.Field + " is missing"
}

func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// ProcessingError is a downstream failure (classifier, renderer, disk) the
// caller cannot fix by changing the request.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
