package record

import "errors"

var (
	ErrRecordNotFound = errors.New("patient record not found")
	ErrDuplicateKey   = errors.New("patient record with this timestamp already exists")
	ErrInvalidRole    = errors.New("reply role must be doctor or patient")
	ErrEmptyMessage   = errors.New("reply message is required")
)
