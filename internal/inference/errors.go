package inference

import (
	"errors"
	"fmt"
)

var (
	ErrScoreOutOfRange       = errors.New("classifier score outside [0,1]")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// InvalidImageError reports input that cannot be turned into a model tensor.
type InvalidImageError struct {
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}
