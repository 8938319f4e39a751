package amortization

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is the error kind returned for rejected calculator inputs.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError describes which input was rejected and why.
type InvalidArgumentError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidArgument) match any InvalidArgumentError.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalidArgument(field string, value interface{}, reason string) error {
	return &InvalidArgumentError{Field: field, Value: value, Reason: reason}
}
