package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName is returned by Register when an operation with the
	// same name already exists. The first registration is retained.
	ErrDuplicateName = errors.New("duplicate operation name")

	// ErrUnknownOperation is returned when no operation has the given name.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidOperation is returned by Register for an operation that has
	// no name, no handler, or a schema that cannot be compiled.
	ErrInvalidOperation = errors.New("invalid operation")

	ErrMissingParameter = errors.New("missing required parameter")
	ErrTypeMismatch     = errors.New("parameter type mismatch")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// ParamError reports an argument that failed validation. It unwraps to one of
// ErrMissingParameter, ErrTypeMismatch or ErrUnknownParameter.
type ParamError struct {
	Err    error
	Param  string
	Detail string
}

func (e *ParamError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v %q: %s", e.Err, e.Param, e.Detail)
	}
	return fmt.Sprintf("%v %q", e.Err, e.Param)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}
