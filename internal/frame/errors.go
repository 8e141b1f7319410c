package frame

import (
	"errors"
	"fmt"
)

// ErrMalformed is the root of every decode failure.
var ErrMalformed = errors.New("malformed frame")

var (
	ErrMissingField   = fmt.Errorf("%w: missing field", ErrMalformed)
	ErrBadID          = fmt.Errorf("%w: invalid ID field", ErrMalformed)
	ErrBadLength      = fmt.Errorf("%w: invalid LN field", ErrMalformed)
	ErrBadData        = fmt.Errorf("%w: invalid hex data", ErrMalformed)
	ErrLengthMismatch = fmt.Errorf("%w: length mismatch", ErrMalformed)
)

// DecodeError reports a line that could not be decoded.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
