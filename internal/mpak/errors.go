package mpak

import (
	"errors"
	"fmt"
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("mpak: decode error")

// DecodeError reports data that cannot be decoded as a well-formed Mpak
// structure. Op names what was being decoded.
type DecodeError struct {
	Op     string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("failed to decode %s", e.Op)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) true for any DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErrorf(op, format string, args ...any) *DecodeError {
	return &DecodeError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
