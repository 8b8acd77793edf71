package utils

import "fmt"

// AppError carries the failing operation alongside a human-facing message
// and the underlying cause, so log lines and API errors can show both.
type AppError struct {
	Op  string
	Msg string
	Err error
}

// NewAppError constructs an AppError for the named operation.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Err == nil:
		return e.Op + ": " + e.Msg
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
