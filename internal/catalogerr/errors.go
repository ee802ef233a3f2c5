// Package catalogerr provides a structured error type for the catalog
// pipeline. No other package in this module imports it.
package catalogerr

import "fmt"

// Code enumerates the taxonomy of failures the catalog pipeline can
// produce above the per-probe level (per-probe failures never leave
// the validator package — they are encoded directly into a Record).
type Code int

const (
	CodeSourceUnreachable Code = iota + 1
	CodeSourceParseFailed
	CodeSourceBadResponse
	CodeValidationCycleFailed
	CodeSchedulerBadArgument
)

// Error is a structured error with enough context to log and to
// classify, without the caller needing to string-match.
type Error struct {
	Code      Code
	Operation string
	Cause     error
}

func New(code Code, operation string, cause error) *Error {
	return &Error{Code: code, Operation: operation, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
	}
	return e.Operation
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
