package status

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Status Codes
// --------------------------------------------------------------------------

// Code is the kind of outcome of an operation.
// The numeric values are part of the wire format and must not be reordered.
type Code int32

const (
	CodeSuccess         Code = iota // 0: Operation executed successfully.
	CodeUnknown                     // 1: Generic error whose cause is unknown.
	CodeSystem                      // 2: Generic error from the underlying system.
	CodeNotImplemented              // 3: Feature is not implemented.
	CodePrecondition                // 4: Precondition of the call is not met (misuse).
	CodeInvalidArgument             // 5: Invalid argument given by the caller.
	CodeCanceled                    // 6: Operation was canceled.
	CodeNotFound                    // 7: Specific data is not found.
	CodePermission                  // 8: Permission is denied.
	CodeInfeasible                  // 9: Operation is infeasible.
	CodeDuplication                 // 10: Specific data is duplicated.
	CodeBrokenData                  // 11: Data is broken or violates the protocol.
	CodeNetwork                     // 12: Transport level failure.
	CodeApplication                 // 13: Error caused by the application logic.
)

var codeNames = [...]string{
	CodeSuccess:         "SUCCESS",
	CodeUnknown:         "UNKNOWN_ERROR",
	CodeSystem:          "SYSTEM_ERROR",
	CodeNotImplemented:  "NOT_IMPLEMENTED_ERROR",
	CodePrecondition:    "PRECONDITION_ERROR",
	CodeInvalidArgument: "INVALID_ARGUMENT_ERROR",
	CodeCanceled:        "CANCELED_ERROR",
	CodeNotFound:        "NOT_FOUND_ERROR",
	CodePermission:      "PERMISSION_ERROR",
	CodeInfeasible:      "INFEASIBLE_ERROR",
	CodeDuplication:     "DUPLICATION_ERROR",
	CodeBrokenData:      "BROKEN_DATA_ERROR",
	CodeNetwork:         "NETWORK_ERROR",
	CodeApplication:     "APPLICATION_ERROR",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_CODE(%d)", int32(c))
}

// ParseCode converts a code name (as returned by Code.String) back to a Code.
func ParseCode(name string) (Code, bool) {
	for i, n := range codeNames {
		if n == name {
			return Code(i), true
		}
	}
	return CodeUnknown, false
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the unified failure result of every operation.
// A successful operation returns a nil error instead of an Error with CodeSuccess.
type Error struct {
	Code Code   // The kind of failure
	Msg  string // Optional message, may be empty
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
// A target with a message additionally has to match the message exactly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// NewError creates a new Error with the given code and message.
func NewError(code Code, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// FromCode converts a code and message to an error value.
// CodeSuccess results in a nil error, every other code in an *Error.
func FromCode(code Code, msg string) error {
	if code == CodeSuccess {
		return nil
	}
	return NewError(code, msg)
}

// CodeOf returns the code of an error.
// nil maps to CodeSuccess and errors that are not an *Error map to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MessageOf returns the message of an error, or the plain error string for foreign errors.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// --------------------------------------------------------------------------
// Sentinel Errors (compare with errors.Is)
// --------------------------------------------------------------------------

var (
	ErrUnknown         = &Error{Code: CodeUnknown}
	ErrSystem          = &Error{Code: CodeSystem}
	ErrNotImplemented  = &Error{Code: CodeNotImplemented}
	ErrPrecondition    = &Error{Code: CodePrecondition}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrCanceled        = &Error{Code: CodeCanceled}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrPermission      = &Error{Code: CodePermission}
	ErrInfeasible      = &Error{Code: CodeInfeasible}
	ErrDuplication     = &Error{Code: CodeDuplication}
	ErrBrokenData      = &Error{Code: CodeBrokenData}
	ErrNetwork         = &Error{Code: CodeNetwork}
	ErrApplication     = &Error{Code: CodeApplication}
)
