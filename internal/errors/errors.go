// Package errors holds the structured errors doorctl reports for failures
// outside a door session: config problems, key handling, busy transports.
// Door outcomes themselves are door.Failure values.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrConfig = "CONFIG"
	ErrSSH    = "SSH"
	ErrBLE    = "BLE"
	ErrLock   = "LOCK"
	ErrKey    = "KEY"
)

// hints are shown when an error carries no suggestion of its own.
var hints = map[string]string{
	ErrConfig: "Run 'doorctl doors' to see how the config was read.",
	ErrSSH:    "Check that the door host is reachable from this network.",
	ErrBLE:    "Check that Bluetooth is on and the lock is in range.",
	ErrLock:   "Another doorctl request is using the transport; wait for it to finish.",
	ErrKey:    "Run 'doorctl keygen <door>' to store a new key pair.",
}

// Error is a failure with a code, a one-line message, an optional cause and
// advice for the user. Rendered as:
//
//	✗ <message>
//
//	  <cause>
//
//	  <suggestion or hint for the code>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates an Error without a cause.
func New(code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion}
}

// Wrap wraps err as a config error.
func Wrap(err error, message string) *Error {
	return &Error{Code: ErrConfig, Message: message, Cause: err}
}

// WrapWithCode wraps err with a code, message and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion, Cause: err}
}

// Hint returns the suggestion, falling back to the advice for the code.
func (e *Error) Hint() string {
	if e.Suggestion != "" {
		return e.Suggestion
	}
	return hints[e.Code]
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %s\n", e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, "\n  %s\n", e.Cause)
	}
	if hint := e.Hint(); hint != "" {
		fmt.Fprintf(&b, "\n  %s\n", hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err has an Error with code in its chain.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// ExitError carries a process exit code out of a command. It prints
// nothing; the outcome was already rendered.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the exit code from an ExitError anywhere in the chain.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
