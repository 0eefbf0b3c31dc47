// Package errors provides the error taxonomy shared by the sync pipeline.
//
// Per-sheet problems (malformed input, I/O faults while fetching or
// persisting) are typed so the reconciliation engine can classify them with
// errors.Is / errors.As. Only ConfigError is fatal to a run.
package errors

import (
	"errors"
	"fmt"
)

// Aliases for the standard library helpers so callers need one import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// Sentinel errors.
var (
	// ErrMalformedInput indicates input that violates the expected shape.
	ErrMalformedInput = errors.New("malformed input")

	// ErrFatalConfig indicates a configuration fault that aborts the run.
	ErrFatalConfig = errors.New("fatal configuration error")

	// ErrIO indicates a failure in the external I/O layer.
	ErrIO = errors.New("i/o failure")

	// ErrFetch indicates a source sheet could not be fetched.
	ErrFetch = errors.New("fetch failed")

	// ErrAlreadyMerged indicates a second ledger append for the same sheet.
	ErrAlreadyMerged = errors.New("sheet already merged")
)

// MalformedInputError is returned when a value cannot be interpreted,
// for example an ISSN with a letter among its first seven digits.
type MalformedInputError struct {
	Value  string
	Reason string
}

// Error implements the error interface
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %q: %s", e.Value, e.Reason)
}

// Is implements errors.Is support
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// NewMalformedInputError creates a new MalformedInputError
func NewMalformedInputError(value, reason string) *MalformedInputError {
	return &MalformedInputError{Value: value, Reason: reason}
}

// ConfigError is a FatalConfigurationError: the canonical registry is
// unavailable or invalid, or persisted state cannot be read at run start.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error: %s", e.Message)
	if e.Component != "" {
		msg = fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrFatalConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// IOError wraps a fault raised by a store or artifact backend.
type IOError struct {
	Op     string
	Target string
	Err    error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// NewIOError creates a new IOError
func NewIOError(op, target string, err error) *IOError {
	return &IOError{Op: op, Target: target, Err: err}
}

// FetchError reports a source sheet that could not be read.
type FetchError struct {
	SheetID string
	Err     error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch sheet %s: %v", e.SheetID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch || target == ErrIO
}

// NewFetchError creates a new FetchError
func NewFetchError(sheetID string, err error) *FetchError {
	return &FetchError{SheetID: sheetID, Err: err}
}

// IsMalformedInput reports whether err is a MalformedInputError.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

// IsFatalConfig reports whether err must abort the run.
func IsFatalConfig(err error) bool {
	return errors.Is(err, ErrFatalConfig)
}

// IsIO reports whether err came from the external I/O layer.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}
