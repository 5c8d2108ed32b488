package engine

import (
	"errors"
	"fmt"
)

// ExecutionError describes why a command did not execute successfully.
// Its Message is what gets reported to the storefront.
type ExecutionError struct {
	// Code identifies the failure category.
	Code ExecutionErrorCode

	// Message is the human-readable text reported for the command.
	Message string

	// CommandID is the command that failed.
	CommandID int

	// Err is the underlying invocation error, if any.
	Err error
}

// ExecutionErrorCode categorizes execution failures.
type ExecutionErrorCode string

const (
	// ErrCodeInvocationFailed indicates the invocation returned an error.
	ErrCodeInvocationFailed ExecutionErrorCode = "INVOCATION_FAILED"

	// ErrCodeInvocationPanic indicates the invocation panicked.
	ErrCodeInvocationPanic ExecutionErrorCode = "INVOCATION_PANIC"

	// ErrCodeReturnedFalse indicates the game rejected the instruction.
	ErrCodeReturnedFalse ExecutionErrorCode = "RETURNED_FALSE"

	// ErrCodeActorLeft indicates the player disconnected while the
	// instruction was running.
	ErrCodeActorLeft ExecutionErrorCode = "ACTOR_LEFT"
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s (command=%d)", e.Code, e.Message, e.CommandID)
}

// Unwrap returns the underlying invocation error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsActorLeft returns true if err is an ExecutionError for a player who
// disconnected mid-flight. Uses errors.As to handle wrapped errors.
func IsActorLeft(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeActorLeft
	}
	return false
}

// CodeOf returns the code of an ExecutionError, or "" for other errors.
func CodeOf(err error) ExecutionErrorCode {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func newInvocationFailed(id int, err error) *ExecutionError {
	return &ExecutionError{
		Code:      ErrCodeInvocationFailed,
		Message:   fmt.Sprintf("Command execution failed: %v", err),
		CommandID: id,
		Err:       err,
	}
}

func newInvocationPanic(id int, r any) *ExecutionError {
	return &ExecutionError{
		Code:      ErrCodeInvocationPanic,
		Message:   fmt.Sprintf("Command execution failed: %v", r),
		CommandID: id,
	}
}

func newReturnedFalse(id int) *ExecutionError {
	return &ExecutionError{
		Code:      ErrCodeReturnedFalse,
		Message:   "Command execution returned false - likely failed",
		CommandID: id,
	}
}

func newActorLeft(id int, player string) *ExecutionError {
	return &ExecutionError{
		Code:      ErrCodeActorLeft,
		Message:   fmt.Sprintf("Player '%s' is no longer online - command may not have completed due to player leaving", player),
		CommandID: id,
	}
}
