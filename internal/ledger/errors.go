package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// Rejections: the transaction never executed and the nonce is not consumed.
	ErrCodeInvalidTransaction ErrorCode = "INVALID_TRANSACTION"
	ErrCodeInvalidSignature   ErrorCode = "INVALID_SIGNATURE"
	ErrCodeInvalidNonce       ErrorCode = "INVALID_NONCE"

	// Committed failures: state rolled back, nonce consumed.
	ErrCodeUnknownPackage      ErrorCode = "UNKNOWN_PACKAGE"
	ErrCodeUnknownBlueprint    ErrorCode = "UNKNOWN_BLUEPRINT"
	ErrCodeUnknownFunction     ErrorCode = "UNKNOWN_FUNCTION"
	ErrCodeUnknownMethod       ErrorCode = "UNKNOWN_METHOD"
	ErrCodeUnknownComponent    ErrorCode = "UNKNOWN_COMPONENT"
	ErrCodeUnknownResource     ErrorCode = "UNKNOWN_RESOURCE"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrCodeResourceLeak        ErrorCode = "RESOURCE_LEAK"
	ErrCodeBlueprintError      ErrorCode = "BLUEPRINT_ERROR"

	// ErrCodeInternal marks a storage failure during execution.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// NoInstruction is the Instruction index of transaction-level errors.
const NoInstruction = -1

// ExecutionError describes why a transaction was rejected or failed.
type ExecutionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Instruction is the index of the failing instruction, or NoInstruction.
	Instruction int
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Instruction != NoInstruction {
		return fmt.Sprintf("%s: %s (instruction %d)", e.Code, e.Message, e.Instruction)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRejection reports whether the code rejects a transaction outright.
func (c ErrorCode) IsRejection() bool {
	switch c {
	case ErrCodeInvalidTransaction, ErrCodeInvalidSignature, ErrCodeInvalidNonce:
		return true
	}
	return false
}

// Errorf builds an ExecutionError. Blueprints return these to fail with a
// specific code; any other error surfaces as BLUEPRINT_ERROR.
func Errorf(code ErrorCode, format string, args ...any) *ExecutionError {
	return &ExecutionError{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Instruction: NoInstruction,
	}
}

// IsCode reports whether err is an ExecutionError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// asExecutionError classifies err, attaching the instruction index.
func asExecutionError(err error, instruction int) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		out := *ee
		if out.Instruction == NoInstruction {
			out.Instruction = instruction
		}
		return &out
	}
	var ie *internalError
	if errors.As(err, &ie) {
		return &ExecutionError{Code: ErrCodeInternal, Message: ie.Error(), Instruction: instruction}
	}
	return &ExecutionError{Code: ErrCodeBlueprintError, Message: err.Error(), Instruction: instruction}
}

// internalError wraps storage failures so they are not mistaken for
// blueprint errors.
type internalError struct {
	err error
}

func (e *internalError) Error() string { return e.err.Error() }
func (e *internalError) Unwrap() error { return e.err }

func storageErr(format string, args ...any) error {
	return &internalError{err: fmt.Errorf(format, args...)}
}
