package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess       Code = 0
	CodeInternal      Code = 1
	CodeUsage         Code = 2
	CodeAuth          Code = 10
	CodeRateLimited   Code = 11
	CodeUnavailable   Code = 12
	CodeUnsupported   Code = 13
	CodeStale         Code = 14
	CodePartialStrict Code = 15
	CodeBlocked       Code = 16

	CodeInsufficientFunds Code = 20
	CodeNoLiquidity       Code = 21
	CodeSelection         Code = 22
	CodeCancelled         Code = 23
	CodeSigner            Code = 24
	CodeSimulation        Code = 25
	CodeExecution         Code = 26
	CodeTimeout           Code = 27
	CodeNotFound          Code = 28
)

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// Type returns the stable error-type label used in envelopes.
func Type(err error) string {
	cliErr, ok := As(err)
	if !ok {
		return "internal_error"
	}
	switch cliErr.Code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "provider_unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeStale:
		return "stale_data"
	case CodePartialStrict:
		return "partial_results"
	case CodeBlocked:
		return "command_blocked"
	case CodeInsufficientFunds:
		return "insufficient_funds"
	case CodeNoLiquidity:
		return "no_liquidity"
	case CodeSelection:
		return "invalid_selection"
	case CodeCancelled:
		return "user_cancelled"
	case CodeSigner:
		return "signer_error"
	case CodeSimulation:
		return "simulation_failed"
	case CodeExecution:
		return "execution_failed"
	case CodeTimeout:
		return "timeout"
	case CodeNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}
