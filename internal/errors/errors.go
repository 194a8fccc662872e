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
	CodeSigner        Code = 17
	CodeActionSim     Code = 18
	CodeActionTimeout Code = 19

	// Fill pipeline failures.
	CodeChainMismatch         Code = 20
	CodeUnsupportedOrderType  Code = 21
	CodeUnsupportedOrderData  Code = 22
	CodeUnresolvedLazyAsset   Code = 23
	CodeInvalidLazyProof      Code = 24
	CodeWalletUnavailable     Code = 25
	CodeInvalidOrderSignature Code = 26
	CodeTxReverted            Code = 27
)

// Error is a typed CLI error that carries a stable error code.
// Details holds structured context (ids, order snapshots) for diagnosis.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a context value and returns the same error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

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

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	cErr, ok := As(err)
	return ok && cErr.Code == code
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

// Codes lists every failure code in exit-code order.
func Codes() []Code {
	return []Code{
		CodeInternal, CodeUsage, CodeAuth, CodeRateLimited, CodeUnavailable, CodeUnsupported,
		CodeSigner, CodeActionSim, CodeActionTimeout,
		CodeChainMismatch, CodeUnsupportedOrderType, CodeUnsupportedOrderData, CodeUnresolvedLazyAsset,
		CodeInvalidLazyProof, CodeWalletUnavailable, CodeInvalidOrderSignature, CodeTxReverted,
	}
}

// TypeName is the stable string used in error envelopes.
func TypeName(code Code) string {
	switch code {
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
	case CodeSigner:
		return "signer_error"
	case CodeActionSim:
		return "simulation_failed"
	case CodeActionTimeout:
		return "timeout"
	case CodeChainMismatch:
		return "chain_mismatch"
	case CodeUnsupportedOrderType:
		return "unsupported_order_type"
	case CodeUnsupportedOrderData:
		return "unsupported_order_data"
	case CodeUnresolvedLazyAsset:
		return "unresolved_lazy_asset"
	case CodeInvalidLazyProof:
		return "invalid_lazy_proof"
	case CodeWalletUnavailable:
		return "wallet_unavailable"
	case CodeInvalidOrderSignature:
		return "invalid_order_signature"
	case CodeTxReverted:
		return "transaction_reverted"
	default:
		return "internal_error"
	}
}
