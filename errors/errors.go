// Package errors provides error handling for imotar.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("output buffer not configured")
//
//	// Wrap with context
//	if err := run.Advance(); err != nil {
//	    return errors.Wrap(err, "executor advance failed")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "check [executor] passes in imotar.toml")
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across imotar.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidConfig indicates configuration that cannot describe a runnable
	// pipeline (bad dimensions, negative skew, missing collaborators)
	ErrInvalidConfig = New("invalid configuration")

	// ErrExecutorFault indicates the stepwise executor faulted mid-advance;
	// the owning job is finalized invalidated so the slot is never stuck
	ErrExecutorFault = New("executor fault")

	// ErrBadSnapshot indicates an executor was handed a payload pair it
	// cannot begin from (wrong types, mismatched planes)
	ErrBadSnapshot = New("bad input snapshot")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidConfigError checks if an error is or wraps ErrInvalidConfig.
func IsInvalidConfigError(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}

// IsExecutorFaultError checks if an error is or wraps ErrExecutorFault.
func IsExecutorFaultError(err error) bool {
	return err != nil && Is(err, ErrExecutorFault)
}

// NewInvalidConfigError creates an invalid-config error with a formatted message.
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}

// WrapExecutorFault wraps an executor error so callers can match it with
// errors.Is(err, ErrExecutorFault) while keeping the original cause text.
func WrapExecutorFault(err error, context string) error {
	return Wrap(Wrap(ErrExecutorFault, err.Error()), context)
}
