package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the execution engine.
var (
	// Parent order errors
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidDeadline  = errors.New("invalid deadline")
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrProviderNotReady = errors.New("market data provider not ready")

	// Order errors
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnknownExchangeID = errors.New("no exchange id for internal order id")

	// Collaborator errors
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrRateLimitExceeded       = errors.New("rate limit exceeded")
	ErrDataUnavailable         = errors.New("market data unavailable")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// CollaboratorError reports a failed call into the pricing service or the
// market/order state provider.
type CollaboratorError struct {
	Op        string // e.g. "pricing.ladder", "broker.submit"
	Retryable bool
	Err       error
}

func (e *CollaboratorError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s: %s (%s): %v", ErrCollaboratorUnavailable, e.Op, kind, e.Err)
}

func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}

// NewRetryable wraps err as a retryable collaborator failure.
func NewRetryable(op string, err error) error {
	return &CollaboratorError{Op: op, Retryable: true, Err: err}
}

// NewFatal wraps err as a non-retryable collaborator failure.
func NewFatal(op string, err error) error {
	return &CollaboratorError{Op: op, Retryable: false, Err: err}
}

// IsRetryable reports whether err is a retryable collaborator failure.
func IsRetryable(err error) bool {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}
