package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing store key. Expected during normal
	// operation and never logged as an error.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable signals a store backend failure (I/O,
	// connectivity). Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStateExpiredOrInvalid signals a replayed, expired, or unknown
	// OAuth state token. Terminal for the current flow attempt.
	ErrStateExpiredOrInvalid = errors.New("state expired or invalid")

	// ErrReauthorizationRequired signals that the stored Salesforce grant
	// was revoked and the user must go through the authorize flow again.
	ErrReauthorizationRequired = errors.New("salesforce reauthorization required")

	ErrMissingWorkspaceID    = errors.New("install payload missing workspace id")
	ErrMissingInstallToken   = errors.New("install payload missing install token")
	ErrMissingDefaultChannel = errors.New("install payload missing default channel")
)

// StoreUnavailable wraps a backend failure so callers can match it with
// errors.Is(err, ErrStoreUnavailable) while keeping the cause in the chain.
func StoreUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// AuthErrorReason classifies a provider authorization failure.
type AuthErrorReason string

const (
	// ReasonInvalidGrant marks a non-retryable failure: the code or token
	// was already used, expired, or revoked.
	ReasonInvalidGrant AuthErrorReason = "invalid_grant"
	// ReasonTransient marks a retryable failure: network error, timeout,
	// or a 5xx from the provider.
	ReasonTransient AuthErrorReason = "transient"
)

// AuthError is returned by provider clients for token exchange, refresh,
// and authenticated API failures.
type AuthError struct {
	Reason AuthErrorReason
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps err with the given reason.
func NewAuthError(reason AuthErrorReason, err error) *AuthError {
	return &AuthError{Reason: reason, Err: err}
}

// IsInvalidGrant reports whether err is a non-retryable authorization error.
func IsInvalidGrant(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == ReasonInvalidGrant
}

// IsTransientAuth reports whether err is a retryable authorization error.
func IsTransientAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == ReasonTransient
}
