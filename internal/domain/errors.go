package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a requested persisted record does not exist.
var ErrNotFound = errors.New("not found")

// ProviderErrorKind classifies a provider failure. Timeout and Unavailable
// are transient and may be retried; RateLimited and AuthFailure cannot
// succeed on an immediate retry; Malformed means the payload was unusable.
type ProviderErrorKind string

const (
	ProviderErrTimeout     ProviderErrorKind = "timeout"
	ProviderErrRateLimited ProviderErrorKind = "rate_limited"
	ProviderErrAuthFailure ProviderErrorKind = "auth_failure"
	ProviderErrMalformed   ProviderErrorKind = "malformed"
	ProviderErrUnavailable ProviderErrorKind = "unavailable"
)

// ProviderError wraps a failure from one provider with its classification.
type ProviderError struct {
	Source Source
	Kind   ProviderErrorKind
	Err    error
}

func NewProviderError(source Source, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Source: source, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderErrorKindOf extracts the classification from an error chain.
func ProviderErrorKindOf(err error) (ProviderErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// RetryableProviderError reports whether a failure is worth retrying within
// the same call.
func RetryableProviderError(err error) bool {
	kind, ok := ProviderErrorKindOf(err)
	if !ok {
		return false
	}
	return kind == ProviderErrTimeout || kind == ProviderErrUnavailable
}
