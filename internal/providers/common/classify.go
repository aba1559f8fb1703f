// Package common holds helpers shared by the provider adapters: failure
// classification and tolerant field parsing.
package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"shopscout/aggregatorservice/internal/domain"
)

// ClassifyTransport maps a transport-level failure onto the provider error
// taxonomy: deadline and net timeouts become Timeout, everything else
// Unavailable.
func ClassifyTransport(source domain.Source, err error) *domain.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(source, domain.ProviderErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewProviderError(source, domain.ProviderErrTimeout, err)
	}
	return domain.NewProviderError(source, domain.ProviderErrUnavailable, err)
}

// ClassifyStatus maps a non-200 HTTP response onto the taxonomy.
func ClassifyStatus(source domain.Source, status int, body string) *domain.ProviderError {
	err := fmt.Errorf("provider HTTP %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewProviderError(source, domain.ProviderErrRateLimited, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewProviderError(source, domain.ProviderErrAuthFailure, err)
	case status >= 500:
		return domain.NewProviderError(source, domain.ProviderErrUnavailable, err)
	default:
		return domain.NewProviderError(source, domain.ProviderErrMalformed, err)
	}
}

// Malformed wraps an unparseable-payload failure.
func Malformed(source domain.Source, err error) *domain.ProviderError {
	return domain.NewProviderError(source, domain.ProviderErrMalformed, err)
}
