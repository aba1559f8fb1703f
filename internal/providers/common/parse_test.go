package common

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"shopscout/aggregatorservice/internal/domain"
)

func TestParseHelpersTolerateJunk(t *testing.T) {
	if got := Atoi(" 42 "); got != 42 {
		t.Errorf("Atoi = %d, want 42", got)
	}
	if got := Atoi("junk"); got != 0 {
		t.Errorf("Atoi junk = %d, want 0", got)
	}
	if got := ParseInt64("9000000000"); got != 9000000000 {
		t.Errorf("ParseInt64 = %d", got)
	}
	if got := ParseFloat(" 4.5 "); got != 4.5 {
		t.Errorf("ParseFloat = %v", got)
	}
	if got := ParseFloat(""); got != 0 {
		t.Errorf("ParseFloat empty = %v, want 0", got)
	}
}

func TestParseUnixTS(t *testing.T) {
	ts := ParseUnixTS("1700000000")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	if want := time.Unix(1700000000, 0).UTC(); !ts.Equal(want) {
		t.Fatalf("got %v, want %v", ts, want)
	}
	if ParseUnixTS("0") != nil || ParseUnixTS("-5") != nil || ParseUnixTS("junk") != nil {
		t.Fatal("junk and non-positive values must parse to nil")
	}
}

func TestClassifyTransport(t *testing.T) {
	err := ClassifyTransport(domain.SourceAmazon, context.DeadlineExceeded)
	if err.Kind != domain.ProviderErrTimeout {
		t.Fatalf("deadline must classify as timeout, got %s", err.Kind)
	}
	err = ClassifyTransport(domain.SourceAmazon, errors.New("connection refused"))
	if err.Kind != domain.ProviderErrUnavailable {
		t.Fatalf("generic transport failure must classify as unavailable, got %s", err.Kind)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   domain.ProviderErrorKind
	}{
		{http.StatusTooManyRequests, domain.ProviderErrRateLimited},
		{http.StatusUnauthorized, domain.ProviderErrAuthFailure},
		{http.StatusForbidden, domain.ProviderErrAuthFailure},
		{http.StatusBadGateway, domain.ProviderErrUnavailable},
		{http.StatusBadRequest, domain.ProviderErrMalformed},
	}
	for _, tc := range cases {
		if err := ClassifyStatus(domain.SourceWalmart, tc.status, ""); err.Kind != tc.kind {
			t.Errorf("status %d: got %s, want %s", tc.status, err.Kind, tc.kind)
		}
	}
}
