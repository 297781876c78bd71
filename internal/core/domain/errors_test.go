package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	e := NewDomainError("WP-TEST-0001", "something broke")
	if got := e.Error(); got != "[WP-TEST-0001] something broke" {
		t.Errorf("Error() = %q", got)
	}

	withDetails := e.WithDetails("extra context")
	if got := withDetails.Error(); got != "[WP-TEST-0001] something broke: extra context" {
		t.Errorf("Error() with details = %q", got)
	}
}

func TestDomainError_Is(t *testing.T) {
	err := ErrSessionNotFound.WithDetails("wpss-xyz")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Error("errors.Is should match by code")
	}
	if errors.Is(err, ErrNodeNotFound) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestDomainError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrPersistenceFailed.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}

	wrapped := fmt.Errorf("saving session: %w", err)
	var de *DomainError
	if !errors.As(wrapped, &de) {
		t.Fatal("errors.As should find the DomainError through fmt wrapping")
	}
	if de.Code != "WP-SYS-5001" {
		t.Errorf("Code = %q, want WP-SYS-5001", de.Code)
	}
}

func TestDomainError_CopySemantics(t *testing.T) {
	detailed := ErrAtCapacity.WithDetails("node-1 at 95/100")
	if ErrAtCapacity.Details != "" {
		t.Error("WithDetails must not mutate the sentinel")
	}
	if detailed.Code != ErrAtCapacity.Code {
		t.Error("WithDetails must preserve the code")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrNodeOffline, "WP-NODE-4091") {
		t.Error("IsDomainError should match exact code")
	}
	if IsDomainError(ErrNodeOffline, "WP-NODE-4040") {
		t.Error("IsDomainError should not match a different code")
	}
	if !IsDomainError(ErrNodeOffline, "") {
		t.Error("empty code should match any DomainError")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("plain errors are not domain errors")
	}
	if IsDomainError(nil, "WP-NODE-4091") {
		t.Error("nil is not a domain error")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrRateLimited); got != "WP-SYS-4290" {
		t.Errorf("GetErrorCode = %q, want WP-SYS-4290", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode(plain) = %q, want empty", got)
	}
	wrapped := fmt.Errorf("context: %w", ErrConnectTimeout)
	if got := GetErrorCode(wrapped); got != "WP-SESS-5040" {
		t.Errorf("GetErrorCode(wrapped) = %q, want WP-SESS-5040", got)
	}
}
