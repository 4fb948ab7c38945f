package errors

import (
	"fmt"
	"testing"
)

type fakeStatusErr struct{ code int }

func (e *fakeStatusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e *fakeStatusErr) StatusCode() int { return e.code }

func TestStorefrontError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeInvalidInput, "bad input")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeCreateFailed, "create failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeCreateFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeRefreshFailed) {
		t.Error("Is should return false for non-matching code")
	}

	// Codes survive fmt.Errorf wrapping
	outer := fmt.Errorf("context: %w", wrapped)
	if GetCode(outer) != ErrCodeCreateFailed {
		t.Errorf("expected code through %%w wrapping, got %q", GetCode(outer))
	}

	detailed := err.WithDetail("name", "shop").WithDetail("status", 500)
	if detailed.Details["name"] != "shop" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := InvalidStoreName("My Store!", "must match ^[a-z0-9-]+$")
	if err.Code != ErrCodeInvalidStoreName {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidStoreName, err.Code)
	}
	if err.Details["name"] != "My Store!" {
		t.Error("InvalidStoreName should include name detail")
	}

	err = RefreshFailed(fmt.Errorf("list: %w", &fakeStatusErr{code: 500}))
	if err.Code != ErrCodeRefreshFailed {
		t.Errorf("expected code %s, got %s", ErrCodeRefreshFailed, err.Code)
	}
	if err.Details["status"] != 500 {
		t.Errorf("RefreshFailed should record the HTTP status, got %v", err.Details["status"])
	}

	err = CreateFailed("shop-a", fmt.Errorf("connection refused"))
	if _, ok := err.Details["status"]; ok {
		t.Error("CreateFailed should not invent a status for network errors")
	}
}
