package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWithDetailsCopies(t *testing.T) {
	with := ErrBadRequest.WithDetails(map[string]string{"origin": "required"})
	if ErrBadRequest.Details != nil {
		t.Fatal("expected sentinel to remain untouched")
	}
	if with.Details == nil {
		t.Fatal("expected details on copy")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("middleware: %w", ErrRateLimit.WithInternal(stdErrors.New("denied")))
	if !stdErrors.Is(wrapped, ErrRateLimit) {
		t.Fatal("expected errors.Is to match on code")
	}
	if stdErrors.Is(wrapped, ErrUnauthorized) {
		t.Fatal("expected different codes not to match")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("origin is required")
	if err.StatusCode != http.StatusBadRequest || err.Code != ErrBadRequest.Code {
		t.Fatalf("unexpected error: %+v", err)
	}
}
