package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeValidation,
				Message: "email is required",
			},
			want: "email is required",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeUnavailable,
				Message: "redis get",
				Cause:   errors.New("connection refused"),
			},
			want: "redis get: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestWrap_NilError(t *testing.T) {
	if got := Wrap(nil, ErrCodeInternal, "nothing"); got != nil {
		t.Errorf("Wrap(nil) = %v, want nil", got)
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("password", "password is required")
	if !IsValidation(err) {
		t.Fatalf("expected validation error")
	}
	if GetField(err) != "password" {
		t.Errorf("GetField() = %q, want %q", GetField(err), "password")
	}
}

func TestCodeHelpers_ThroughWrapping(t *testing.T) {
	base := Wrap(errors.New("dial tcp"), ErrCodeUnavailable, "connect redis")
	wrapped := fmt.Errorf("sign in: %w", base)

	if IsValidation(wrapped) {
		t.Errorf("IsValidation() should be false")
	}
	if GetCode(wrapped) != ErrCodeUnavailable {
		t.Errorf("GetCode() = %q, want %q", GetCode(wrapped), ErrCodeUnavailable)
	}
	if appErr, ok := As(wrapped); !ok || appErr != base {
		t.Errorf("As() = %v, %v; want the wrapped AppError", appErr, ok)
	}
	if GetCode(errors.New("plain")) != "" {
		t.Errorf("GetCode() of plain error should be empty")
	}
	if GetField(errors.New("plain")) != "" {
		t.Errorf("GetField() of plain error should be empty")
	}
	if _, ok := As(nil); ok {
		t.Errorf("As(nil) should report false")
	}
}

func TestAppError_AuthCode(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeValidation:  "auth/validation",
		ErrCodeNotFound:    "auth/not-found",
		ErrCodeUnavailable: "auth/unavailable",
	}
	for code, want := range tests {
		if got := (&AppError{Code: code}).AuthCode(); got != want {
			t.Errorf("AuthCode(%s) = %q, want %q", code, got, want)
		}
	}
}

func TestAppError_HTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeValidation:  http.StatusBadRequest,
		ErrCodeNotFound:    http.StatusNotFound,
		ErrCodeConflict:    http.StatusConflict,
		ErrCodeUnavailable: http.StatusServiceUnavailable,
		ErrCodeTimeout:     http.StatusGatewayTimeout,
		ErrCodeInternal:    http.StatusInternalServerError,
		"":                 http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := (&AppError{Code: code}).HTTPStatus(); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestNotFound(t *testing.T) {
	if NotFound("x").Code != ErrCodeNotFound {
		t.Errorf("NotFound code mismatch")
	}
}
