package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "amount is required",
			},
			expected: "amount is required",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "intent.create",
				Message: "amount is required",
			},
			expected: "intent.create: amount is required",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EGATEWAY,
				Op:      "customer.resolve",
				Message: "No such customer",
				Err:     errors.New("stripe: 404"),
			},
			expected: "customer.resolve: No such customer: stripe: 404",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to encode",
				Err:     errors.New("bad utf8"),
			},
			expected: "failed to encode: bad utf8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EGATEWAY,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "domain error", err: &Error{Code: EINVALID, Message: "test"}, expected: EINVALID},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("wrapped: %w", &Error{Code: ETIMEOUT, Message: "test"}),
			expected: ETIMEOUT,
		},
		{name: "validation error", err: NewValidationError("op", "email", "required"), expected: EINVALID},
		{name: "non-domain error", err: errors.New("some error"), expected: EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{
			name:     "gateway error keeps gateway message",
			err:      Gateway(errors.New("raw"), "intent.create", "Your card was declined."),
			expected: "Your card was declined.",
		},
		{
			name:     "internal error hides message",
			err:      &Error{Code: EINTERNAL, Message: "sk_live_secret leaked"},
			expected: "An internal error occurred. Please try again later.",
		},
		{
			name:     "non-domain error returns generic message",
			err:      errors.New("some internal detail"),
			expected: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorOp(t *testing.T) {
	if got := ErrorOp(&Error{Code: EINVALID, Op: "method.attach"}); got != "method.attach" {
		t.Errorf("ErrorOp() = %q, want %q", got, "method.attach")
	}
	if got := ErrorOp(errors.New("test")); got != "" {
		t.Errorf("ErrorOp() = %q, want empty", got)
	}
	if got := ErrorOp(nil); got != "" {
		t.Errorf("ErrorOp(nil) = %q, want empty", got)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(EINVALID, "intent.create", "unsupported currency: %s", "xx")

	var domainErr *Error
	if !errors.As(err, &domainErr) {
		t.Fatal("Errorf should return *Error")
	}
	if domainErr.Code != EINVALID {
		t.Errorf("Code = %q, want %q", domainErr.Code, EINVALID)
	}
	if domainErr.Op != "intent.create" {
		t.Errorf("Op = %q, want %q", domainErr.Op, "intent.create")
	}
	if domainErr.Message != "unsupported currency: xx" {
		t.Errorf("Message = %q, want %q", domainErr.Message, "unsupported currency: xx")
	}
}

func TestWrapError(t *testing.T) {
	t.Run("wraps non-nil error", func(t *testing.T) {
		underlying := errors.New("encode failed")
		err := WrapError(underlying, EINTERNAL, "notify.publish", "failed to publish outcome")

		if ErrorCode(err) != EINTERNAL {
			t.Errorf("Code = %q, want %q", ErrorCode(err), EINTERNAL)
		}
		if !errors.Is(err, underlying) {
			t.Error("should wrap underlying error")
		}
	})

	t.Run("returns nil for nil error", func(t *testing.T) {
		if err := WrapError(nil, EINTERNAL, "test", "test"); err != nil {
			t.Errorf("WrapError(nil) should return nil, got %v", err)
		}
	})
}

func TestIsCode(t *testing.T) {
	if !IsCode(Timeout(errors.New("deadline"), "op"), ETIMEOUT) {
		t.Error("Timeout should carry ETIMEOUT")
	}
	if IsCode(Invalid("op", "bad"), EGATEWAY) {
		t.Error("Invalid should not carry EGATEWAY")
	}
	if !IsCode(errors.New("plain"), EINTERNAL) {
		t.Error("non-domain error should match EINTERNAL")
	}
}

func TestConstructors(t *testing.T) {
	underlying := errors.New("root cause")

	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "Invalid", err: Invalid("op", "bad input"), code: EINVALID},
		{name: "NotFound", err: NotFound(underlying, "op", "No such payment_intent: pi_1"), code: ENOTFOUND},
		{name: "Gateway", err: Gateway(underlying, "op", "boom"), code: EGATEWAY},
		{name: "Timeout", err: Timeout(underlying, "op"), code: ETIMEOUT},
		{name: "SignatureInvalid", err: SignatureInvalid(underlying, "op"), code: ESIGNATURE},
		{name: "Internal", err: Internal(underlying, "op", "hidden"), code: EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}

	t.Run("NotFound keeps cause and default message", func(t *testing.T) {
		err := NotFound(underlying, "op", "")
		if got := ErrorMessage(err); got != "resource not found" {
			t.Errorf("message = %q", got)
		}
		if !errors.Is(err, underlying) {
			t.Error("expected NotFound to wrap its cause")
		}
	})

	t.Run("Gateway default message", func(t *testing.T) {
		if got := ErrorMessage(Gateway(underlying, "op", "")); got != "payment gateway request failed" {
			t.Errorf("message = %q", got)
		}
	})
}

func TestValidationError(t *testing.T) {
	t.Run("single field error", func(t *testing.T) {
		err := NewValidationError("customer.resolve", "email", "email is required")

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatal("NewValidationError should return *ValidationError")
		}

		expected := "customer.resolve: email: email is required"
		if ve.Error() != expected {
			t.Errorf("Error() = %q, want %q", ve.Error(), expected)
		}
	})

	t.Run("multiple field errors", func(t *testing.T) {
		err := NewValidationError("customer.resolve", "email", "email is required")
		err = AddFieldError(err, "patient_id", "patient_id or business_id is required")

		fields := GetValidationFields(err)
		if len(fields) != 2 {
			t.Errorf("Fields count = %d, want 2", len(fields))
		}
		if !IsValidationError(err) {
			t.Error("IsValidationError should be true")
		}
	})

	t.Run("non-validation error", func(t *testing.T) {
		if GetValidationFields(errors.New("x")) != nil {
			t.Error("GetValidationFields should return nil for non-validation error")
		}
		if IsValidationError(nil) {
			t.Error("IsValidationError(nil) should be false")
		}
	})
}
