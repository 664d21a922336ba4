package domain

import (
	"errors"
	"testing"
)

func TestTransportError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewTransportError("quote", 500, baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "quote: status 500: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "quote: status 500: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("permanent statuses", func(t *testing.T) {
		for _, status := range []int{401, 429} {
			err := NewTransportError("listings", status, baseErr)
			if err.IsRetriable() {
				t.Errorf("Status %d should not be retriable", status)
			}
		}
	})

	t.Run("no status", func(t *testing.T) {
		err := NewTransportError("quote", 0, baseErr)
		if err.Error() != "quote: connection refused" {
			t.Errorf("Error message = %q", err.Error())
		}
		if !err.IsRetriable() {
			t.Error("A request that never completed should be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewTransportError("dial", 503, baseErr)
		fatal := NewTransportError("auth", 401, baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "api_key", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [api_key]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "high", Err: errors.New("below low")}
	if err.IsRetriable() {
		t.Error("ValidationError should never be retriable")
	}
	if err.Error() != "invalid payload [high]: below low" {
		t.Errorf("Error message = %q", err.Error())
	}
}
