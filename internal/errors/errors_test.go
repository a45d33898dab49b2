package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := stdErrors.Join(err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	err := NewRateLimitErrorWithRetry("too many requests", 2*time.Minute)

	expected := "too many requests (retry after 2m0s)"
	if err.Error() != expected {
		t.Fatalf("Error message = %q, want %q", err.Error(), expected)
	}

	if got := RetryAfterHint(fmt.Errorf("search: %w", err)); got != 2*time.Minute {
		t.Fatalf("RetryAfterHint = %v, want 2m", got)
	}
}

func TestRateLimitErrorWithRetry_ZeroDuration(t *testing.T) {
	err := NewRateLimitErrorWithRetry("rate limited", 0)

	if err.Error() != "rate limited" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "rate limited")
	}

	if RetryAfterHint(err) != 0 {
		t.Fatalf("RetryAfterHint = %v, want 0", RetryAfterHint(err))
	}
}

func TestTransientError(t *testing.T) {
	cause := stdErrors.New("connection reset by peer")
	err := fmt.Errorf("lookup: %w", NewTransientError("search", cause))

	if !IsTransientError(err) {
		t.Fatalf("IsTransientError returned false for wrapped TransientError")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("TransientError does not unwrap to its cause")
	}
	if !IsRetryable(err) {
		t.Fatalf("IsRetryable returned false for TransientError")
	}
	if IsRetryable(ErrNotFound) {
		t.Fatalf("IsRetryable returned true for ErrNotFound")
	}
}

func TestInvalidDimensionError(t *testing.T) {
	err := fmt.Errorf("save: %w", &InvalidDimensionError{Key: "B0001", Got: 3, Want: 4})

	if !stdErrors.Is(err, ErrInvalidDimension) {
		t.Fatalf("errors.Is(err, ErrInvalidDimension) = false")
	}

	want := `save: embedding for "B0001" has 3 dimensions, want 4`
	if err.Error() != want {
		t.Fatalf("Error message = %q, want %q", err.Error(), want)
	}
}

func TestStoreError(t *testing.T) {
	if NewStoreError("insert", nil) != nil {
		t.Fatalf("NewStoreError(nil) should be nil")
	}

	cause := stdErrors.New("disk full")
	err := NewStoreError("insert books", cause)

	if !stdErrors.Is(err, ErrStoreIO) {
		t.Fatalf("errors.Is(err, ErrStoreIO) = false")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatalf("StoreError does not unwrap to its cause")
	}
}

func TestMalformedRecordError(t *testing.T) {
	err := fmt.Errorf("import: %w", &MalformedRecordError{Index: 2, Field: "title"})

	if !IsMalformedRecord(err) {
		t.Fatalf("IsMalformedRecord returned false for wrapped MalformedRecordError")
	}
	if IsMalformedRecord(ErrNotFound) {
		t.Fatalf("IsMalformedRecord returned true for ErrNotFound")
	}
}
