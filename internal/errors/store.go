package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimension is returned when a vector length differs from the configured dimension.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrStoreIO marks a persistence failure. It aborts the current pipeline stage.
	ErrStoreIO = errors.New("store I/O error")
)

// InvalidDimensionError describes a vector of the wrong length.
type InvalidDimensionError struct {
	Key  string
	Got  int
	Want int
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("embedding for %q has %d dimensions, want %d", e.Key, e.Got, e.Want)
}

func (e *InvalidDimensionError) Is(target error) bool {
	return target == ErrInvalidDimension
}

// StoreError wraps a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreIO
}

// NewStoreError wraps err as a store failure, returning nil for a nil err.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// MalformedRecordError reports an import record missing a required field.
type MalformedRecordError struct {
	Index int
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("import record %d: missing required field %q", e.Index, e.Field)
}

// IsMalformedRecord reports whether err is a MalformedRecordError (even when wrapped).
func IsMalformedRecord(err error) bool {
	var mErr *MalformedRecordError
	return errors.As(err, &mErr)
}
