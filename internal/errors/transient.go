package errors

import "errors"

// ErrNotFound marks a lookup that completed but matched nothing.
var ErrNotFound = errors.New("not found")

// TransientError wraps a network or server failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as a retryable failure of op.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

// IsTransientError reports whether err is a TransientError (even when wrapped).
func IsTransientError(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}

// IsRetryable reports whether an enrichment call failing with err should be retried.
func IsRetryable(err error) bool {
	return IsRateLimitError(err) || IsTransientError(err)
}
