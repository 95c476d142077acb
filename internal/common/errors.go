package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Upstream failures are transient and retryable;
// parse failures are per-image and skip-and-continue; export failures are
// fatal for the request; ledger failures must never hide a finished workbook.
var (
	ErrUpstream       = errors.New("upstream model error")
	ErrNoJSONFound    = errors.New("no json array found in model output")
	ErrMalformedJSON  = errors.New("malformed json in model output")
	ErrExport         = errors.New("workbook export failed")
	ErrLedgerWrite    = errors.New("usage ledger write failed")
	ErrTrialExhausted = errors.New("free trial exhausted")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
