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

// Common application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrValidation       = errors.New("validation failed")
	ErrStoreIO          = errors.New("store I/O failure")
	ErrExtractionFailed = errors.New("extraction failed")
)

// Error codes
const (
	CodeConfig           = "CONFIG_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeStoreIO          = "STORE_IO"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeHistory          = "HISTORY_ERROR"
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

// StoreIOError tags a tally file failure so callers can match ErrStoreIO
// while keeping the underlying cause.
func StoreIOError(op string, err error) *AppError {
	return NewAppError(CodeStoreIO, op, fmt.Errorf("%w: %w", ErrStoreIO, err))
}

// ExtractionError is returned once OCR retries are exhausted.
func ExtractionError(attempts int, err error) *AppError {
	return NewAppError(CodeExtractionFailed,
		fmt.Sprintf("gave up after %d attempts", attempts),
		fmt.Errorf("%w: %w", ErrExtractionFailed, err))
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}
