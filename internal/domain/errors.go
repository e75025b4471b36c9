package domain

import (
	"errors"
	"fmt"
)

// Error codes carried by AppError.
const (
	CodeConfiguration  = "CONFIGURATION"
	CodeTransientModel = "TRANSIENT_MODEL"
	CodeValidation     = "VALIDATION"
	CodeNotFound       = "NOT_FOUND"
	CodeExtraction     = "EXTRACTION"
)

// Sentinels for errors.Is checks. An AppError matches the sentinel of its code.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrTransientModel = errors.New("transient model error")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("resource not found")
	ErrExtraction     = errors.New("extraction failed")
)

var codeSentinels = map[string]error{
	CodeConfiguration:  ErrConfiguration,
	CodeTransientModel: ErrTransientModel,
	CodeValidation:     ErrValidation,
	CodeNotFound:       ErrNotFound,
	CodeExtraction:     ErrExtraction,
}

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

// Is reports whether target is the sentinel for e's code.
func (e *AppError) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// NewConfigurationError is returned when a required credential or setting is
// absent. It is never retried.
func NewConfigurationError(message string) *AppError {
	return &AppError{Code: CodeConfiguration, Message: message}
}

// NewTransientModelError wraps a model call failure that may succeed on retry.
func NewTransientModelError(message string, cause error) *AppError {
	return &AppError{Code: CodeTransientModel, Message: message, Cause: cause}
}

// NewValidationError reports bad input. Jobs failing with it are not retried.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewNotFoundError is used both for missing records and records owned by
// another user.
func NewNotFoundError(entity string) *AppError {
	return &AppError{Code: CodeNotFound, Message: entity + " not found"}
}

// NewExtractionError wraps the final cause of a failed extraction.
func NewExtractionError(cause error) *AppError {
	return &AppError{Code: CodeExtraction, Message: "image analysis failed", Cause: cause}
}

// IsConfiguration reports whether err is, or wraps, a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
