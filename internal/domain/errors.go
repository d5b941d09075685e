package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below unwrap to exactly one of these.
var (
	ErrValidation                  = errors.New("validation failed")
	ErrConversion                  = errors.New("document conversion failed")
	ErrServiceConfiguration        = errors.New("extraction service is not configured")
	ErrServiceUnavailable          = errors.New("extraction service unavailable")
	ErrMalformedExtractionResponse = errors.New("malformed extraction response")
)

// Specific causes.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrNoFiles             = errors.New("no files submitted")
	ErrTooManyFiles        = errors.New("too many files submitted")
	ErrToolNotFound        = errors.New("external tool not found")
)

// ValidationError is a rejected upload. Message is user-facing.
type ValidationError struct {
	FileName string
	Message  string
	Cause    error
}

func (e *ValidationError) Error() string {
	if e.FileName == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.FileName, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Cause}
}

// ConversionError is a rasterization or image conversion failure.
type ConversionError struct {
	Stage string
	Cause error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed during %s: %v", e.Stage, e.Cause)
}

func (e *ConversionError) Unwrap() []error {
	return []error{ErrConversion, e.Cause}
}

// ServiceConfigurationError reports missing provider credentials or settings.
type ServiceConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ServiceConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ServiceConfigurationError) Unwrap() error {
	return ErrServiceConfiguration
}

// ServiceUnavailableError is a network or non-2xx failure from a provider.
type ServiceUnavailableError struct {
	Provider   string
	StatusCode int
	Cause      error
}

func (e *ServiceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
}

func (e *ServiceUnavailableError) Unwrap() []error {
	return []error{ErrServiceUnavailable, e.Cause}
}

// MalformedResponseError carries the span that failed to parse.
type MalformedResponseError struct {
	Span  string
	Cause error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("could not parse extraction reply: %v", e.Cause)
}

func (e *MalformedResponseError) Unwrap() []error {
	return []error{ErrMalformedExtractionResponse, e.Cause}
}

// FailureMessage renders a user-facing description of err for the envelope.
// It describes the failure kind and never includes internal detail for
// non-validation errors.
func FailureMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrConversion):
		return "Could not convert the document to images. Please upload a different file."
	case errors.Is(err, ErrServiceConfiguration):
		return "Extraction service is not configured."
	case errors.Is(err, ErrServiceUnavailable):
		return "Extraction service is unavailable. Please try again."
	case errors.Is(err, ErrMalformedExtractionResponse):
		return "Extraction service returned an unreadable response."
	case errors.Is(err, ErrTooManyFiles), errors.Is(err, ErrNoFiles):
		return err.Error()
	default:
		return "Failed to extract policy data."
	}
}
