package common

import (
	"errors"
	"fmt"
	"time"
)

// Kind groups error codes into the failure classes surfaced to callers.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAdmission   Kind = "admission"
	KindAcquisition Kind = "acquisition"
	KindExtraction  Kind = "extraction"
	KindPersistence Kind = "persistence"
	KindInternal    Kind = "internal"
)

// Error codes. Stored verbatim in extraction_jobs.error_code.
const (
	CodeUnsupportedType     = "UNSUPPORTED_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeSignatureMismatch   = "SIGNATURE_MISMATCH"
	CodeTooManyPages        = "TOO_MANY_PAGES"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeAlreadyConfirmed    = "ALREADY_CONFIRMED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeDailyQuota          = "DAILY_QUOTA"
	CodeTenantQuota         = "TENANT_QUOTA"
	CodeOCRFailed           = "OCR_FAILED"
	CodeEngineDisabled      = "ENGINE_DISABLED"
	CodeEngineNotConfigured = "ENGINE_NOT_CONFIGURED"
	CodeEngineFailed        = "ENGINE_FAILED"
	CodeDocumentUnreadable  = "DOCUMENT_UNREADABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodePersistenceFailed   = "PERSISTENCE_FAILED"
	CodeConfig              = "CONFIG_ERROR"
	CodeInternal            = "INTERNAL"
)

var codeKinds = map[string]Kind{
	CodeUnsupportedType:     KindValidation,
	CodeFileTooLarge:        KindValidation,
	CodeSignatureMismatch:   KindValidation,
	CodeTooManyPages:        KindValidation,
	CodeInvalidPayload:      KindValidation,
	CodeAlreadyConfirmed:    KindValidation,
	CodeNotFound:            KindValidation,
	CodeUnauthorized:        KindValidation,
	CodeConfig:              KindValidation,
	CodeRateLimited:         KindAdmission,
	CodeDailyQuota:          KindAdmission,
	CodeTenantQuota:         KindAdmission,
	CodeOCRFailed:           KindAcquisition,
	CodeDocumentUnreadable:  KindAcquisition,
	CodeEngineDisabled:      KindExtraction,
	CodeEngineNotConfigured: KindExtraction,
	CodeEngineFailed:        KindExtraction,
	CodePersistenceFailed:   KindPersistence,
	CodeInternal:            KindInternal,
}

// AppError represents application-specific errors
type AppError struct {
	Code       string
	Message    string
	Cause      error
	RetryAfter time.Duration
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

// Kind returns the failure class of the error code.
func (e *AppError) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrQuota        = errors.New("quota exceeded")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAdmissionError builds a quota/rate error carrying a retry hint.
func NewAdmissionError(code, message string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Cause:      ErrQuota,
		RetryAfter: retryAfter,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// AsAppError unwraps err into an *AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(CodeNotFound, "not found", err)
	case errors.Is(err, ErrUnauthorized):
		return NewAppError(CodeUnauthorized, "unauthorized", err)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return NewAppError(CodeInvalidPayload, "invalid payload", err)
	case errors.Is(err, ErrDatabase):
		return NewAppError(CodePersistenceFailed, "persistence failed", err)
	}
	return NewAppError(CodeInternal, "internal error", err)
}

// HasCode reports whether err is an *AppError with the given code.
func HasCode(err error, code string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}
