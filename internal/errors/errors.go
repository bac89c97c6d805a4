package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies a failure for callers at the request boundary.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInvalidInput         Kind = "invalid_input"
	KindInsufficientResource Kind = "insufficient_resource"
	KindConflict             Kind = "conflict"
	KindForbidden            Kind = "forbidden"
	KindAlreadyExpired       Kind = "already_expired"
	KindDatabase             Kind = "database"
	KindRateLimited          Kind = "rate_limited"
	KindExternal             Kind = "external"
)

type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or an empty kind for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return ""
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:        "E101",
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("%s not found", what),
		UserMessage: fmt.Sprintf("%s not found", what),
		Severity:    SeverityLow,
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Kind:        KindInvalidInput,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid request. %s", msg),
		Severity:    SeverityLow,
	}
}

func NewInsufficientError(resource string, need, have int64) *AppError {
	return &AppError{
		Code:        "E102",
		Kind:        KindInsufficientResource,
		Message:     fmt.Sprintf("insufficient %s: need %d, have %d", resource, need, have),
		UserMessage: fmt.Sprintf("Not enough %s", resource),
		Severity:    SeverityLow,
	}
}

func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        "E103",
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: "This action has already been done",
		Severity:    SeverityLow,
	}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{
		Code:        "E104",
		Kind:        KindForbidden,
		Message:     msg,
		UserMessage: "Your account is blocked",
		Severity:    SeverityMedium,
	}
}

func NewExpiredError(what string) *AppError {
	return &AppError{
		Code:        "E105",
		Kind:        KindAlreadyExpired,
		Message:     fmt.Sprintf("%s has expired", what),
		UserMessage: fmt.Sprintf("This %s has expired", what),
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Kind:        KindDatabase,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Kind:        KindExternal,
		Message:     fmt.Sprintf("External API error: %s", apiName),
		UserMessage: "Service temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Kind:        KindRateLimited,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
	}
}
