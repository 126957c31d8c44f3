package error

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeInvalidCredentials ErrorCode = "AUTH_1001"
	ErrCodeInvalidToken       ErrorCode = "AUTH_1003"
	ErrCodeTokenExpired       ErrorCode = "AUTH_1004"
	ErrCodeRefreshFailed      ErrorCode = "AUTH_1006"
	ErrCodeRegistration       ErrorCode = "AUTH_1007"
	ErrCodeNoRefreshToken     ErrorCode = "AUTH_1009"

	// Validation errors (2xxx)
	ErrCodeInvalidEmail    ErrorCode = "VALID_2001"
	ErrCodeInvalidPassword ErrorCode = "VALID_2002"
	ErrCodeInvalidRequest  ErrorCode = "VALID_2005"

	// Rate limiting errors (3xxx)
	ErrCodeRateLimitExceeded ErrorCode = "RATE_3001"

	// Server errors (6xxx)
	ErrCodeInternalServerError  ErrorCode = "SERVER_6001"
	ErrCodeConfigurationError   ErrorCode = "SERVER_6003"
	ErrCodeExternalServiceError ErrorCode = "SERVER_6004"

	// Security errors (7xxx)
	ErrCodeUnauthorizedAccess ErrorCode = "SEC_7003"

	// Session lifecycle errors (8xxx)
	ErrCodeInvalidTransition ErrorCode = "SESSION_8001"
	ErrCodeLogoutFailed      ErrorCode = "SESSION_8002"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code so callers can test against the
// constructors' zero-detail values.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// ErrInvalidCredentials is a credential rejection. message is the server's
// text and is shown to the user verbatim.
func ErrInvalidCredentials(message string) *AppError {
	return NewAppError(ErrCodeInvalidCredentials, message, "", nil)
}

func ErrRegistrationFailed(message string) *AppError {
	return NewAppError(ErrCodeRegistration, message, "", nil)
}

func ErrInvalidToken(details string) *AppError {
	return NewAppError(ErrCodeInvalidToken, "Invalid token", details, nil)
}

func ErrTokenExpired(details string) *AppError {
	return NewAppError(ErrCodeTokenExpired, "Token has expired", details, nil)
}

func ErrRefreshFailed(details string, cause error) *AppError {
	return NewAppError(ErrCodeRefreshFailed, "Session refresh failed", details, cause)
}

func ErrNoRefreshToken() *AppError {
	return NewAppError(ErrCodeNoRefreshToken, "No refresh token available", "", nil)
}

func ErrInvalidEmail(email string) *AppError {
	return NewAppError(ErrCodeInvalidEmail, "Invalid email format", fmt.Sprintf("Email: %s", email), nil)
}

func ErrInvalidPassword(details string) *AppError {
	return NewAppError(ErrCodeInvalidPassword, "Invalid password", details, nil)
}

func ErrMissingField(field string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, "Missing required field", fmt.Sprintf("Field: %s", field), nil)
}

func ErrRateLimitExceeded(attempts int, window string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, "Too many requests", fmt.Sprintf("Attempts: %d, Window: %s", attempts, window), nil)
}

func ErrInternalServerError(details string, cause error) *AppError {
	return NewAppError(ErrCodeInternalServerError, "Internal server error", details, cause)
}

func ErrConfigurationError(config string) *AppError {
	return NewAppError(ErrCodeConfigurationError, "Configuration error", fmt.Sprintf("Config: %s", config), nil)
}

func ErrExternalService(service string, status int, cause error) *AppError {
	return NewAppError(ErrCodeExternalServiceError, "Upstream service error", fmt.Sprintf("Service: %s, Status: %d", service, status), cause)
}

func ErrUnauthorizedAccess(details string) *AppError {
	return NewAppError(ErrCodeUnauthorizedAccess, "Access denied", details, nil)
}

func ErrInvalidTransition(from, op string) *AppError {
	return NewAppError(ErrCodeInvalidTransition, "Invalid session transition", fmt.Sprintf("%s from %s", op, from), nil)
}

func ErrLogoutFailed(cause error) *AppError {
	return NewAppError(ErrCodeLogoutFailed, "Server logout failed", "", cause)
}

// GetHTTPStatusCode maps an error to the status an HTTP surface should use.
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	code := string(appErr.Code)
	switch {
	case strings.HasPrefix(code, "AUTH_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(code, "VALID_"):
		return http.StatusBadRequest
	case strings.HasPrefix(code, "RATE_"):
		return http.StatusTooManyRequests
	case appErr.Code == ErrCodeExternalServiceError:
		return http.StatusBadGateway
	case strings.HasPrefix(code, "SEC_"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "SESSION_"):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code carried by err, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
