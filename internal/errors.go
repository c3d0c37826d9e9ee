package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeSelfPermission   ErrorCode = "SELF_PERMISSION"
	ErrCodeInvalidDecision  ErrorCode = "INVALID_DECISION"

	ErrCodePermissionNotFound     ErrorCode = "PERMISSION_NOT_FOUND"
	ErrCodeRequestAlreadyPending  ErrorCode = "REQUEST_ALREADY_PENDING"
	ErrCodeRequestAlreadyResolved ErrorCode = "REQUEST_ALREADY_RESOLVED"
	ErrCodeRequestExpired         ErrorCode = "REQUEST_EXPIRED"
	ErrCodeNotRequestTarget       ErrorCode = "NOT_REQUEST_TARGET"
	ErrCodePermissionBlocked      ErrorCode = "PERMISSION_BLOCKED"
	ErrCodeNotBlocker             ErrorCode = "NOT_BLOCKER"
	ErrCodeBlockNotFound          ErrorCode = "BLOCK_NOT_FOUND"
	ErrCodeSponsorMismatch        ErrorCode = "SPONSOR_MISMATCH"
	ErrCodeAdminRequired          ErrorCode = "ADMIN_REQUIRED"
	ErrCodeUserNotFound           ErrorCode = "USER_NOT_FOUND"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Sentinels are shared pointers; never call WithCause or WithDetails on them.
var (
	ErrSelfPermission  = NewValidationError("requester and target must be different users", ErrCodeSelfPermission)
	ErrInvalidDecision = NewValidationError("decision must be one of approved, rejected, blocked", ErrCodeInvalidDecision)

	ErrPermissionNotFound     = NewNotFoundError("Permission not found", ErrCodePermissionNotFound)
	ErrRequestAlreadyPending  = NewConflictError("a pending request already exists for this pair", ErrCodeRequestAlreadyPending)
	ErrRequestAlreadyResolved = NewConflictError("request has already been resolved", ErrCodeRequestAlreadyResolved)
	ErrRequestExpired         = NewConflictError("request expired before it was answered", ErrCodeRequestExpired)
	ErrNotRequestTarget       = NewForbiddenError("only the target of a request may respond to it", ErrCodeNotRequestTarget)
	ErrPermissionBlocked      = NewForbiddenError("messaging between these users is blocked", ErrCodePermissionBlocked)
	ErrNotBlocker             = NewForbiddenError("only the user who placed the block may remove it", ErrCodeNotBlocker)
	ErrBlockNotFound          = NewNotFoundError("no block exists between these users", ErrCodeBlockNotFound)
	ErrSponsorMismatch        = NewForbiddenError("only the sponsor or an administrator may renew these permissions", ErrCodeSponsorMismatch)
	ErrAdminRequired          = NewForbiddenError("administrator role required", ErrCodeAdminRequired)
	ErrUserNotFound           = NewNotFoundError("User not found", ErrCodeUserNotFound)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
