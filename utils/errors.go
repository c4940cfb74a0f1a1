package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeDuplicateEmail    = "DUPLICATE_EMAIL"
	CodeDuplicate         = "DUPLICATE_RESOURCE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeTableOccupied     = "TABLE_OCCUPIED"
	CodePlatformError     = "PLATFORM_ERROR"
)

// AppError is an operational error that knows its HTTP status and public code.
type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// WithCode returns a copy of e carrying a more specific code.
func (e *AppError) WithCode(code string) *AppError {
	return &AppError{Status: e.Status, Code: code, Message: e.Message}
}

func NewValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func NewConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

func NewRateLimitError() *AppError {
	return &AppError{Status: http.StatusTooManyRequests, Code: CodeRateLimit, Message: "too many requests, slow down"}
}

// NewPlatformError reports a failure of an upstream delivery platform.
func NewPlatformError(format string, args ...interface{}) *AppError {
	return &AppError{Status: http.StatusBadGateway, Code: CodePlatformError, Message: fmt.Sprintf(format, args...)}
}

func NewInternalError(message string) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: message}
}

// BindError turns a gin binding failure into a validation error.
func BindError(err error) *AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError("field %s failed on '%s'", fe.Field(), fe.Tag())
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return NewValidationError("request body is empty")
	case errors.As(err, &syntaxErr):
		return NewValidationError("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return NewValidationError("field %s has the wrong type", typeErr.Field)
	}
	return NewValidationError("%s", err.Error())
}

// AsAppError maps any error onto an AppError. Unknown errors become a generic 500.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NewNotFoundError("resource")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Status: http.StatusConflict, Code: CodeDuplicate, Message: "resource already exists"}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return NewConflictError("referenced resource does not exist or is still in use")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return BindError(err)
	}
	return NewInternalError("internal server error")
}
