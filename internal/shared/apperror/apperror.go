package apperror

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ErrorCode string

const (
	CodeValidationFailed ErrorCode = "VAL_INVALID_INPUT"   // 400
	CodeUnauthorized     ErrorCode = "AUTH_UNAUTHORIZED"   // 401
	CodeForbidden        ErrorCode = "AUTH_FORBIDDEN"      // 403
	CodeInternalError    ErrorCode = "SYS_INTERNAL_ERROR"  // 500
	CodeNotFound         ErrorCode = "RES_NOT_FOUND"       // 404
	CodeConflict         ErrorCode = "BIZ_UPDATE_CONFLICT" // 409
)

// AppError is the typed error every handler knows how to render.
// Message is a single user-facing sentence.
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

// WithDetails returns a copy carrying extra details, leaving predefined errors untouched.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// Is matches on code so predefined errors work with errors.Is after WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(status int, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func NotFound(code ErrorCode, message string) *AppError {
	return New(http.StatusNotFound, code, message)
}

func BadRequest(code ErrorCode, message string) *AppError {
	return New(http.StatusBadRequest, code, message)
}

func Conflict(code ErrorCode, message string) *AppError {
	return New(http.StatusConflict, code, message)
}

// Validation wraps ozzo field errors (or any error) into VAL_INVALID_INPUT.
func Validation(err error) *AppError {
	appErr := BadRequest(CodeValidationFailed, "Invalid input")
	if err == nil {
		return appErr
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		details := make(map[string]interface{}, len(fields))
		for field, fieldErr := range fields {
			details[field] = fieldErr.Error()
		}
		appErr.Details = details
		return appErr
	}
	appErr.Message = err.Error()
	return appErr
}

func Internal(message string) *AppError {
	return New(http.StatusInternalServerError, CodeInternalError, message)
}

// As extracts an *AppError from the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
