package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldErrors maps a json field name to its validation messages.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

type Error struct {
	Code    string
	Message string
	Status  int
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code, message string, status int, err error) *Error {
	return &Error{Code: code, Message: message, Status: status, Err: err}
}

func BadRequest(message string, err error) *Error {
	return New("BAD_REQUEST", message, http.StatusBadRequest, err)
}

// Validation carries per-field messages; rendered as 422 with an "errors" object.
func Validation(fields FieldErrors) *Error {
	return &Error{
		Code:    "VALIDATION_ERROR",
		Message: "Validation error",
		Status:  http.StatusUnprocessableEntity,
		Fields:  fields,
	}
}

// Field is shorthand for a single-field validation error.
func Field(field, msg string) *Error {
	fe := FieldErrors{}
	fe.Add(field, msg)
	return Validation(fe)
}

func Unauthorized(message string) *Error {
	return New("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func Forbidden(message string) *Error {
	return New("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NotFound(resource string, err error) *Error {
	return New("NOT_FOUND", resource+" not found", http.StatusNotFound, err)
}

func Conflict(message string) *Error {
	return New("CONFLICT", message, http.StatusConflict, nil)
}

func Internal(message string, err error) *Error {
	return New("INTERNAL_ERROR", message, http.StatusInternalServerError, err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status for err, 500 for foreign errors.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
