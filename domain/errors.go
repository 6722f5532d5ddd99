package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ApiError is an application error that maps onto an HTTP status.
type ApiError struct {
	Status  int
	Message string
	Details string
}

func (e *ApiError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Details)
}

func NewApiError(status int, message string, details string) *ApiError {
	return &ApiError{Status: status, Message: message, Details: details}
}

func ErrBadRequest(message, details string) *ApiError {
	return NewApiError(http.StatusBadRequest, message, details)
}

func ErrUnauthorized(message, details string) *ApiError {
	return NewApiError(http.StatusUnauthorized, message, details)
}

func ErrForbidden(message, details string) *ApiError {
	return NewApiError(http.StatusForbidden, message, details)
}

func ErrNotFound(message, details string) *ApiError {
	return NewApiError(http.StatusNotFound, message, details)
}

// ErrConfiguration signals a server-side misconfiguration, not a bad request.
func ErrConfiguration(message, details string) *ApiError {
	return NewApiError(http.StatusInternalServerError, message, details)
}

// AsApiError unwraps err to an *ApiError if there is one in the chain.
func AsApiError(err error) (*ApiError, bool) {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for anything untyped.
func StatusOf(err error) int {
	if apiErr, ok := AsApiError(err); ok {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// ErrInternal marks a bug on this side, such as a malformed local URI.
func ErrInternal(message, details string) *ApiError {
	return NewApiError(http.StatusInternalServerError, message, details)
}
