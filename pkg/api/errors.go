package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeConfiguration  ErrorType = "configuration_error"
	ErrorTypeUpstream       ErrorType = "upstream_error"
	ErrorTypeServerError    ErrorType = "server_error"
)

// APIError is the error taxonomy of the relay. StatusCode carries the
// upstream HTTP status for upstream errors and is zero otherwise.
type APIError struct {
	Type       ErrorType `json:"type"`
	Param      string    `json:"param,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Param != "":
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status: %d)", e.Type, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// HTTPStatus is the status the relay answers with for this error on the
// non-streaming path.
func (e *APIError) HTTPStatus() int {
	if e.Type == ErrorTypeInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewConfigurationError creates an APIError for missing or unusable
// process configuration, such as an absent upstream credential.
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewUpstreamError creates an APIError for a failed completion call.
func NewUpstreamError(statusCode int, message string) *APIError {
	return &APIError{
		Type:       ErrorTypeUpstream,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}
