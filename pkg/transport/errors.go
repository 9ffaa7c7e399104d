package transport

import (
	"errors"
	"net/http"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// HTTPStatusFromError maps an APIError to the HTTP status of the
// non-streaming path. Transport-level errors (body too large,
// unsupported content type) are handled by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	return err.HTTPStatus()
}

// AsAPIError returns err as an *api.APIError, wrapping anything else as a
// server error.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}

// WriteErrorText writes the error message as a plain-text body.
func WriteErrorText(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(message))
}

// WriteAPIError writes an APIError as plain text, deriving the HTTP
// status code from the error type. Upstream errors are prefixed with the
// upstream status so callers can tell them apart.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorText(w, ErrorText(apiErr), HTTPStatusFromError(apiErr))
}

// ErrorText renders the client-facing message for apiErr.
func ErrorText(apiErr *api.APIError) string {
	switch apiErr.Type {
	case api.ErrorTypeUpstream:
		if apiErr.StatusCode != 0 {
			return "upstream error (" + http.StatusText(apiErr.StatusCode) + "): " + apiErr.Message
		}
		return "upstream error: " + apiErr.Message
	case api.ErrorTypeConfiguration:
		return "configuration error: " + apiErr.Message
	default:
		return apiErr.Message
	}
}
