package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// MapError converts an error returned by go-openai into an APIError.
//
//   - *openai.APIError (upstream answered with an error body) and
//     *openai.RequestError (non-2xx without a parseable body) become
//     upstream errors carrying the upstream status.
//   - A deadline expiry becomes an upstream error with 504.
//   - Anything else (connection refused, DNS, cancellation) is a server
//     error.
func MapError(err error) *api.APIError {
	if err == nil {
		return nil
	}

	var already *api.APIError
	if errors.As(err, &already) {
		return already
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = statusMessage(apiErr.HTTPStatusCode)
		}
		return api.NewUpstreamError(apiErr.HTTPStatusCode, msg)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := statusMessage(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return api.NewUpstreamError(reqErr.HTTPStatusCode, msg)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewUpstreamError(http.StatusGatewayTimeout, "upstream deadline exceeded")
	}

	return api.NewServerError(fmt.Sprintf("upstream connection error: %s", err.Error()))
}

func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("upstream returned %d %s", code, text)
	}
	return fmt.Sprintf("upstream returned status %d", code)
}
