package client

import "fmt"

// HTTPError is returned when the relay answers with a non-2xx status.
// Body holds the plain-text error message the relay sent.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("chatrelay: unexpected status %d: %s", e.StatusCode, e.Body)
}

// StreamError is returned when the relay reports a failure in-band with an
// error frame. Text received before the error was already delivered
// through the delta callback.
type StreamError struct {
	Message    string
	StackTrace string
}

func (e *StreamError) Error() string {
	return "chatrelay: stream error: " + e.Message
}
