package transport

import (
	"context"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// ChatCreator handles the create-chat operation. The implementation
// receives a request and writes the result (stream frames or a complete
// response) to the ResponseWriter.
//
// Errors returned before anything was written are answered by the
// transport with a status code. Once streaming has begun the
// implementation is expected to report failures in-band.
type ChatCreator interface {
	CreateChat(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error
}

// ChatCreatorFunc is an adapter that allows using an ordinary function
// as a ChatCreator.
type ChatCreatorFunc func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error

// CreateChat calls f(ctx, req, w).
func (f ChatCreatorFunc) CreateChat(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
	return f(ctx, req, w)
}

// StatusReporter reports whether the relay is configured, without
// exposing credentials.
type StatusReporter interface {
	Status(ctx context.Context) *api.StatusResponse
}

// ResponseWriter abstracts streaming and non-streaming output.
//
// Begin/WriteFrame and WriteResponse are mutually exclusive on a single
// writer instance. Calling WriteFrame after the done frame returns an
// error.
type ResponseWriter interface {
	// Begin commits the streaming headers and writes the keep-alive frame.
	// Calling it more than once is a no-op.
	Begin(ctx context.Context) error

	// WriteFrame writes and flushes one stream frame. It calls Begin if
	// that has not happened yet.
	WriteFrame(ctx context.Context, frame api.StreamFrame) error

	// WriteResponse sends a complete non-streaming response.
	WriteResponse(ctx context.Context, resp *api.ChatResponse) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error

	// Started reports whether any byte of the response has been committed.
	Started() bool
}
