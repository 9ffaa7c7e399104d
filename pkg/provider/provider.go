package provider

import "context"

// Provider abstracts an upstream chat-completion backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Complete performs one non-streaming completion call.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream opens an incremental completion. The returned channel receives
	// Event values and is closed by the provider after a Done or Error
	// event, or once ctx is cancelled.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Close releases provider resources (HTTP clients, connections).
	Close() error
}
