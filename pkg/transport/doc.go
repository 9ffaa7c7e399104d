// Package transport defines the handler contract and middleware chain
// between the HTTP layer and the chat relay.
//
// # Handler Interfaces
//
// ChatCreator handles the create-chat operation. The transport decodes a
// request into an api.ChatRequest, marks it as streaming or not from the
// route, and hands it over together with a ResponseWriter. StatusReporter
// is optional and backs the diagnostic status route.
//
// The ResponseWriter interface abstracts streaming and non-streaming
// output, so the relay can emit SSE frames or one JSON document without
// knowing the underlying protocol.
//
// # Middleware
//
// The middleware chain wraps ChatCreator with cross-cutting concerns:
// panic recovery, request ID assignment (X-Request-ID) and structured
// logging via log/slog.
package transport
