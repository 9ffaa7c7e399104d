package transport

import (
	"context"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. An ID already in the context (set by the HTTP adapter from
// the X-Request-ID header) is kept.
func RequestID() Middleware {
	return func(next ChatCreator) ChatCreator {
		return ChatCreatorFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.CreateChat(ctx, req, w)
		})
	}
}
