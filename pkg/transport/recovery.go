package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server errors. The server keeps accepting requests
// after a recovered panic.
func Recovery() Middleware {
	return func(next ChatCreator) ChatCreator {
		return ChatCreatorFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("panic in chat handler",
						"request_id", RequestIDFromContext(ctx),
						"panic", fmt.Sprint(r),
						"stack", string(debug.Stack()),
					)
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.CreateChat(ctx, req, w)
		})
	}
}
