package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// Logging returns middleware that emits one structured log entry per
// relay call with request ID, turn count, stream flag and duration.
// Errors returned after streaming started were already reported in-band
// and are logged at warn level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ChatCreator) ChatCreator {
		return ChatCreatorFunc(func(ctx context.Context, req *api.ChatRequest, w ResponseWriter) error {
			start := time.Now()

			err := next.CreateChat(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Int("turns", len(req.Messages)),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			switch {
			case err == nil:
				logger.LogAttrs(ctx, slog.LevelInfo, "chat completed", attrs...)
			case w.Started():
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelWarn, "chat failed after streaming began", attrs...)
			default:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "chat failed", attrs...)
			}

			return err
		})
	}
}
