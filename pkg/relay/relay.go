package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/observability"
	"github.com/lucidbot/chatrelay/pkg/provider"
	"github.com/lucidbot/chatrelay/pkg/transport"
)

// Relay forwards chat requests to an upstream provider.
type Relay struct {
	provider provider.Provider
	cfg      Config
}

var (
	_ transport.ChatCreator    = (*Relay)(nil)
	_ transport.StatusReporter = (*Relay)(nil)
)

// New creates a Relay. The provider must not be nil.
func New(p provider.Provider, cfg Config) (*Relay, error) {
	if p == nil {
		return nil, fmt.Errorf("relay: provider must not be nil")
	}
	return &Relay{provider: p, cfg: cfg}, nil
}

// CreateChat dispatches to Complete or StreamComplete depending on
// req.Stream.
func (r *Relay) CreateChat(ctx context.Context, req *api.ChatRequest, w transport.ResponseWriter) error {
	if req != nil && req.Stream {
		return r.StreamComplete(ctx, req, w)
	}

	resp, err := r.Complete(ctx, req)
	if err != nil {
		return err
	}
	return w.WriteResponse(ctx, resp)
}

// Status reports that the relay is up and which credential format is in
// use. Key material is never included.
func (r *Relay) Status(context.Context) *api.StatusResponse {
	label := r.cfg.CredentialLabel
	if label == "" {
		label = "(unset)"
	}
	return &api.StatusResponse{
		Message:    "API is working",
		Credential: label,
	}
}

// prepare validates req and builds the upstream request.
func (r *Relay) prepare(req *api.ChatRequest, stream bool) (*provider.Request, *api.APIError) {
	if apiErr := api.ValidateChatRequest(req); apiErr != nil {
		return nil, apiErr
	}
	if !r.cfg.CredentialConfigured {
		return nil, api.NewConfigurationError("upstream API key is not configured")
	}

	provReq, apiErr := r.buildRequest(req, stream)
	if apiErr != nil {
		return nil, apiErr
	}

	debug.Log("relay", "chat request",
		"turns", len(req.Messages),
		"forwarded", len(provReq.Messages),
		"model", provReq.Model,
		"max_tokens", provReq.MaxTokens,
		"stream", stream,
		"last", debug.Truncate(provReq.Messages[len(provReq.Messages)-1].Content, 80),
	)
	return provReq, nil
}

// Complete performs one upstream call and returns the full completion.
// Usage is passed through unchanged. There are no retries.
func (r *Relay) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	provReq, apiErr := r.prepare(req, false)
	if apiErr != nil {
		return nil, apiErr
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout())
	defer cancel()

	start := time.Now()
	resp, err := r.provider.Complete(ctx, provReq)
	observability.ObserveUpstream(r.provider.Name(), provReq.Model, start, err)
	if err != nil {
		return nil, upstreamFailure(ctx, err)
	}
	observability.RecordTokens(r.provider.Name(), provReq.Model, resp.Usage)

	debug.Log("relay", "completion received",
		"chars", len(resp.Text),
		"total_tokens", resp.Usage.TotalTokens,
		"finish_reason", resp.FinishReason,
	)

	return &api.ChatResponse{
		Message: resp.Text,
		Usage:   resp.Usage,
	}, nil
}

// StreamComplete relays the upstream stream to w. Validation and
// configuration failures are returned before anything is written. After
// Begin, failures end the stream with an error frame and the done frame,
// and nil is returned.
func (r *Relay) StreamComplete(ctx context.Context, req *api.ChatRequest, w transport.ResponseWriter) error {
	provReq, apiErr := r.prepare(req, true)
	if apiErr != nil {
		return apiErr
	}

	if err := w.Begin(ctx); err != nil {
		slog.Warn("stream could not begin", "error", err.Error())
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.timeout())
	defer cancel()

	start := time.Now()
	events, err := r.provider.Stream(ctx, provReq)
	if err != nil {
		observability.ObserveUpstream(r.provider.Name(), provReq.Model, start, err)
		r.failStream(w, upstreamFailure(ctx, err))
		return nil
	}

	var text strings.Builder
	usage, err := r.pump(ctx, events, w, &text)
	observability.ObserveUpstream(r.provider.Name(), provReq.Model, start, err)
	if err != nil {
		r.failStream(w, upstreamFailure(ctx, err))
		return nil
	}
	if usage != nil {
		observability.RecordTokens(r.provider.Name(), provReq.Model, *usage)
	}

	if err := w.WriteFrame(ctx, api.DoneFrame()); err != nil {
		slog.Debug("done frame not delivered", "error", err.Error())
	}

	debug.Log("relay", "stream completed",
		"chars", text.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// pump forwards delta events for choice 0 until the upstream reports
// completion. It returns the usage from the done event, if any.
func (r *Relay) pump(ctx context.Context, events <-chan provider.Event, w transport.ResponseWriter, text *strings.Builder) (*api.Usage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				// Closed without a done event; treat as exhaustion.
				return nil, nil
			}

			switch ev.Type {
			case provider.EventDelta:
				if ev.ChoiceIndex != 0 || ev.Delta == "" {
					continue
				}
				if err := w.WriteFrame(ctx, api.DeltaFrame(ev.Delta)); err != nil {
					return nil, fmt.Errorf("write delta: %w", err)
				}
				text.WriteString(ev.Delta)
			case provider.EventDone:
				return ev.Usage, nil
			case provider.EventError:
				return nil, ev.Err
			}
		}
	}
}

// failStream ends a begun stream in-band. Secondary failures are logged
// and swallowed; the client may already be gone.
func (r *Relay) failStream(w transport.ResponseWriter, apiErr *api.APIError) {
	slog.Warn("stream failed", "error", apiErr.Error())

	ctx := context.Background()
	if err := w.WriteFrame(ctx, api.ErrorFrame(apiErr.Message)); err != nil {
		slog.Debug("error frame not delivered", "error", err.Error())
		return
	}
	if err := w.WriteFrame(ctx, api.DoneFrame()); err != nil {
		slog.Debug("done frame not delivered", "error", err.Error())
	}
}

// upstreamFailure converts err into the relay error taxonomy. ctx is the
// upstream call context; its state distinguishes deadline from
// cancellation when the provider reports a bare context error.
func upstreamFailure(ctx context.Context, err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded) && errors.Is(err, context.Canceled):
		return api.NewUpstreamError(504, "upstream deadline exceeded")
	case errors.Is(err, context.Canceled):
		return api.NewServerError("request cancelled")
	default:
		return api.NewServerError(err.Error())
	}
}
