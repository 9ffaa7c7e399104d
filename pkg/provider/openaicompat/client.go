package openaicompat

import (
	"context"
	"errors"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/provider"
)

// Compile-time check that Client implements provider.Provider.
var _ provider.Provider = (*Client)(nil)

// Client performs chat-completion calls against an OpenAI-compatible
// upstream through go-openai.
type Client struct {
	api   *openai.Client
	route Route
}

// NewClient creates a Client for cfg. The credential route is resolved
// once here and applies to every call.
func NewClient(cfg UpstreamConfig) *Client {
	route := ResolveRoute(cfg)

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = route.BaseURL
	oc.OrgID = cfg.OrganizationID
	oc.HTTPClient = newHTTPClient(cfg.HTTPClient, route.Headers)

	debug.Log("upstream", "client configured",
		"base_url", route.BaseURL,
		"credential", route.Format.Redacted(),
		"model_override", route.ModelOverride,
	)

	return &Client{
		api:   openai.NewClientWithConfig(oc),
		route: route,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string { return "openai" }

// Route returns the resolved credential route.
func (c *Client) Route() Route { return c.route }

// Complete performs one non-streaming chat-completion call.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	chatReq := TranslateRequest(req, false)

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, MapError(err)
	}

	out, apiErr := TranslateResponse(&resp)
	if apiErr != nil {
		return nil, apiErr
	}
	return out, nil
}

// Stream opens a streaming chat-completion call. Errors that occur before
// the first chunk (connection, non-2xx status) are returned directly;
// later failures arrive as an EventError on the channel. The channel is
// closed when the stream completes, errors, or ctx is cancelled.
func (c *Client) Stream(ctx context.Context, req *provider.Request) (<-chan provider.Event, error) {
	chatReq := TranslateRequest(req, true)

	stream, err := c.api.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, MapError(err)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer stream.Close()

		var usage *api.Usage
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(ctx, ch, provider.Event{Type: provider.EventDone, Usage: usage})
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("upstream stream failed", "error", err.Error())
				send(ctx, ch, provider.Event{Type: provider.EventError, Err: MapError(err)})
				return
			}

			if chunk.Usage != nil {
				usage = &api.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}

			for _, ev := range TranslateChunk(&chunk) {
				if !send(ctx, ch, ev) {
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases client resources. go-openai holds no resources beyond
// the HTTP client's idle connections, which the transport reclaims.
func (c *Client) Close() error {
	return nil
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- provider.Event, ev provider.Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
