package openaicompat

import (
	"math"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/provider"
)

// TranslateRequest converts a provider.Request into a go-openai request.
// When streaming, usage reporting in the stream is requested.
func TranslateRequest(req *provider.Request, stream bool) openai.ChatCompletionRequest {
	cr := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	// go-openai drops a zero temperature through omitempty.
	if req.Temperature == 0 {
		cr.Temperature = math.SmallestNonzeroFloat32
	}
	if stream {
		cr.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return cr
}

// TranslateResponse converts a go-openai response into a provider.Response.
// Usage is passed through unchanged. A response without choices is a
// protocol error.
func TranslateResponse(resp *openai.ChatCompletionResponse) (*provider.Response, *api.APIError) {
	if len(resp.Choices) == 0 {
		return nil, api.NewUpstreamError(http.StatusBadGateway, "upstream returned no choices")
	}

	choice := resp.Choices[0]
	for _, c := range resp.Choices {
		if c.Index == 0 {
			choice = c
			break
		}
	}

	return &provider.Response{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: api.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// TranslateChunk converts one stream chunk into delta events, one per
// choice carrying non-empty content. Role-only and finish chunks yield
// nothing.
func TranslateChunk(chunk *openai.ChatCompletionStreamResponse) []provider.Event {
	var events []provider.Event
	for _, choice := range chunk.Choices {
		if choice.Delta.Content == "" {
			continue
		}
		events = append(events, provider.Event{
			Type:        provider.EventDelta,
			ChoiceIndex: choice.Index,
			Delta:       choice.Delta.Content,
		})
	}
	return events
}
