package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/provider"
	"github.com/lucidbot/chatrelay/pkg/provider/openaicompat/upstreamtest"
)

func testRequest() *provider.Request {
	return &provider.Request{
		Model:       "mock-model",
		MaxTokens:   400,
		Temperature: 0.7,
		Messages: []provider.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "Say hello"},
		},
	}
}

func collect(t *testing.T, ch <-chan provider.Event) []provider.Event {
	t.Helper()
	var events []provider.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestClientComplete(t *testing.T) {
	srv, h := upstreamtest.NewServer(t, upstreamtest.Script{
		Deltas:       []string{"Hel", "lo", " world"},
		PromptTokens: 12,
	})
	c := NewClient(UpstreamConfig{APIKey: "sk-test", OrganizationID: "org-9", Endpoint: upstreamtest.BaseURL(srv)})

	resp, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Text != "Hello world" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 3 || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Error("usage total must equal prompt + completion")
	}

	calls := h.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	call := calls[0]
	if got := call.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}
	if got := call.Header.Get("OpenAI-Organization"); got != "org-9" {
		t.Errorf("OpenAI-Organization = %q", got)
	}
	if got := call.Header.Get("api-version"); got != "" {
		t.Errorf("standard keys must not send api-version, got %q", got)
	}
	if call.Request.MaxTokens != 400 || call.Request.Model != "mock-model" {
		t.Errorf("request = %+v", call.Request)
	}
	if len(call.Request.Messages) != 2 || call.Request.Messages[0].Content != "be brief" {
		t.Errorf("messages = %+v", call.Request.Messages)
	}
}

func TestClientCompleteUpstreamError(t *testing.T) {
	srv, _ := upstreamtest.NewServer(t, upstreamtest.Script{
		Status:  http.StatusUnauthorized,
		Message: "Incorrect API key provided",
	})
	c := NewClient(UpstreamConfig{APIKey: "sk-bad", Endpoint: upstreamtest.BaseURL(srv)})

	_, err := c.Complete(context.Background(), testRequest())

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *api.APIError", err)
	}
	if apiErr.Type != api.ErrorTypeUpstream || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("got %+v", apiErr)
	}
	if !strings.Contains(apiErr.Message, "Incorrect API key") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClientCompleteConnectionRefused(t *testing.T) {
	srv, _ := upstreamtest.NewServer(t, upstreamtest.Script{})
	endpoint := upstreamtest.BaseURL(srv)
	srv.Close()

	c := NewClient(UpstreamConfig{APIKey: "sk-test", Endpoint: endpoint})
	_, err := c.Complete(context.Background(), testRequest())

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *api.APIError", err)
	}
	if apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("Type = %s, want server_error", apiErr.Type)
	}
}

func TestClientStream(t *testing.T) {
	srv, h := upstreamtest.NewServer(t, upstreamtest.Script{Deltas: []string{"Hel", "lo", " world"}})
	c := NewClient(UpstreamConfig{APIKey: "sk-test", Endpoint: upstreamtest.BaseURL(srv)})

	ch, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	events := collect(t, ch)

	var text strings.Builder
	var deltas int
	for _, ev := range events {
		if ev.Type == provider.EventDelta {
			deltas++
			text.WriteString(ev.Delta)
		}
	}
	if deltas != 3 || text.String() != "Hello world" {
		t.Errorf("deltas = %d, text = %q", deltas, text.String())
	}

	last := events[len(events)-1]
	if last.Type != provider.EventDone {
		t.Fatalf("last event = %s, want done", last.Type)
	}
	if last.Usage == nil || last.Usage.CompletionTokens != 3 {
		t.Errorf("usage = %+v", last.Usage)
	}

	if calls := h.Calls(); len(calls) != 1 || !calls[0].Request.Stream {
		t.Errorf("upstream should receive one streaming call")
	}
}

func TestClientStreamUpstreamError(t *testing.T) {
	srv, _ := upstreamtest.NewServer(t, upstreamtest.Script{Status: http.StatusTooManyRequests, Message: "rate limited"})
	c := NewClient(UpstreamConfig{APIKey: "sk-test", Endpoint: upstreamtest.BaseURL(srv)})

	_, err := c.Stream(context.Background(), testRequest())

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *api.APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}

func TestClientStreamCancel(t *testing.T) {
	srv, _ := upstreamtest.NewServer(t, upstreamtest.Script{Deltas: []string{"a"}, HoldOpen: true})
	c := NewClient(UpstreamConfig{APIKey: "sk-test", Endpoint: upstreamtest.BaseURL(srv)})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Stream(ctx, testRequest())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	ev := <-ch
	if ev.Type != provider.EventDelta || ev.Delta != "a" {
		t.Fatalf("first event = %+v", ev)
	}
	cancel()

	// The channel must close without a Done event.
	for ev := range ch {
		if ev.Type == provider.EventDone {
			t.Error("no done event expected after cancellation")
		}
	}
}

func TestClientName(t *testing.T) {
	c := NewClient(UpstreamConfig{APIKey: "sk-proj-abc"})
	if c.Name() != "openai" {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.Route().ModelOverride != ProjectModel {
		t.Errorf("route = %+v", c.Route())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
