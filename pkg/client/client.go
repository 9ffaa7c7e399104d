package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lucidbot/chatrelay/pkg/api"
)

const (
	chatPath       = "/chat"
	chatStreamPath = "/chat/stream"

	// maxErrorBody bounds how much of a non-2xx body is kept in HTTPError.
	maxErrorBody = 64 << 10
)

// RequestOptions are per-call overrides sent with the conversation. Zero
// values leave the relay's defaults in place.
type RequestOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Client talks to a chatrelay server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	defaults   RequestOptions
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It must not impose an overall
// timeout shorter than the longest expected stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaults sets options applied to every call unless the call
// overrides them.
func WithDefaults(o RequestOptions) Option {
	return func(c *Client) { c.defaults = o }
}

// New creates a Client for the relay at baseURL, for example
// "http://localhost:8080" or "https://host/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs a non-streaming completion and returns the message text.
func (c *Client) Send(ctx context.Context, conv api.Conversation, opts RequestOptions) (string, error) {
	res, err := c.post(ctx, chatPath, conv, opts, "application/json")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out api.ChatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("chatrelay: decode response: %w", err)
	}
	return out.Message, nil
}

// OpenStream posts conv to the streaming route and consumes the event
// stream. onDelta is called synchronously for each text increment in
// arrival order. When the body ends normally onComplete receives the full
// text exactly once and nil is returned. An in-band error frame yields a
// *StreamError; a non-2xx answer yields an *HTTPError. If ctx is cancelled
// no further callback fires and ctx.Err() is returned.
func (c *Client) OpenStream(ctx context.Context, conv api.Conversation, onDelta func(string), onComplete func(string), opts RequestOptions) error {
	return c.StreamInto(ctx, conv, new(Accumulator), onDelta, onComplete, opts)
}

// StreamInto is OpenStream with a caller-owned accumulator, so a UI can
// read acc.Snapshot while the reply arrives and after a failure. acc must
// be fresh; it is frozen when the stream completes.
func (c *Client) StreamInto(ctx context.Context, conv api.Conversation, acc *Accumulator, onDelta func(string), onComplete func(string), opts RequestOptions) error {
	if acc == nil {
		acc = new(Accumulator)
	}
	res, err := c.post(ctx, chatStreamPath, conv, opts, api.EventStreamMIME)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var (
		dec FrameDecoder
		buf = make([]byte, 4096)
	)

	handle := func(record string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, ok := dataPayload(record)
		if !ok {
			c.logger.Debug("skipping record without data line", "record", record)
			return nil
		}
		frame, err := api.DecodeFrame(strings.TrimSpace(payload))
		if err != nil {
			c.logger.Warn("skipping malformed frame", "error", err.Error())
			return nil
		}
		switch frame.Kind {
		case api.FrameError:
			return &StreamError{Message: frame.Text, StackTrace: frame.StackTrace}
		case api.FrameDelta:
			acc.Append(frame.Text)
			if onDelta != nil {
				onDelta(frame.Text)
			}
		}
		// Done is handled when the body closes; keep-alives carry nothing.
		return nil
	}

	for {
		n, readErr := res.Body.Read(buf)
		if n > 0 {
			for _, record := range dec.Feed(buf[:n]) {
				if err := handle(record); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !errors.Is(readErr, io.EOF) {
				return fmt.Errorf("chatrelay: read stream: %w", readErr)
			}
			if rest, ok := dec.Flush(); ok {
				if err := handle(rest); err != nil {
					return err
				}
			}
			turn := acc.Freeze()
			if onComplete != nil {
				onComplete(turn.Content)
			}
			return nil
		}
	}
}

// post sends the chat request and returns the response when the status is
// 2xx. Otherwise the body is drained into an *HTTPError.
func (c *Client) post(ctx context.Context, path string, conv api.Conversation, opts RequestOptions, accept string) (*http.Response, error) {
	body, err := json.Marshal(c.buildRequest(conv, opts))
	if err != nil {
		return nil, fmt.Errorf("chatrelay: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chatrelay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("chatrelay: %s: %w", path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return res, nil
}

func (c *Client) buildRequest(conv api.Conversation, opts RequestOptions) *api.ChatRequest {
	req := &api.ChatRequest{Messages: conv}

	req.Model = c.defaults.Model
	if opts.Model != "" {
		req.Model = opts.Model
	}

	maxTokens := c.defaults.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	req.Temperature = c.defaults.Temperature
	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	}
	return req
}
