// Package upstreamtest provides a deterministic OpenAI-compatible Chat
// Completions server for tests and local runs. Responses are predictable:
// either scripted explicitly or derived from the last user message.
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	openai "github.com/sashabaranov/go-openai"
)

// CompletionsPath is the route served for chat completions, relative to
// the server root. Clients use "<server URL>/v1" as base URL.
const CompletionsPath = "/v1/chat/completions"

// Script controls what the server answers.
type Script struct {
	// Deltas are the content fragments of a streamed answer. The
	// non-streaming answer is their concatenation. Nil derives the answer
	// from the last user message.
	Deltas []string

	// PromptTokens reported in usage. Zero means 10. Completion tokens are
	// always len(Deltas).
	PromptTokens int

	// Status, when non-zero, answers every call with this HTTP status and
	// an OpenAI-style error body carrying Message.
	Status  int
	Message string

	// FailAfter, when positive, ends a stream with an error chunk after
	// that many deltas.
	FailAfter int

	// HoldOpen keeps a stream open after the last delta until the client
	// goes away.
	HoldOpen bool

	// ChunkDelay is slept before each streamed delta.
	ChunkDelay time.Duration
}

// Call records one request the server received.
type Call struct {
	Header  http.Header
	Request openai.ChatCompletionRequest
}

// Handler serves the deterministic upstream. It is safe for concurrent use.
type Handler struct {
	mu     sync.Mutex
	script Script
	calls  []Call
	router chi.Router
}

// NewHandler creates a Handler answering according to script.
func NewHandler(script Script) *Handler {
	h := &Handler{script: script}

	r := chi.NewRouter()
	r.Post(CompletionsPath, h.handleChatCompletions)
	r.Get("/v1/models", h.handleModels)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	h.router = r
	return h
}

// NewServer starts an httptest.Server around a new Handler and closes it
// when the test ends.
func NewServer(t testing.TB, script Script) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(script)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, h
}

// BaseURL returns the base URL an OpenAI client should use for srv.
func BaseURL(srv *httptest.Server) string {
	return srv.URL + "/v1"
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// SetScript replaces the script for subsequent calls.
func (h *Handler) SetScript(s Script) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = s
}

// Calls returns a copy of the recorded calls.
func (h *Handler) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns how many completion calls were received.
func (h *Handler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *Handler) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	h.mu.Lock()
	h.calls = append(h.calls, Call{Header: r.Header.Clone(), Request: req})
	script := h.script
	h.mu.Unlock()

	if script.Status != 0 {
		writeError(w, script.Status, script.Message)
		return
	}

	deltas := script.Deltas
	if deltas == nil {
		deltas = answerFor(&req)
	}
	usage := usageFor(script, deltas)

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	if req.Stream {
		h.stream(w, r, &req, script, model, deltas, usage)
		return
	}

	resp := openai.ChatCompletionResponse{
		ID:      "chatcmpl-mock-text",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: strings.Join(deltas, ""),
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: usage,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, req *openai.ChatCompletionRequest,
	script Script, model string, deltas []string, usage openai.Usage) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(chunk openai.ChatCompletionStreamResponse) bool {
		chunk.ID = "chatcmpl-mock-stream"
		chunk.Object = "chat.completion.chunk"
		chunk.Model = model
		data, _ := json.Marshal(chunk)
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	// Role chunk.
	if !emit(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		Delta: openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant},
	}}}) {
		return
	}

	for i, d := range deltas {
		if script.FailAfter > 0 && i == script.FailAfter {
			msg := script.Message
			if msg == "" {
				msg = "upstream stream interrupted"
			}
			fmt.Fprintf(w, "data: {\"error\":{\"message\":%q,\"type\":\"server_error\"}}\n\n", msg)
			_ = rc.Flush()
			return
		}
		if script.ChunkDelay > 0 {
			select {
			case <-time.After(script.ChunkDelay):
			case <-r.Context().Done():
				return
			}
		}
		if !emit(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
			Delta: openai.ChatCompletionStreamChoiceDelta{Content: d},
		}}}) {
			return
		}
	}

	if script.HoldOpen {
		<-r.Context().Done()
		return
	}

	if !emit(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{{
		FinishReason: openai.FinishReasonStop,
	}}}) {
		return
	}

	if req.StreamOptions != nil && req.StreamOptions.IncludeUsage {
		u := usage
		if !emit(openai.ChatCompletionStreamResponse{Choices: []openai.ChatCompletionStreamChoice{}, Usage: &u}) {
			return
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	_ = rc.Flush()
}

func (h *Handler) handleModels(w http.ResponseWriter, _ *http.Request) {
	resp := openai.ModelsList{Models: []openai.Model{{ID: "mock-model", Object: "model", OwnedBy: "chatrelay-mock"}}}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	body := map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "server_error",
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// answerFor picks the canned answer from the last user message.
func answerFor(req *openai.ChatCompletionRequest) []string {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == openai.ChatMessageRoleUser {
			last = strings.ToLower(req.Messages[i].Content)
			break
		}
	}

	switch {
	case strings.Contains(last, "count from 1 to 5"):
		return []string{"1", ", ", "2", ", ", "3", ", ", "4", ", ", "5"}
	case strings.Contains(last, "hello"):
		return []string{"Hel", "lo", " world"}
	default:
		return []string{"Hello", ", ", "nice", " ", "day", "!"}
	}
}

func usageFor(s Script, deltas []string) openai.Usage {
	prompt := s.PromptTokens
	if prompt == 0 {
		prompt = 10
	}
	return openai.Usage{
		PromptTokens:     prompt,
		CompletionTokens: len(deltas),
		TotalTokens:      prompt + len(deltas),
	}
}
