package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func TestInvalidJSON(t *testing.T) {
	resp := postRaw(t, testEnv.BaseURL()+"/chat", "application/json", []byte(`{invalid json`))
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", resp.Header.Get("Content-Type"))
	}
}

func TestUnsupportedContentType(t *testing.T) {
	resp := postRaw(t, testEnv.BaseURL()+"/chat/stream", "text/plain", []byte(`hello`))
	readBody(t, resp)

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", resp.StatusCode)
	}
}

func TestOversizedBody(t *testing.T) {
	big := `{"messages":[{"role":"user","content":"` + strings.Repeat("a", 2<<20) + `"}]}`
	resp := postRaw(t, testEnv.BaseURL()+"/chat", "application/json", []byte(big))
	readBody(t, resp)

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", resp.StatusCode)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty conversation", `{"messages":[]}`},
		{"missing messages", `{}`},
		{"only unknown roles", `{"messages":[{"role":"tool","content":"x"}]}`},
		{"temperature out of range", `{"messages":[{"role":"user","content":"hi"}],"temperature":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testEnv.Upstream.CallCount()

			resp := postRaw(t, testEnv.BaseURL()+"/chat", "application/json", []byte(tt.body))
			body := readBody(t, resp)

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
			}
			if got := testEnv.Upstream.CallCount(); got != before {
				t.Errorf("upstream called for an invalid request")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/chat")
	readBody(t, resp)

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestUnknownRoute(t *testing.T) {
	resp, err := http.Post(testEnv.BaseURL()+"/v1/responses", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	readBody(t, resp)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
