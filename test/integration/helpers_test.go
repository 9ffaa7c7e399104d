// Package integration runs the chat relay end to end: a deterministic
// OpenAI-compatible upstream, the relay, its HTTP server and the Go
// client, all started in-process using net/http/httptest.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/client"
	"github.com/lucidbot/chatrelay/pkg/provider/openaicompat"
	"github.com/lucidbot/chatrelay/pkg/provider/openaicompat/upstreamtest"
	"github.com/lucidbot/chatrelay/pkg/relay"
	transporthttp "github.com/lucidbot/chatrelay/pkg/transport/http"
)

const (
	testAPIKey = "sk-test-key"
	testOrg    = "org-integration"
)

// testEnv holds the shared servers for all integration tests.
var testEnv *TestEnvironment

// TestEnvironment holds the relay server and the upstream it talks to.
type TestEnvironment struct {
	RelayServer    *httptest.Server
	UpstreamServer *httptest.Server
	Upstream       *upstreamtest.Handler
}

// TestMain starts the upstream and the relay before running tests.
func TestMain(m *testing.M) {
	testEnv = setupTestEnvironment()
	code := m.Run()
	testEnv.Teardown()
	os.Exit(code)
}

// setupTestEnvironment creates the upstream and a relay server wired to it.
func setupTestEnvironment() *TestEnvironment {
	upstream := upstreamtest.NewHandler(upstreamtest.Script{})
	upstreamServer := httptest.NewServer(upstream)

	prov := openaicompat.NewClient(openaicompat.UpstreamConfig{
		APIKey:         testAPIKey,
		OrganizationID: testOrg,
		Endpoint:       upstreamtest.BaseURL(upstreamServer),
	})

	r, err := relay.New(prov, relay.Config{
		DefaultModel:         "mock-model",
		MaxTokens:            relay.DefaultMaxTokens,
		Temperature:          relay.DefaultTemperature,
		Timeout:              relay.DefaultTimeout,
		ModelOverride:        prov.Route().ModelOverride,
		CredentialConfigured: true,
		CredentialLabel:      prov.Route().Format.Redacted(),
	})
	if err != nil {
		panic(fmt.Sprintf("creating relay: %v", err))
	}

	srv := transporthttp.NewServer(r, r,
		transporthttp.WithAdapterConfig(transporthttp.DefaultConfig()),
	)

	return &TestEnvironment{
		RelayServer:    httptest.NewServer(srv.Handler()),
		UpstreamServer: upstreamServer,
		Upstream:       upstream,
	}
}

// Teardown stops both servers.
func (env *TestEnvironment) Teardown() {
	if env.RelayServer != nil {
		env.RelayServer.Close()
	}
	if env.UpstreamServer != nil {
		env.UpstreamServer.Close()
	}
}

// BaseURL returns the relay server base URL.
func (env *TestEnvironment) BaseURL() string {
	return env.RelayServer.URL
}

// useScript installs s on the upstream for the current test and restores
// the derived answers afterwards.
func useScript(t *testing.T, s upstreamtest.Script) {
	t.Helper()
	testEnv.Upstream.SetScript(s)
	t.Cleanup(func() { testEnv.Upstream.SetScript(upstreamtest.Script{}) })
}

// newClient returns a Go client for the relay.
func newClient(prefix string) *client.Client {
	return client.New(testEnv.BaseURL() + prefix)
}

func helloConversation() map[string]any {
	return map[string]any{
		"messages": []map[string]any{
			{"role": "system", "content": "You are a helpful assistant."},
			{"role": "user", "content": "Hello"},
		},
	}
}

func helloTurns() api.Conversation {
	return api.Conversation{
		{Role: api.RoleSystem, Content: "You are a helpful assistant."},
		{Role: api.RoleUser, Content: "Hello"},
	}
}

// --- HTTP helpers ---

// postJSON sends a POST request with JSON body and returns the response.
func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	return postRaw(t, url, "application/json", data)
}

// postRaw sends a POST request with the given content type and body.
func postRaw(t *testing.T, url, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// getURL sends a GET request and returns the response.
func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return string(body)
}

// decodeJSON reads the response body and decodes it into the target.
func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding JSON: %v", err)
	}
}

// parseFrames splits an event-stream body into frames.
func parseFrames(t *testing.T, body string) []api.StreamFrame {
	t.Helper()
	var frames []api.StreamFrame
	for _, record := range strings.Split(body, api.RecordSep) {
		if record == "" {
			continue
		}
		payload, ok := strings.CutPrefix(record, api.DataPrefix)
		if !ok {
			t.Fatalf("record without data prefix: %q", record)
		}
		frame, err := api.DecodeFrame(payload)
		if err != nil {
			t.Fatalf("decoding frame %q: %v", payload, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func frameKinds(frames []api.StreamFrame) []api.FrameKind {
	kinds := make([]api.FrameKind, len(frames))
	for i, f := range frames {
		kinds[i] = f.Kind
	}
	return kinds
}
