package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lucidbot/chatrelay/pkg/api"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   api.ErrorType
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "api error",
			err:        &openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
			wantType:   api.ErrorTypeUpstream,
			wantStatus: 401,
			wantMsg:    "invalid api key",
		},
		{
			name:       "api error without message",
			err:        &openai.APIError{HTTPStatusCode: 503},
			wantType:   api.ErrorTypeUpstream,
			wantStatus: 503,
			wantMsg:    "upstream returned 503 Service Unavailable",
		},
		{
			name:       "request error",
			err:        &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
			wantType:   api.ErrorTypeUpstream,
			wantStatus: 502,
			wantMsg:    "bad gateway",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("create stream: %w", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}),
			wantType:   api.ErrorTypeUpstream,
			wantStatus: 429,
			wantMsg:    "slow down",
		},
		{
			name:       "deadline",
			err:        context.DeadlineExceeded,
			wantType:   api.ErrorTypeUpstream,
			wantStatus: http.StatusGatewayTimeout,
			wantMsg:    "upstream deadline exceeded",
		},
		{
			name:     "network",
			err:      errors.New("dial tcp: connection refused"),
			wantType: api.ErrorTypeServerError,
			wantMsg:  "upstream connection error: dial tcp: connection refused",
		},
		{
			name:       "already mapped",
			err:        api.NewUpstreamError(418, "teapot"),
			wantType:   api.ErrorTypeUpstream,
			wantStatus: 418,
			wantMsg:    "teapot",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
			}
			if got.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.wantStatus)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if MapError(nil) != nil {
		t.Error("MapError(nil) should be nil")
	}
}
