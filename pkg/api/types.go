package api

import "strings"

// Role identifies the speaker of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Normalize lower-cases the role so "System" and "system" compare equal.
func (r Role) Normalize() Role {
	return Role(strings.ToLower(strings.TrimSpace(string(r))))
}

// Known reports whether the role is one the upstream understands.
func (r Role) Known() bool {
	switch r.Normalize() {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ChatTurn is one message in a conversation.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered list of turns. Order is chronological.
type Conversation []ChatTurn

// Clone returns a copy that can be mutated without affecting the original.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// ChatRequest is the body accepted by /chat and /chat/stream.
type ChatRequest struct {
	Messages    Conversation `json:"messages"`
	Model       string       `json:"model,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`

	// Stream is set by the transport from the route, never from the body.
	Stream bool `json:"-"`
}

// Usage reports token accounting passed through from the upstream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the non-streaming completion result.
type ChatResponse struct {
	Message string `json:"message"`
	Usage   Usage  `json:"usage"`
}

// Turn returns the result as an assistant turn.
func (r *ChatResponse) Turn() ChatTurn {
	return ChatTurn{Role: RoleAssistant, Content: r.Message}
}

// StatusResponse is returned by the diagnostic /chat/test route.
type StatusResponse struct {
	Message    string `json:"message"`
	Credential string `json:"credential"`
}
