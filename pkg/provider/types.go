package provider

import "github.com/lucidbot/chatrelay/pkg/api"

// Message is one turn in the upstream conversation format. Role is already
// normalized to one of the upstream roles.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the upstream-facing request. It is built fresh for every
// relay call and never shared.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

// Response is the upstream's complete non-streaming result.
type Response struct {
	Text         string    `json:"text"`
	Usage        api.Usage `json:"usage"`
	Model        string    `json:"model"`
	FinishReason string    `json:"finish_reason,omitempty"`
}

// EventType classifies a streaming event from the upstream.
type EventType int

const (
	EventDelta EventType = iota // Incremental text content
	EventDone                   // Stream finished
	EventError                  // Stream error
)

func (t EventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single streaming event from the upstream.
type Event struct {
	// Type indicates what kind of event this is.
	Type EventType

	// ChoiceIndex identifies the choice a delta belongs to.
	ChoiceIndex int

	// Delta contains incremental text.
	Delta string

	// Usage is populated on the Done event when the upstream reports it.
	Usage *api.Usage

	// Err is populated for Error events.
	Err error
}
