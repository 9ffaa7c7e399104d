package client

import (
	"strings"
	"sync"

	"github.com/lucidbot/chatrelay/pkg/api"
)

// Accumulator collects the text of one streamed assistant message. It is
// filled by a single StreamInto call; Snapshot may be read concurrently
// for a live preview or after a failure.
type Accumulator struct {
	mu     sync.RWMutex
	b      strings.Builder
	frozen bool
}

// Append adds a delta. Appends after Freeze are ignored.
func (a *Accumulator) Append(delta string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return
	}
	a.b.WriteString(delta)
}

// Snapshot returns the text received so far.
func (a *Accumulator) Snapshot() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.b.String()
}

// Freeze ends accumulation and returns the message as an assistant turn.
func (a *Accumulator) Freeze() api.ChatTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
	return api.ChatTurn{Role: api.RoleAssistant, Content: a.b.String()}
}
