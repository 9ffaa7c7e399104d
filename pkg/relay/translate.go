package relay

import (
	"log/slog"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/provider"
)

// FormattingInstruction is appended to a leading system turn so the
// assistant marks emphasis the way the front end renders it.
const FormattingInstruction = " Use **asterisks** for important points or emphasis, which will be rendered as bold text. Use *single asterisks* for italic text to emphasize product names or features."

// buildRequest assembles the upstream request. The caller's conversation
// is not modified.
func (r *Relay) buildRequest(req *api.ChatRequest, stream bool) (*provider.Request, *api.APIError) {
	msgs := translateConversation(req.Messages.Clone())
	if len(msgs) == 0 {
		return nil, api.NewInvalidRequestError("messages", "conversation contains no turns with a supported role")
	}

	model := r.cfg.defaultModel()
	if req.Model != "" {
		model = req.Model
	}
	if r.cfg.ModelOverride != "" {
		model = r.cfg.ModelOverride
	}

	maxTokens := r.cfg.maxTokens()
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	temperature := r.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return &provider.Request{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}, nil
}

// translateConversation appends the formatting instruction to a leading
// system turn and maps the turns to upstream messages. Turns with a role
// the upstream does not know are dropped.
func translateConversation(conv api.Conversation) []provider.Message {
	if len(conv) > 0 && conv[0].Role.Normalize() == api.RoleSystem {
		conv[0].Content += FormattingInstruction
	}

	msgs := make([]provider.Message, 0, len(conv))
	for i, turn := range conv {
		if !turn.Role.Known() {
			slog.Warn("dropping turn with unsupported role",
				"index", i,
				"role", string(turn.Role),
			)
			continue
		}
		msgs = append(msgs, provider.Message{
			Role:    string(turn.Role.Normalize()),
			Content: turn.Content,
		})
	}
	return msgs
}
