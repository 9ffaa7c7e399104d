package api

import "fmt"

// Temperature bounds accepted from clients.
const (
	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// ValidateChatRequest checks a ChatRequest for validity. It returns an
// *APIError describing the first validation failure, or nil if the request
// is valid.
func ValidateChatRequest(req *ChatRequest) *APIError {
	if req == nil || len(req.Messages) == 0 {
		return NewInvalidRequestError("messages", "conversation must contain at least one turn")
	}

	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens", "max_tokens must be positive")
	}

	if req.Temperature != nil {
		if *req.Temperature < MinTemperature || *req.Temperature > MaxTemperature {
			return NewInvalidRequestError("temperature",
				fmt.Sprintf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature))
		}
	}

	return nil
}
