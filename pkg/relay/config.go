package relay

import "time"

// Defaults applied when neither the request nor the configuration sets a
// value.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.7
	DefaultTimeout     = 120 * time.Second
)

// Config is the immutable configuration snapshot a Relay is built with.
type Config struct {
	// DefaultModel is used when the request omits the model.
	DefaultModel string

	// MaxTokens and Temperature are used when the request omits them.
	MaxTokens   int
	Temperature float64

	// Timeout bounds each upstream call. Zero means DefaultTimeout.
	Timeout time.Duration

	// ModelOverride, when set, replaces the model of every request. It is
	// carried by credential routes that pin a model.
	ModelOverride string

	// CredentialConfigured is false when no upstream API key is available.
	// Requests are then rejected before any upstream call.
	CredentialConfigured bool

	// CredentialLabel is the redacted credential format reported by Status.
	CredentialLabel string
}

// DefaultConfig returns a Config with the default model and sampling
// parameters. The credential fields are left unset.
func DefaultConfig() Config {
	return Config{
		DefaultModel: DefaultModel,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		Timeout:      DefaultTimeout,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

func (c Config) defaultModel() string {
	if c.DefaultModel == "" {
		return DefaultModel
	}
	return c.DefaultModel
}
