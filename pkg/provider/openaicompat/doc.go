// Package openaicompat adapts any OpenAI-compatible Chat Completions API to
// the provider interface. Calls go through github.com/sashabaranov/go-openai;
// this package adds the credential route strategy, request and chunk
// translation, and mapping of upstream failures onto the api error taxonomy.
package openaicompat
