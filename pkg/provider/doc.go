// Package provider defines the interface between the relay and an
// upstream chat-completion API. Adapters (see openaicompat) translate the
// relay's own types (Request, Response, Event) to their backend protocol,
// keeping wire details invisible to the relay.
package provider
