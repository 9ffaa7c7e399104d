// Package relay implements the chat relay between the HTTP transport and an
// upstream chat-completion provider.
//
// A Relay validates the incoming conversation, assembles the upstream
// request from its configuration snapshot and either returns a single
// completion (Complete) or forwards each upstream increment as a stream
// frame (StreamComplete). Relay implements transport.ChatCreator and
// transport.StatusReporter.
//
// Once a stream has begun, every failure is reported in-band as an error
// frame followed by the done frame and StreamComplete returns nil.
package relay
