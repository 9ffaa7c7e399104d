// Package api defines the wire types shared by the chatrelay server and its
// Go client.
//
// The package performs no I/O. JSON produced by these types matches what the
// web front end sends and expects:
//
//   - [ChatRequest]: POST body for /chat and /chat/stream
//   - [ChatResponse]: the non-streaming completion result
//   - [StreamFrame]: one server-sent event of the streaming relay
//   - [APIError]: the error taxonomy (invalid request, configuration,
//     upstream, internal) with its HTTP status
package api
