// Package client is the Go consumer of the chatrelay HTTP API.
//
// Send performs a non-streaming completion. OpenStream posts a
// conversation to the streaming route, decodes the event stream and
// reports each text increment through a callback in arrival order.
// Every OpenStream call ends with exactly one terminal outcome: the
// completion callback with the full text, or a non-nil error.
package client
