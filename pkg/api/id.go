package api

import "github.com/google/uuid"

const (
	requestIDPrefix = "req_"
	streamIDPrefix  = "stream_"
)

// NewRequestID returns an identifier for correlating log lines of one
// relay call.
func NewRequestID() string {
	return requestIDPrefix + uuid.NewString()
}

// NewStreamID returns a server-side key for one open stream. Unlike request
// IDs it is never taken from the client.
func NewStreamID() string {
	return streamIDPrefix + uuid.NewString()
}
