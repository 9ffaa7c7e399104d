package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/debug"
	"github.com/lucidbot/chatrelay/pkg/observability"
	"github.com/lucidbot/chatrelay/pkg/transport"
)

// writerState tracks the state of an SSE ResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // Headers and keep-alive frame sent
	writerCompleted                    // Done frame sent or WriteResponse called
)

// ErrWriterCompleted is returned for writes after the terminal frame or
// after a complete response was sent.
var ErrWriterCompleted = errors.New("writer is completed")

// sseResponseWriter implements transport.ResponseWriter for HTTP/SSE
// responses. It handles both streaming (SSE) and non-streaming (JSON)
// output.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	state  writerState
	frames int
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

// newSSEResponseWriter creates a ResponseWriter wrapping an http.ResponseWriter.
func newSSEResponseWriter(w http.ResponseWriter) *sseResponseWriter {
	return &sseResponseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// Begin sets the streaming headers exactly once, commits the status and
// writes one keep-alive frame so proxies and clients start delivering.
func (s *sseResponseWriter) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked()
}

func (s *sseResponseWriter) beginLocked() error {
	switch s.state {
	case writerStreaming:
		return nil
	case writerCompleted:
		return ErrWriterCompleted
	}

	h := s.w.Header()
	h.Set("Content-Type", api.EventStreamMIME)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.state = writerStreaming

	return s.writeLocked(api.KeepAliveFrame())
}

// WriteFrame writes one frame in SSE format and flushes it:
//
//	data: {json}\n
//	\n
//
// After the done frame the writer is completed.
func (s *sseResponseWriter) WriteFrame(ctx context.Context, frame api.StreamFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return ErrWriterCompleted
	}
	if s.state == writerIdle {
		if err := s.beginLocked(); err != nil {
			return err
		}
	}

	if frame.Terminal() {
		s.state = writerCompleted
	}
	return s.writeLocked(frame)
}

func (s *sseResponseWriter) writeLocked(frame api.StreamFrame) error {
	data, err := api.EncodeFrame(frame)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", frame.Kind, err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s frame: %w", frame.Kind, err)
	}

	s.frames++
	observability.RecordFrame(frame.Kind)
	debug.Log("stream", "frame written", "kind", frame.Kind.String(), "bytes", len(data), "seq", s.frames)
	return nil
}

// WriteResponse sends a complete non-streaming JSON response.
// This is mutually exclusive with Begin and WriteFrame.
func (s *sseResponseWriter) WriteResponse(ctx context.Context, resp *api.ChatResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return errors.New("cannot write response: streaming has already started")
	}
	if s.state == writerCompleted {
		return ErrWriterCompleted
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted

	if err := json.NewEncoder(s.w).Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// Started reports whether any part of the response has been committed.
func (s *sseResponseWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != writerIdle
}

// streaming reports whether SSE headers went out, as opposed to a JSON
// response.
func (s *sseResponseWriter) streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming ||
		(s.state == writerCompleted && s.w.Header().Get("Content-Type") == api.EventStreamMIME)
}
