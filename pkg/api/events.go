package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FrameKind identifies what a stream frame carries.
type FrameKind int

const (
	FrameDelta     FrameKind = iota // Incremental assistant text
	FrameError                      // Failure message, terminates the stream
	FrameDone                       // Sentinel, no further frames
	FrameKeepAlive                  // Empty frame sent right after the headers
)

func (k FrameKind) String() string {
	switch k {
	case FrameDelta:
		return "delta"
	case FrameError:
		return "error"
	case FrameDone:
		return "done"
	case FrameKeepAlive:
		return "keepalive"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Wire constants of the event stream.
const (
	DataPrefix      = "data: "
	DoneSentinel    = "[DONE]"
	RecordSep       = "\n\n"
	EventStreamMIME = "text/event-stream"
)

// StreamFrame is the unit of the streaming relay. Text holds the delta
// fragment for FrameDelta and the message for FrameError. StackTrace is
// only ever set on error frames.
type StreamFrame struct {
	Kind       FrameKind
	Text       string
	StackTrace string
}

// DeltaFrame returns a delta frame carrying text.
func DeltaFrame(text string) StreamFrame { return StreamFrame{Kind: FrameDelta, Text: text} }

// ErrorFrame returns an error frame carrying msg.
func ErrorFrame(msg string) StreamFrame { return StreamFrame{Kind: FrameError, Text: msg} }

// DoneFrame returns the terminal sentinel frame.
func DoneFrame() StreamFrame { return StreamFrame{Kind: FrameDone} }

// KeepAliveFrame returns the empty frame written after the headers.
func KeepAliveFrame() StreamFrame { return StreamFrame{Kind: FrameKeepAlive} }

// Terminal reports whether no frame may follow this one on the wire.
func (f StreamFrame) Terminal() bool { return f.Kind == FrameDone }

// FramePayload is the JSON object carried in a data line. Delta frames fill
// Choices, error frames fill Error. The keep-alive frame is an empty object.
type FramePayload struct {
	Choices    []FrameChoice `json:"choices,omitempty"`
	Error      string        `json:"error,omitempty"`
	StackTrace string        `json:"stackTrace,omitempty"`
}

// FrameChoice is one entry of FramePayload.Choices.
type FrameChoice struct {
	Delta ChoiceDelta `json:"delta"`
}

// ChoiceDelta holds the incremental content of a choice.
type ChoiceDelta struct {
	Content string `json:"content"`
}

// ErrMalformedFrame is returned by DecodeFrame when the payload is not a
// frame object.
var ErrMalformedFrame = errors.New("malformed frame payload")

// EncodeFrame renders f as a complete SSE record, "data: <payload>\n\n".
func EncodeFrame(f StreamFrame) ([]byte, error) {
	var payload []byte
	switch f.Kind {
	case FrameDone:
		payload = []byte(DoneSentinel)
	case FrameKeepAlive:
		payload = []byte("{}")
	case FrameDelta:
		data, err := json.Marshal(FramePayload{Choices: []FrameChoice{{Delta: ChoiceDelta{Content: f.Text}}}})
		if err != nil {
			return nil, fmt.Errorf("marshal delta frame: %w", err)
		}
		payload = data
	case FrameError:
		data, err := json.Marshal(FramePayload{Error: f.Text, StackTrace: f.StackTrace})
		if err != nil {
			return nil, fmt.Errorf("marshal error frame: %w", err)
		}
		payload = data
	default:
		return nil, fmt.Errorf("unknown frame kind %s", f.Kind)
	}

	var buf bytes.Buffer
	buf.Grow(len(DataPrefix) + len(payload) + len(RecordSep))
	buf.WriteString(DataPrefix)
	buf.Write(payload)
	buf.WriteString(RecordSep)
	return buf.Bytes(), nil
}

// DecodeFrame parses the payload of a data line (without the "data: "
// prefix). Objects without an error and without choice-0 text decode as a
// keep-alive frame.
func DecodeFrame(payload string) (StreamFrame, error) {
	payload = strings.TrimRight(payload, "\r")
	if payload == DoneSentinel {
		return DoneFrame(), nil
	}

	var p FramePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return StreamFrame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if p.Error != "" {
		f := ErrorFrame(p.Error)
		f.StackTrace = p.StackTrace
		return f, nil
	}
	if len(p.Choices) > 0 && p.Choices[0].Delta.Content != "" {
		return DeltaFrame(p.Choices[0].Delta.Content), nil
	}
	return KeepAliveFrame(), nil
}
