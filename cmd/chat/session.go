package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/lucidbot/chatrelay/pkg/api"
	"github.com/lucidbot/chatrelay/pkg/client"
)

// apology is shown when a reply fails before any text arrived.
const apology = "Sorry, I encountered an error. Please try again later."

// session holds one conversation with the relay. The system turn is
// rebuilt from the preset on every request; history holds only user and
// assistant turns.
type session struct {
	client    *client.Client
	preset    Preset
	streaming bool
	opts      client.RequestOptions
	out       io.Writer

	history api.Conversation
}

func newSession(c *client.Client, p Preset, streaming bool, opts client.RequestOptions, out io.Writer) *session {
	return &session{
		client:    c,
		preset:    p,
		streaming: streaming,
		opts:      opts,
		out:       out,
	}
}

// conversation returns the system turn, prior history and the new user
// turn.
func (s *session) conversation(user api.ChatTurn) api.Conversation {
	conv := make(api.Conversation, 0, len(s.history)+2)
	conv = append(conv, api.ChatTurn{Role: api.RoleSystem, Content: s.preset.Prompt})
	conv = append(conv, s.history...)
	return append(conv, user)
}

// ask sends text and renders the reply. It returns ctx.Err() when the user
// interrupted; relay failures are rendered and not returned.
func (s *session) ask(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	user := api.ChatTurn{Role: api.RoleUser, Content: text}
	conv := s.conversation(user)
	s.history = append(s.history, user)

	if !s.streaming {
		reply, err := s.client.Send(ctx, conv, s.opts)
		if err != nil {
			return s.fail(ctx, "", err)
		}
		fmt.Fprintln(s.out, render(reply))
		s.remember(reply)
		return nil
	}

	acc := new(client.Accumulator)
	view := &emphasisStream{out: s.out}
	err := s.client.StreamInto(ctx, conv, acc,
		view.Write,
		func(full string) {
			view.Flush()
			fmt.Fprintln(s.out)
			s.remember(full)
		},
		s.opts,
	)
	if err != nil {
		view.Flush()
		return s.fail(ctx, acc.Snapshot(), err)
	}
	return nil
}

// fail renders a failed reply. With no text received the apology stands
// in for the answer; otherwise the partial text is kept and an error note
// follows it.
func (s *session) fail(ctx context.Context, partial string, err error) error {
	if ctx.Err() != nil {
		fmt.Fprintln(s.out)
		return ctx.Err()
	}

	if partial == "" {
		fmt.Fprintln(s.out, apology)
		s.remember(apology)
	} else {
		fmt.Fprintf(s.out, "\n[reply interrupted: %s]\n", describe(err))
		s.remember(partial)
	}
	return nil
}

func (s *session) remember(reply string) {
	s.history = append(s.history, api.ChatTurn{Role: api.RoleAssistant, Content: reply})
}

// describe turns a client error into a short note.
func describe(err error) string {
	var streamErr *client.StreamError
	var httpErr *client.HTTPError
	switch {
	case errors.As(err, &streamErr):
		return streamErr.Message
	case errors.As(err, &httpErr):
		return fmt.Sprintf("status %d: %s", httpErr.StatusCode, httpErr.Body)
	default:
		return err.Error()
	}
}

// render converts the emphasis markers the assistant is instructed to use
// into terminal bold and italic.
func render(s string) string {
	s = replacePairs(s, "**", "\x1b[1m", "\x1b[22m")
	return replacePairs(s, "*", "\x1b[3m", "\x1b[23m")
}

// replacePairs replaces balanced occurrences of marker with open and close.
// An unmatched trailing marker is left as is.
func replacePairs(s, marker, open, close string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, marker)
		if i < 0 {
			break
		}
		j := strings.Index(s[i+len(marker):], marker)
		if j < 0 {
			break
		}
		j += i + len(marker)
		b.WriteString(s[:i])
		b.WriteString(open)
		b.WriteString(s[i+len(marker) : j])
		b.WriteString(close)
		s = s[j+len(marker):]
	}
	b.WriteString(s)
	return b.String()
}

// emphasisStream renders a streamed reply as it arrives. Text is held back
// while an emphasis marker is open, so the bytes written are exactly
// render(full) once Flush is called.
type emphasisStream struct {
	out     io.Writer
	pending string
}

// Write adds a delta and prints every prefix that no later text can
// change.
func (e *emphasisStream) Write(delta string) {
	e.pending += delta
	if k := balancedPrefix(e.pending); k > 0 {
		fmt.Fprint(e.out, render(e.pending[:k]))
		e.pending = e.pending[k:]
	}
}

// Flush prints whatever is still held back; unmatched markers stay literal.
func (e *emphasisStream) Flush() {
	if e.pending != "" {
		fmt.Fprint(e.out, render(e.pending))
		e.pending = ""
	}
}

// balancedPrefix returns the length of the longest prefix of s that ends
// outside any marker and leaves every "**" and "*" pair closed. render is
// additive across such a cut.
func balancedPrefix(s string) int {
	cut, double, single := 0, 0, 0
	for i := 0; i < len(s); {
		if s[i] == '*' {
			if i+1 < len(s) && s[i+1] == '*' {
				double++
				i += 2
			} else {
				single++
				i++
			}
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if double%2 == 0 && single%2 == 0 {
			cut = i
		}
	}
	return cut
}
