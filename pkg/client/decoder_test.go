package client

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucidbot/chatrelay/pkg/api"
)

func encodeAll(t *testing.T, frames ...api.StreamFrame) []byte {
	t.Helper()
	var out []byte
	for _, f := range frames {
		b, err := api.EncodeFrame(f)
		require.NoError(t, err)
		out = append(out, b...)
	}
	return out
}

func feedChunks(d *FrameDecoder, data []byte, sizes func() int) []string {
	var records []string
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		records = append(records, d.Feed(data[:n])...)
		data = data[n:]
	}
	return records
}

func TestFrameDecoderSplitAndMergedReads(t *testing.T) {
	stream := encodeAll(t,
		api.KeepAliveFrame(),
		api.DeltaFrame("Hel"),
		api.DeltaFrame("lo"),
		api.DeltaFrame(" world"),
		api.DoneFrame(),
	)

	var whole FrameDecoder
	want := whole.Feed(stream)
	require.Len(t, want, 5)
	require.Zero(t, whole.Buffered())

	var bytewise FrameDecoder
	require.Equal(t, want, feedChunks(&bytewise, stream, func() int { return 1 }))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		var d FrameDecoder
		got := feedChunks(&d, stream, func() int { return 1 + rng.Intn(17) })
		require.Equal(t, want, got, "random chunking run %d", i)
	}
}

func TestFrameDecoderHoldsPartialRecord(t *testing.T) {
	var d FrameDecoder

	require.Empty(t, d.Feed([]byte(`data: {"choices":[{"delta":{"content":"a`)))
	require.NotZero(t, d.Buffered())

	records := d.Feed([]byte(`"}}]}` + "\n"))
	require.Empty(t, records)

	records = d.Feed([]byte("\ndata: [DONE]\n\n"))
	require.Equal(t, []string{`data: {"choices":[{"delta":{"content":"a"}}]}`, "data: [DONE]"}, records)
}

func TestFrameDecoderFlush(t *testing.T) {
	var d FrameDecoder
	d.Feed([]byte("data: [DONE]"))

	rest, ok := d.Flush()
	require.True(t, ok)
	require.Equal(t, "data: [DONE]", rest)

	_, ok = d.Flush()
	require.False(t, ok)
}

func TestDataPayload(t *testing.T) {
	tests := []struct {
		record string
		want   string
		ok     bool
	}{
		{"data: {}", "{}", true},
		{"data:[DONE]", "[DONE]", true},
		{"event: message\ndata: {\"error\":\"x\"}", `{"error":"x"}`, true},
		{"data: {}\r", "{}", true},
		{": comment", "", false},
		{"event: ping", "", false},
	}
	for _, tt := range tests {
		got, ok := dataPayload(tt.record)
		require.Equal(t, tt.ok, ok, tt.record)
		require.Equal(t, tt.want, got, tt.record)
	}
}

func TestDeltaRoundTripPreservesText(t *testing.T) {
	texts := []string{
		`say "hi"`,
		"line one\nline two\n\n",
		`back\slash`,
		"unicode: héllo wörld 你好 👋",
		"<script>&amp;</script>",
		"tab\there",
	}

	for _, text := range texts {
		data := encodeAll(t, api.DeltaFrame(text))

		var d FrameDecoder
		records := d.Feed(data)
		require.Len(t, records, 1, "text %q must encode to one record", text)

		payload, ok := dataPayload(records[0])
		require.True(t, ok)
		frame, err := api.DecodeFrame(strings.TrimSpace(payload))
		require.NoError(t, err)
		require.Equal(t, api.FrameDelta, frame.Kind)
		require.Equal(t, text, frame.Text)

		again := encodeAll(t, frame)
		require.Equal(t, data, again, "re-encoding must be byte-identical")
	}
}

func TestAccumulator(t *testing.T) {
	var a Accumulator
	a.Append("Hel")
	a.Append("lo")
	require.Equal(t, "Hello", a.Snapshot())

	turn := a.Freeze()
	require.Equal(t, api.RoleAssistant, turn.Role)
	require.Equal(t, "Hello", turn.Content)

	a.Append(" ignored")
	require.Equal(t, "Hello", a.Snapshot())
}
