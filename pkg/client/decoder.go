package client

import (
	"bytes"
	"strings"

	"github.com/lucidbot/chatrelay/pkg/api"
)

var recordSep = []byte(api.RecordSep)

// FrameDecoder splits an event stream into records on blank-line
// boundaries. Bytes may arrive in arbitrary pieces; a record split across
// reads is reassembled and a trailing partial record is held until the
// rest arrives.
type FrameDecoder struct {
	buf []byte
}

// Feed appends p and returns every record completed by it, without the
// separator.
func (d *FrameDecoder) Feed(p []byte) []string {
	d.buf = append(d.buf, p...)

	var records []string
	for {
		i := bytes.Index(d.buf, recordSep)
		if i < 0 {
			break
		}
		if i > 0 {
			records = append(records, string(d.buf[:i]))
		}
		d.buf = d.buf[i+len(recordSep):]
	}

	// Compact so the backing array does not grow without bound.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
	return records
}

// Flush returns the held partial record, if any, and resets the decoder.
// It is called when the stream ends without a final separator.
func (d *FrameDecoder) Flush() (string, bool) {
	rest := strings.TrimSpace(string(d.buf))
	d.buf = nil
	return rest, rest != ""
}

// Buffered reports how many bytes of an incomplete record are held.
func (d *FrameDecoder) Buffered() int { return len(d.buf) }

// dataPayload returns the payload of the record's data line. Records
// without a data line (comments, event names only) report false.
func dataPayload(record string) (string, bool) {
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, api.DataPrefix) {
			return strings.TrimPrefix(line, api.DataPrefix), true
		}
		if strings.HasPrefix(line, "data:") {
			return strings.TrimPrefix(line, "data:"), true
		}
	}
	return "", false
}
