// Package sse decodes the newline-delimited "data: <json>" event stream
// emitted by the chat backend. The decoder is incremental: chunks may be
// split at arbitrary byte boundaries and a partial trailing line is carried
// over to the next Feed call.
package sse

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// EventTypeContent marks events carrying an incremental text delta.
const EventTypeContent = "content"

// EventTypeSources marks events carrying citation metadata.
const EventTypeSources = "sources"

// Event is one decoded protocol event. Done is set for the advisory
// "[DONE]" sentinel; transport EOF is the authoritative end of stream.
type Event struct {
	Type  string          `json:"type"`
	Delta string          `json:"delta,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Done  bool            `json:"-"`
}

// Decoder accumulates raw bytes and yields complete events.
type Decoder struct {
	buf    []byte
	logger zerolog.Logger
}

// NewDecoder creates a decoder. The logger is used for malformed records.
func NewDecoder(logger zerolog.Logger) *Decoder {
	return &Decoder{logger: logger.With().Str("component", "sse").Logger()}
}

// Feed appends chunk to the internal buffer and returns all events that
// became complete. Malformed records are logged and skipped; they never
// abort the stream. An unterminated final line stays buffered until the
// newline arrives; it is discarded if the stream ends first.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		ev, ok := d.decodeLine(line)
		if ok {
			events = append(events, ev)
		}
	}
	return events
}

func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(bytes.TrimSpace(line)) == 0 {
		return Event{}, false
	}
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		// Comments and other SSE fields are not part of the protocol.
		return Event{}, false
	}

	payload := line[len(dataPrefix):]
	if string(payload) == doneSentinel {
		return Event{Done: true}, true
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.logger.Warn().Err(err).Str("payload", string(payload)).Msg("Skipping malformed event record")
		return Event{}, false
	}
	return ev, true
}
