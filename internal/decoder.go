package internal

import (
	"bytes"
	"errors"
	"strings"
)

const dataPrefix = "data:"

// StreamDecoder turns raw byte chunks from the assistant response body
// into whole event records. Chunks arrive with no alignment to record
// boundaries, so a trailing partial line is carried over and prepended
// to the next chunk before re-splitting.
type StreamDecoder struct {
	carry []byte
}

// NewStreamDecoder creates a decoder with an empty carry-over buffer
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

// Feed appends chunk to the carry-over buffer and decodes every complete
// line in it. Lines without the "data:" prefix are discarded. A line
// that has the prefix but fails to parse produces a DecodeError for that
// line; events decoded from the same chunk before and after the bad line
// are still returned, so a single malformed record never drops its
// neighbors. When multiple lines fail, the joined error carries one
// DecodeError per bad line.
func (d *StreamDecoder) Feed(chunk []byte) ([]*StreamEvent, error) {
	d.carry = append(d.carry, chunk...)

	var events []*StreamEvent
	var errs []error

	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			break
		}
		line := string(d.carry[:idx])
		d.carry = d.carry[idx+1:]

		evt, err := decodeLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if evt != nil {
			events = append(events, evt)
		}
	}

	return events, errors.Join(errs...)
}

// Flush discards any unterminated buffered content. Called at
// end-of-stream: a partial trailing record is not a valid event.
func (d *StreamDecoder) Flush() {
	if len(d.carry) > 0 {
		LogDebug("Discarding %d bytes of unterminated stream data", len(d.carry))
	}
	d.carry = nil
}

// Buffered returns the number of carried-over bytes awaiting a newline
func (d *StreamDecoder) Buffered() int {
	return len(d.carry)
}

// decodeLine decodes one complete line. Returns (nil, nil) for lines
// that are not event records at all (blank lines, comments, other SSE
// fields); those are silently discarded.
func decodeLine(line string) (*StreamEvent, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil, nil
	}

	evt, err := ParseStreamEvent(payload)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	return evt, nil
}
