package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestStreamDecoder_SingleChunk(t *testing.T) {
	decoder := NewStreamDecoder()

	chunk := []byte(`data: {"type":"message","content":"Hel"}` + "\n" +
		`data: {"type":"message","content":"lo"}` + "\n" +
		`data: {"type":"done"}` + "\n")

	events, err := decoder.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("Feed() returned %d events, want 3", len(events))
	}
	if events[0].Type != EventMessage || events[0].Content != "Hel" {
		t.Errorf("events[0] = %+v, want message/Hel", events[0])
	}
	if events[1].Type != EventMessage || events[1].Content != "lo" {
		t.Errorf("events[1] = %+v, want message/lo", events[1])
	}
	if events[2].Type != EventDone {
		t.Errorf("events[2].Type = %q, want done", events[2].Type)
	}
}

func TestStreamDecoder_RecordSplitAcrossChunks(t *testing.T) {
	decoder := NewStreamDecoder()

	// One record split mid-JSON across three chunks.
	events, err := decoder.Feed([]byte(`data: {"type":"mess`))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Feed() returned %d events before newline, want 0", len(events))
	}

	events, err = decoder.Feed([]byte(`age","content":"Hello"`))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("Feed() returned %d events before newline, want 0", len(events))
	}

	events, err = decoder.Feed([]byte("}\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Feed() returned %d events, want 1", len(events))
	}
	if events[0].Content != "Hello" {
		t.Errorf("events[0].Content = %q, want Hello", events[0].Content)
	}
}

func TestStreamDecoder_SplitInvariance(t *testing.T) {
	stream := []byte(`data: {"type":"threadId","threadId":"abc"}` + "\n" +
		`data: {"type":"message_id","messageId":"m1"}` + "\n" +
		`data: {"type":"message","content":"Hel"}` + "\n" +
		`data: {"type":"message","content":"lo"}` + "\n" +
		`data: {"type":"file","file_id":"f1","file_type":"png"}` + "\n" +
		`data: {"type":"done"}` + "\n")

	whole := decodeAll(t, stream, len(stream))

	// Every possible chunk size must yield the identical event sequence.
	for size := 1; size < len(stream); size++ {
		split := decodeAll(t, stream, size)
		if len(split) != len(whole) {
			t.Fatalf("chunk size %d: got %d events, want %d", size, len(split), len(whole))
		}
		for i := range whole {
			if *split[i] != *whole[i] {
				t.Errorf("chunk size %d: events[%d] = %+v, want %+v", size, i, split[i], whole[i])
			}
		}
	}
}

func decodeAll(t *testing.T, stream []byte, chunkSize int) []*StreamEvent {
	t.Helper()
	decoder := NewStreamDecoder()
	var events []*StreamEvent

	for start := 0; start < len(stream); start += chunkSize {
		end := start + chunkSize
		if end > len(stream) {
			end = len(stream)
		}
		evts, err := decoder.Feed(stream[start:end])
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		events = append(events, evts...)
	}
	decoder.Flush()
	return events
}

func TestStreamDecoder_MalformedLineBetweenDeltas(t *testing.T) {
	decoder := NewStreamDecoder()

	chunk := []byte(`data: {"type":"message","content":"Hel"}` + "\n" +
		`data: {not json at all` + "\n" +
		`data: {"type":"message","content":"lo"}` + "\n")

	events, err := decoder.Feed(chunk)
	if err == nil {
		t.Error("Feed() should report the malformed line")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Feed() error = %T, want *DecodeError", err)
	}

	// Neither valid delta may be dropped.
	if len(events) != 2 {
		t.Fatalf("Feed() returned %d events, want 2", len(events))
	}
	if events[0].Content != "Hel" || events[1].Content != "lo" {
		t.Errorf("Feed() events = %q, %q, want Hel, lo", events[0].Content, events[1].Content)
	}
}

func TestStreamDecoder_EveryMalformedLineReported(t *testing.T) {
	decoder := NewStreamDecoder()

	chunk := []byte(`data: {"type":"message","content":"a"}` + "\n" +
		`data: {bad-one` + "\n" +
		`data: {"type":"message","content":"b"}` + "\n" +
		`data: {bad-two` + "\n" +
		`data: {"type":"done"}` + "\n")

	events, err := decoder.Feed(chunk)
	if err == nil {
		t.Fatal("Feed() should report the malformed lines")
	}

	// Both bad lines must surface, not just the first.
	for _, want := range []string{"bad-one", "bad-two"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Feed() error %q missing line %q", err.Error(), want)
		}
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Feed() error = %T, want *DecodeError in the chain", err)
	}
	if len(events) != 3 {
		t.Errorf("Feed() returned %d events, want 3", len(events))
	}
}

func TestStreamDecoder_UnknownEventType(t *testing.T) {
	decoder := NewStreamDecoder()

	_, err := decoder.Feed([]byte(`data: {"type":"surprise"}` + "\n"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Feed() error = %T, want *DecodeError", err)
	}
}

func TestStreamDecoder_NonDataLinesDiscarded(t *testing.T) {
	decoder := NewStreamDecoder()

	chunk := []byte("event: ping\n" +
		"\n" +
		": comment\n" +
		`data: {"type":"done"}` + "\n")

	events, err := decoder.Feed(chunk)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != EventDone {
		t.Errorf("Feed() = %d events, want just the done event", len(events))
	}
}

func TestStreamDecoder_CRLFLines(t *testing.T) {
	decoder := NewStreamDecoder()

	events, err := decoder.Feed([]byte("data: {\"type\":\"message\",\"content\":\"hi\"}\r\n"))
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(events) != 1 || events[0].Content != "hi" {
		t.Errorf("Feed() did not handle CRLF line, events = %v", events)
	}
}

func TestStreamDecoder_FlushDiscardsPartial(t *testing.T) {
	decoder := NewStreamDecoder()

	if _, err := decoder.Feed([]byte(`data: {"type":"done"`)); err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if decoder.Buffered() == 0 {
		t.Fatal("expected buffered partial line")
	}

	decoder.Flush()
	if decoder.Buffered() != 0 {
		t.Errorf("Buffered() = %d after Flush(), want 0", decoder.Buffered())
	}

	// The discarded partial must not leak into the next feed.
	events, err := decoder.Feed([]byte(`data: {"type":"done"}` + "\n"))
	if err != nil {
		t.Fatalf("Feed() after Flush() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != EventDone {
		t.Errorf("Feed() after Flush() = %v, want one done event", events)
	}
}
