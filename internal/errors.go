package internal

import "fmt"

// DecodeError represents a stream line that failed to parse as an event record
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RequestError represents a non-success HTTP status before streaming started
type RequestError struct {
	Op     string // "createThread", "getThreadMessages", "assistant", "getFile"
	Status int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request error [%s]: status %d", e.Op, e.Status)
}

// StreamInterruptedError represents a connection dropping mid-stream
type StreamInterruptedError struct {
	ThreadID string
	Err      error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted [%s]: %v", e.ThreadID, e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}

// MediaFetchError represents a failed attachment fetch; non-fatal, the
// attachment slot just stays unresolved.
type MediaFetchError struct {
	FileID string
	Err    error
}

func (e *MediaFetchError) Error() string {
	return fmt.Sprintf("media fetch error [%s]: %v", e.FileID, e.Err)
}

func (e *MediaFetchError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the local chat-list database
type StorageError struct {
	Path string
	Op   string // "open", "query", "exec"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during transcript export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
