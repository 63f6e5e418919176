package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gboksm11/optimai/internal"
)

// Backend is a scripted stand-in for the optimai backend. Each endpoint
// serves whatever the test configured; the assistant endpoint writes its
// stream chunks one at a time with a flush between each, so tests
// control the exact byte boundaries the client sees.
type Backend struct {
	Server *httptest.Server

	mu sync.Mutex

	// CreateThreadID is returned by GET /api/createThread.
	CreateThreadID string

	// Threads maps thread id to the history served by getThreadMessages.
	Threads map[string][]*internal.Message

	// StreamChunks are written sequentially by POST /api/assistant.
	StreamChunks [][]byte

	// AssistantStatus, when non-zero and not 200, is returned by
	// /api/assistant before any body is written.
	AssistantStatus int

	// Files maps file id to the bytes served by /api/getFile/{id}.
	// Missing ids get a 404.
	Files map[string][]byte

	// FileDelay postpones every getFile response, so tests can arrange
	// for media resolutions to land while a stream is still flowing.
	FileDelay time.Duration

	// LastMessage records the decoded newMessage field of the most
	// recent assistant request.
	LastMessage *internal.Message

	// LastAttachments records the multipart file names of the most
	// recent assistant request, keyed by field name.
	LastAttachments map[string][]string
}

// NewBackend starts a scripted backend server. It is shut down
// automatically when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		CreateThreadID: "thread-1",
		Threads:        make(map[string][]*internal.Message),
		Files:          make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/createThread", b.handleCreateThread)
	mux.HandleFunc("/api/getThreadMessages", b.handleThreadMessages)
	mux.HandleFunc("/api/assistant", b.handleAssistant)
	mux.HandleFunc("/api/getFile/", b.handleGetFile)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend's base URL
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	id := b.CreateThreadID
	b.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (b *Backend) handleThreadMessages(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	b.mu.Lock()
	messages, ok := b.Threads[id]
	b.mu.Unlock()

	if !ok {
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"messages": messages})
}

func (b *Backend) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "bad multipart body", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.LastAttachments = make(map[string][]string)
	if r.MultipartForm != nil {
		for field, files := range r.MultipartForm.File {
			for _, fh := range files {
				b.LastAttachments[field] = append(b.LastAttachments[field], fh.Filename)
			}
		}
	}
	if raw := r.FormValue("newMessage"); raw != "" {
		var msg internal.Message
		if err := json.Unmarshal([]byte(raw), &msg); err == nil {
			b.LastMessage = &msg
		}
	}
	status := b.AssistantStatus
	chunks := b.StreamChunks
	b.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "assistant unavailable", status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, chunk := range chunks {
		_, _ = w.Write(chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (b *Backend) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/getFile/")

	b.mu.Lock()
	data, ok := b.Files[id]
	delay := b.FileDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	_, _ = w.Write(data)
}

// EventLine builds one "data:" stream record followed by a newline
func EventLine(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Failed to marshal event payload: %v", err)
	}
	return []byte(fmt.Sprintf("data: %s\n", payload))
}

// DeltaEvent builds a message (text delta) stream record
func DeltaEvent(t *testing.T, text string) []byte {
	t.Helper()
	return EventLine(t, map[string]interface{}{"type": "message", "content": text})
}

// DoneEvent builds a done stream record
func DoneEvent(t *testing.T) []byte {
	t.Helper()
	return EventLine(t, map[string]interface{}{"type": "done"})
}
