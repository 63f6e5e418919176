package internal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Media kinds
const (
	MediaKindImage = "image"
	MediaKindFile  = "file"
)

// ContentPart is one element of a message's content: either a text
// fragment or a reference to a backend-stored image.
type ContentPart struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

// IsText reports whether the part carries text (as opposed to an image reference)
func (p ContentPart) IsText() bool {
	return p.ImageRef == ""
}

// Message represents one message in a conversation
type Message struct {
	ID       string        `json:"id,omitempty"`
	ThreadID string        `json:"threadId,omitempty"`
	Role     string        `json:"role"`
	Content  []ContentPart `json:"content"`
}

// PlainText concatenates the message's text parts
func (m *Message) PlainText() string {
	var b strings.Builder
	for _, part := range m.Content {
		if part.IsText() {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// MediaAttachment is a binary reference attached to a message, keyed by
// the message's position in its conversation rather than its id — the id
// may not be assigned yet when the attachment is registered.
type MediaAttachment struct {
	FileID string `json:"file_id"`
	Kind   string `json:"file_type"`
	Handle string `json:"-"` // local path once resolved, empty until then
}

// Resolved reports whether the attachment has a usable local handle
func (a *MediaAttachment) Resolved() bool {
	return a.Handle != ""
}

// Conversation holds one thread's ordered message history plus its
// position-keyed media attachments.
type Conversation struct {
	ID          string
	Title       string
	Provisional bool // true until the backend assigns a durable thread id
	Messages    []*Message
	Media       map[int][]*MediaAttachment // message position -> attachments
}

// NewConversation creates an empty conversation under the given id.
// Provisional conversations carry a locally generated id until the
// backend assigns a durable one.
func NewConversation(id string, provisional bool) *Conversation {
	return &Conversation{
		ID:          id,
		Provisional: provisional,
		Media:       make(map[int][]*MediaAttachment),
	}
}

// LastMessage returns the conversation's last message, or nil if empty
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Stream event kinds, matching the backend's wire "type" field
const (
	EventMessageID = "message_id"
	EventMessage   = "message"
	EventFile      = "file"
	EventThreadID  = "threadId"
	EventDone      = "done"
)

// StreamEvent is one decoded unit from the assistant response stream.
// Type selects which payload fields are meaningful.
type StreamEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	FileID    string `json:"file_id,omitempty"`
	FileType  string `json:"file_type,omitempty"`
	ThreadID  string `json:"threadId,omitempty"`
}

// ParseStreamEvent parses the JSON payload of one "data:" line into a
// StreamEvent, rejecting records with an unknown type.
func ParseStreamEvent(payload string) (*StreamEvent, error) {
	var evt StreamEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return nil, fmt.Errorf("failed to parse event JSON: %w", err)
	}

	switch evt.Type {
	case EventMessageID, EventMessage, EventFile, EventThreadID, EventDone:
		return &evt, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", evt.Type)
	}
}

// ChatSummary is one entry of the persisted conversation list. Only id
// and title are stored locally; full history is re-fetched from the
// backend on selection.
type ChatSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TitleFromPrompt derives a conversation title from the first user
// message, trimmed to a display-friendly length.
func TitleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	if title == "" {
		return "New Chat"
	}
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	const maxTitleLen = 40
	if len(title) > maxTitleLen {
		title = strings.TrimSpace(title[:maxTitleLen]) + "..."
	}
	return title
}
