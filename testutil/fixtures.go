package testutil

import (
	"path/filepath"
	"testing"

	"github.com/gboksm11/optimai/internal"
)

// CreateTestMessage builds a plain-text message for testing
func CreateTestMessage(role, text string) *internal.Message {
	return &internal.Message{
		Role:    role,
		Content: []internal.ContentPart{{Text: text}},
	}
}

// CreateTestMessageWithImage builds a message carrying text plus an
// image reference.
func CreateTestMessageWithImage(role, text, imageRef string) *internal.Message {
	return &internal.Message{
		Role: role,
		Content: []internal.ContentPart{
			{Text: text},
			{ImageRef: imageRef},
		},
	}
}

// CreateChatListFixture creates a chat-list database in a temp dir,
// pre-populated with the given summaries.
func CreateChatListFixture(t *testing.T, chats []internal.ChatSummary) *internal.ChatList {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chats.db")
	list, err := internal.OpenChatList(path)
	if err != nil {
		t.Fatalf("Failed to open chat list fixture: %v", err)
	}
	t.Cleanup(func() { _ = list.Close() })

	for _, chat := range chats {
		if err := list.Add(chat.ID, chat.Title); err != nil {
			t.Fatalf("Failed to seed chat %s: %v", chat.ID, err)
		}
	}
	return list
}
