package internal

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConversationStore_AppendMessage(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)

	pos, err := store.AppendMessage("c1", CreateTestMessage(RoleUser, "Hi there"))
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if pos != 0 {
		t.Errorf("AppendMessage() position = %d, want 0", pos)
	}

	conv, _ := store.Conversation("c1")
	if len(conv.Messages) != 1 {
		t.Fatalf("conversation has %d messages, want 1", len(conv.Messages))
	}
	if conv.Title != "Hi there" {
		t.Errorf("Title = %q, want %q", conv.Title, "Hi there")
	}
}

func TestConversationStore_TitleSetOnce(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)

	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "first"))
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "second"))

	conv, _ := store.Conversation("c1")
	if conv.Title != "first" {
		t.Errorf("Title = %q, want the first prompt to stick", conv.Title)
	}
}

func TestConversationStore_AppendMessage_Unknown(t *testing.T) {
	store := NewConversationStore()
	if _, err := store.AppendMessage("missing", CreateTestMessage(RoleUser, "x")); err == nil {
		t.Error("AppendMessage() should fail for unknown conversation")
	}
}

func TestConversationStore_AppendToLastMessage(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleAssistant, "Hel"))

	if err := store.AppendToLastMessage("c1", "lo"); err != nil {
		t.Fatalf("AppendToLastMessage() error = %v", err)
	}

	conv, _ := store.Conversation("c1")
	if got := conv.LastMessage().PlainText(); got != "Hello" {
		t.Errorf("last message text = %q, want Hello", got)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("conversation has %d messages, want 1 (mutated in place)", len(conv.Messages))
	}
}

func TestConversationStore_AppendToLastMessage_UserLast(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "hi"))

	if err := store.AppendToLastMessage("c1", "text"); err == nil {
		t.Error("AppendToLastMessage() should fail when the last message is not the assistant's")
	}
}

func TestConversationStore_MediaPositionSurvivesAppends(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	pos, _ := store.AppendMessage("c1", CreateTestMessage(RoleAssistant, "here is your chart"))

	att := &MediaAttachment{FileID: "f1", Kind: MediaKindImage}
	if err := store.RegisterMedia("c1", pos, att); err != nil {
		t.Fatalf("RegisterMedia() error = %v", err)
	}

	// Appending more messages must not move the association.
	for i := 0; i < 5; i++ {
		_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, fmt.Sprintf("followup %d", i)))
	}

	media := store.MediaAt("c1", pos)
	if len(media) != 1 || media[0].FileID != "f1" {
		t.Errorf("MediaAt(%d) = %v, want the registered attachment", pos, media)
	}
	if got := store.MediaAt("c1", pos+1); len(got) != 0 {
		t.Errorf("MediaAt(%d) = %v, want none", pos+1, got)
	}
}

func TestConversationStore_AttachMediaHandle(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	pos, _ := store.AppendMessage("c1", CreateTestMessage(RoleAssistant, "image below"))
	_ = store.RegisterMedia("c1", pos, &MediaAttachment{FileID: "f1", Kind: MediaKindImage})

	if err := store.AttachMediaHandle("c1", "f1", "/tmp/f1.png"); err != nil {
		t.Fatalf("AttachMediaHandle() error = %v", err)
	}

	media := store.MediaAt("c1", pos)
	if !media[0].Resolved() || media[0].Handle != "/tmp/f1.png" {
		t.Errorf("attachment not resolved: %+v", media[0])
	}
}

func TestConversationStore_AttachMediaHandle_UnknownFile(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)

	if err := store.AttachMediaHandle("c1", "ghost", "/tmp/x"); err == nil {
		t.Error("AttachMediaHandle() should fail for unregistered file id")
	}
}

func TestConversationStore_SwitchActiveBumpsGeneration(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	store.CreateConversation("c2", false)

	store.SwitchActive("c1")
	gen := store.Generation("c1")

	store.SwitchActive("c2")
	if store.Generation("c1") != gen+1 {
		t.Errorf("Generation(c1) = %d after switch away, want %d", store.Generation("c1"), gen+1)
	}
	if store.ActiveID() != "c2" {
		t.Errorf("ActiveID() = %q, want c2", store.ActiveID())
	}

	// Switching to the same conversation must not invalidate it.
	store.SwitchActive("c2")
	if store.Generation("c2") != 0 {
		t.Errorf("Generation(c2) = %d after self-switch, want 0", store.Generation("c2"))
	}
}

func TestConversationStore_PromoteConversation(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("tmp-1", true)
	store.SwitchActive("tmp-1")

	pos, _ := store.AppendMessage("tmp-1", CreateTestMessage(RoleUser, "Hi"))
	_ = store.RegisterMedia("tmp-1", pos, &MediaAttachment{FileID: "f1", Kind: MediaKindImage})

	if err := store.PromoteConversation("tmp-1", "abc"); err != nil {
		t.Fatalf("PromoteConversation() error = %v", err)
	}

	conv, ok := store.Conversation("abc")
	if !ok {
		t.Fatal("promoted conversation not found under durable id")
	}
	if conv.Provisional {
		t.Error("promoted conversation still marked provisional")
	}
	if len(conv.Messages) != 1 {
		t.Errorf("promoted conversation has %d messages, want 1", len(conv.Messages))
	}
	if media := store.MediaAt("abc", pos); len(media) != 1 {
		t.Errorf("promoted conversation lost its media at position %d", pos)
	}
	if store.ActiveID() != "abc" {
		t.Errorf("ActiveID() = %q, want abc", store.ActiveID())
	}

	// The provisional id keeps working for callbacks started before
	// the promotion.
	if _, ok := store.Conversation("tmp-1"); !ok {
		t.Error("provisional id no longer resolves after promotion")
	}
	if err := store.AttachMediaHandle("tmp-1", "f1", "/tmp/f1"); err != nil {
		t.Errorf("AttachMediaHandle() via provisional id failed: %v", err)
	}
}

func TestConversationStore_PromotePreservesGeneration(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("other", false)
	store.CreateConversation("tmp-1", true)

	store.SwitchActive("tmp-1")
	store.SwitchActive("other")
	store.SwitchActive("tmp-1") // generation of tmp-1 bumped once
	gen := store.Generation("tmp-1")
	if gen == 0 {
		t.Fatal("test setup: expected non-zero generation")
	}

	if err := store.PromoteConversation("tmp-1", "abc"); err != nil {
		t.Fatalf("PromoteConversation() error = %v", err)
	}
	if store.Generation("abc") != gen {
		t.Errorf("Generation(abc) = %d, want %d (preserved)", store.Generation("abc"), gen)
	}
	if store.Generation("tmp-1") != gen {
		t.Errorf("Generation via provisional id = %d, want %d", store.Generation("tmp-1"), gen)
	}
}

func TestConversationStore_ReplaceHistory(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "stale"))

	loaded := []*Message{
		CreateTestMessage(RoleUser, "What does the data show?"),
		{
			Role: RoleAssistant,
			Content: []ContentPart{
				{Text: "See the chart: "},
				{ImageRef: "f9"},
			},
		},
	}

	if err := store.ReplaceHistory("c1", loaded); err != nil {
		t.Fatalf("ReplaceHistory() error = %v", err)
	}

	conv, _ := store.Conversation("c1")
	if len(conv.Messages) != 2 {
		t.Fatalf("conversation has %d messages, want 2", len(conv.Messages))
	}

	// The media index is rebuilt from the embedded image references.
	media := store.MediaAt("c1", 1)
	if len(media) != 1 || media[0].FileID != "f9" {
		t.Errorf("MediaAt(1) = %v, want rebuilt f9 attachment", media)
	}
	if got := store.MediaAt("c1", 0); len(got) != 0 {
		t.Errorf("MediaAt(0) = %v, want none", got)
	}
}

func TestConversationStore_Subscribe(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)

	var notified []string
	unsubscribe := store.Subscribe(func(id string) {
		notified = append(notified, id)
	})

	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "hi"))
	if len(notified) != 1 || notified[0] != "c1" {
		t.Errorf("notifications = %v, want [c1]", notified)
	}

	unsubscribe()
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "again"))
	if len(notified) != 1 {
		t.Errorf("got %d notifications after unsubscribe, want 1", len(notified))
	}
}

func TestConversationStore_DeliveriesSerialized(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleAssistant, "reply"))
	for i := 0; i < 8; i++ {
		_ = store.RegisterMedia("c1", 0, &MediaAttachment{FileID: fmt.Sprintf("f%d", i), Kind: MediaKindFile})
	}

	// Mutations come from many goroutines, the way media resolutions do;
	// their callbacks must never overlap.
	var active, overlapped int32
	store.Subscribe(func(string) {
		if atomic.AddInt32(&active, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.AttachMediaHandle("c1", fmt.Sprintf("f%d", i), "/tmp/handle")
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&overlapped) != 0 {
		t.Error("observer callbacks ran concurrently")
	}
}

func TestConversationStore_TailIsACopy(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleUser, "hi"))
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleAssistant, "Hello"))
	_ = store.RegisterMedia("c1", 1, &MediaAttachment{FileID: "f1", Kind: MediaKindImage})

	tail, ok := store.Tail("c1")
	if !ok {
		t.Fatal("Tail() reported no tail")
	}
	if tail.Role != RoleAssistant || tail.Text != "Hello" || tail.Position != 1 {
		t.Errorf("Tail() = %+v", tail)
	}
	if len(tail.Media) != 1 || tail.Media[0].FileID != "f1" {
		t.Fatalf("Tail().Media = %v", tail.Media)
	}

	// Writing through the view must not touch the stored attachment.
	tail.Media[0].Handle = "scribbled"
	if media := store.MediaAt("c1", 1); media[0].Handle != "" {
		t.Errorf("stored attachment handle = %q, want empty", media[0].Handle)
	}

	if _, ok := store.Tail("missing"); ok {
		t.Error("Tail() on unknown conversation reported ok")
	}
	store.CreateConversation("empty", false)
	if _, ok := store.Tail("empty"); ok {
		t.Error("Tail() on empty conversation reported ok")
	}
}

func TestConversationStore_TailFollowsPromotion(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("provisional-1", true)
	_, _ = store.AppendMessage("provisional-1", CreateTestMessage(RoleAssistant, "Hello"))
	_ = store.PromoteConversation("provisional-1", "abc")

	// Lookups through the old id still reach the promoted tail.
	tail, ok := store.Tail("provisional-1")
	if !ok || tail.Text != "Hello" {
		t.Errorf("Tail() via provisional id = %+v, %v", tail, ok)
	}
}

func TestConversationStore_ObserverSeesWholeDelta(t *testing.T) {
	store := NewConversationStore()
	store.CreateConversation("c1", false)
	_, _ = store.AppendMessage("c1", CreateTestMessage(RoleAssistant, ""))

	var seen []string
	store.Subscribe(func(id string) {
		conv, _ := store.Conversation(id)
		seen = append(seen, conv.LastMessage().PlainText())
	})

	_ = store.AppendToLastMessage("c1", "Hello")
	_ = store.AppendToLastMessage("c1", " world")

	want := []string{"Hello", "Hello world"}
	if len(seen) != len(want) {
		t.Fatalf("observer fired %d times, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("observation %d = %q, want %q (deltas must apply atomically)", i, seen[i], want[i])
		}
	}
}
