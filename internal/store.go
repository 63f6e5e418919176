package internal

import (
	"fmt"
	"sync"
)

// ConversationStore is the single source of truth for conversation
// state. All mutations are synchronous and atomic: observers are
// notified only after a mutation has fully applied, never mid-update.
//
// Each conversation carries a generation counter. Switching away from a
// conversation bumps its generation, which invalidates any in-flight
// session or media callback that captured the previous value.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	generations   map[string]uint64
	aliases       map[string]string // provisional id -> durable id after promotion
	activeID      string

	subMu       sync.Mutex
	subscribers map[int]func(conversationID string)
	nextSubID   int

	// deliveryMu serializes observer callbacks. Mutations happen on
	// whichever goroutine performed them (the stream consumer, a media
	// resolution goroutine), so without this two callbacks could run
	// concurrently and race over the observer's own state.
	deliveryMu sync.Mutex
}

// NewConversationStore creates an empty store
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*Conversation),
		generations:   make(map[string]uint64),
		aliases:       make(map[string]string),
		subscribers:   make(map[int]func(string)),
	}
}

// resolveID follows the alias chain left behind by promotions. Async
// callbacks started before a promotion still hold the provisional id.
// Callers must hold at least a read lock.
func (s *ConversationStore) resolveID(id string) string {
	for {
		durable, ok := s.aliases[id]
		if !ok {
			return id
		}
		id = durable
	}
}

// Subscribe registers an observer called with the conversation id after
// every completed mutation. The returned function removes the observer.
func (s *ConversationStore) Subscribe(fn func(conversationID string)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// notify runs outside the store lock so observers can read back safely.
// Deliveries are serialized: an observer sees one completed mutation at a
// time, never two callbacks in flight at once.
func (s *ConversationStore) notify(conversationID string) {
	s.subMu.Lock()
	fns := make([]func(string), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	for _, fn := range fns {
		fn(conversationID)
	}
}

// CreateConversation adds a new empty conversation and returns it
func (s *ConversationStore) CreateConversation(id string, provisional bool) *Conversation {
	s.mu.Lock()
	conv := NewConversation(id, provisional)
	s.conversations[id] = conv
	s.mu.Unlock()

	s.notify(id)
	return conv
}

// Conversation returns the conversation with the given id
func (s *ConversationStore) Conversation(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[s.resolveID(id)]
	return conv, ok
}

// ActiveID returns the id of the active conversation
func (s *ConversationStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Generation returns the current generation of the given conversation
func (s *ConversationStore) Generation(id string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generations[s.resolveID(id)]
}

// SwitchActive makes id the active conversation. The generation of the
// conversation being left is bumped so that stale callbacks from any
// session still running against it become no-ops.
func (s *ConversationStore) SwitchActive(id string) {
	s.mu.Lock()
	prev := s.activeID
	if prev != "" && prev != id {
		s.generations[prev]++
	}
	s.activeID = id
	s.mu.Unlock()

	s.notify(id)
}

// AppendMessage appends msg to the conversation and returns its
// position. The conversation title is set once, from the first user
// message, and never changed afterwards.
func (s *ConversationStore) AppendMessage(conversationID string, msg *Message) (int, error) {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("unknown conversation: %s", conversationID)
	}

	conv.Messages = append(conv.Messages, msg)
	pos := len(conv.Messages) - 1
	if conv.Title == "" && msg.Role == RoleUser {
		conv.Title = TitleFromPrompt(msg.PlainText())
	}
	s.mu.Unlock()

	s.notify(conversationID)
	return pos, nil
}

// AppendToLastMessage appends text to the last text part of the
// conversation's last message. The last message is the only one that may
// be mutated in place; it must be an assistant message.
func (s *ConversationStore) AppendToLastMessage(conversationID, text string) error {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown conversation: %s", conversationID)
	}

	last := conv.LastMessage()
	if last == nil || last.Role != RoleAssistant {
		s.mu.Unlock()
		return fmt.Errorf("conversation %s has no accumulating assistant message", conversationID)
	}

	appended := false
	for i := len(last.Content) - 1; i >= 0; i-- {
		if last.Content[i].IsText() {
			last.Content[i].Text += text
			appended = true
			break
		}
	}
	if !appended {
		last.Content = append(last.Content, ContentPart{Text: text})
	}
	s.mu.Unlock()

	s.notify(conversationID)
	return nil
}

// RegisterMedia records a pending attachment at the given message
// position. Positions are never renumbered, so the key stays valid no
// matter how many messages are appended afterwards.
func (s *ConversationStore) RegisterMedia(conversationID string, position int, att *MediaAttachment) error {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown conversation: %s", conversationID)
	}
	conv.Media[position] = append(conv.Media[position], att)
	s.mu.Unlock()

	s.notify(conversationID)
	return nil
}

// AttachMediaHandle sets the resolved local handle on a previously
// registered attachment, identified by its file id.
func (s *ConversationStore) AttachMediaHandle(conversationID, fileID, handle string) error {
	s.mu.Lock()
	conversationID = s.resolveID(conversationID)
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown conversation: %s", conversationID)
	}

	found := false
	for _, atts := range conv.Media {
		for _, att := range atts {
			if att.FileID == fileID {
				att.Handle = handle
				found = true
			}
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("no attachment with file id %s in conversation %s", fileID, conversationID)
	}
	s.notify(conversationID)
	return nil
}

// PromoteConversation re-keys a provisional conversation under the
// durable id assigned by the backend, preserving all accumulated
// messages, attachments, position keys, and the generation counter.
func (s *ConversationStore) PromoteConversation(provisionalID, durableID string) error {
	s.mu.Lock()
	conv, ok := s.conversations[provisionalID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown conversation: %s", provisionalID)
	}

	delete(s.conversations, provisionalID)
	conv.ID = durableID
	conv.Provisional = false
	s.conversations[durableID] = conv
	s.aliases[provisionalID] = durableID

	s.generations[durableID] = s.generations[provisionalID]
	delete(s.generations, provisionalID)

	if s.activeID == provisionalID {
		s.activeID = durableID
	}
	s.mu.Unlock()

	s.notify(durableID)
	return nil
}

// ReplaceHistory replaces the conversation's message list wholesale with
// history fetched from the backend and rebuilds the position-keyed media
// index from the embedded image references. Used when an existing
// conversation is selected; the backend's copy is authoritative.
func (s *ConversationStore) ReplaceHistory(conversationID string, messages []*Message) error {
	s.mu.Lock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown conversation: %s", conversationID)
	}

	conv.Messages = messages
	conv.Media = make(map[int][]*MediaAttachment)
	for pos, msg := range messages {
		for _, part := range msg.Content {
			if part.ImageRef != "" {
				conv.Media[pos] = append(conv.Media[pos], &MediaAttachment{
					FileID: part.ImageRef,
					Kind:   MediaKindImage,
				})
			}
		}
	}
	if conv.Title == "" {
		for _, msg := range messages {
			if msg.Role == RoleUser {
				conv.Title = TitleFromPrompt(msg.PlainText())
				break
			}
		}
	}
	s.mu.Unlock()

	s.notify(conversationID)
	return nil
}

// MediaAt returns the attachments registered at a message position
func (s *ConversationStore) MediaAt(conversationID string, position int) []*MediaAttachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	return conv.Media[position]
}

// TailView is a copied view of a conversation's last message. Observers
// render from it instead of the live Conversation, whose fields may be
// mutated under the store lock while a callback runs.
type TailView struct {
	Role     string
	Text     string
	Position int
	Media    []MediaAttachment // value copies, resolved handles included
}

// Tail snapshots the conversation's last message and its attachments
// under the store lock. ok is false when the conversation is missing or
// empty.
func (s *ConversationStore) Tail(conversationID string) (TailView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[s.resolveID(conversationID)]
	if !ok || len(conv.Messages) == 0 {
		return TailView{}, false
	}

	pos := len(conv.Messages) - 1
	view := TailView{
		Role:     conv.Messages[pos].Role,
		Text:     conv.Messages[pos].PlainText(),
		Position: pos,
	}
	for _, att := range conv.Media[pos] {
		view.Media = append(view.Media, *att)
	}
	return view, true
}
