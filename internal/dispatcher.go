package internal

import (
	"context"
	"fmt"
)

// SessionContext carries the per-send state the dispatcher threads
// between events: which conversation the session belongs to, the
// generation captured when the send started, the message id remembered
// for the next assistant message, and whether the session currently owns
// an accumulating assistant message at the end of the conversation.
type SessionContext struct {
	ConversationID string
	Generation     uint64

	pendingMessageID string
	accumulating     bool
	Done             bool
}

// NewSessionContext captures the conversation and its generation at the
// moment a send begins.
func NewSessionContext(conversationID string, generation uint64) *SessionContext {
	return &SessionContext{
		ConversationID: conversationID,
		Generation:     generation,
	}
}

// Dispatcher maps decoded stream events to ConversationStore mutations.
// It never talks to the network itself except by delegating file events
// to the MediaResolver, and it holds no state of its own: everything
// per-session lives in the SessionContext.
type Dispatcher struct {
	store    *ConversationStore
	resolver *MediaResolver
}

// NewDispatcher creates a Dispatcher over the given store and resolver
func NewDispatcher(store *ConversationStore, resolver *MediaResolver) *Dispatcher {
	return &Dispatcher{
		store:    store,
		resolver: resolver,
	}
}

// Apply applies one stream event to the store. Events must be applied in
// the order they were decoded. The caller is responsible for checking
// the session generation immediately before each call; media resolution
// re-checks it on completion because it finishes asynchronously.
func (d *Dispatcher) Apply(ctx context.Context, evt *StreamEvent, sess *SessionContext) error {
	switch evt.Type {
	case EventMessageID:
		// The id arrives ahead of the first delta and belongs to the
		// next assistant message this session creates. It also closes
		// the current accumulating run.
		sess.pendingMessageID = evt.MessageID
		sess.accumulating = false
		return nil

	case EventMessage:
		return d.applyDelta(evt.Content, sess)

	case EventFile:
		return d.applyFile(ctx, evt, sess)

	case EventThreadID:
		durableID := evt.ThreadID
		if err := d.store.PromoteConversation(sess.ConversationID, durableID); err != nil {
			return err
		}
		LogDebug("Promoted conversation %s -> %s", sess.ConversationID, durableID)
		sess.ConversationID = durableID
		return nil

	case EventDone:
		sess.Done = true
		return nil

	default:
		return fmt.Errorf("unhandled event type: %q", evt.Type)
	}
}

// applyDelta appends a text delta to the session's accumulating
// assistant message, creating that message on the first delta of a run.
func (d *Dispatcher) applyDelta(text string, sess *SessionContext) error {
	if sess.accumulating {
		if conv, ok := d.store.Conversation(sess.ConversationID); ok {
			if last := conv.LastMessage(); last != nil && last.Role == RoleAssistant {
				return d.store.AppendToLastMessage(sess.ConversationID, text)
			}
		}
		// Someone appended past our message; start a fresh one.
		sess.accumulating = false
	}

	msg := &Message{
		ID:       sess.pendingMessageID,
		ThreadID: sess.ConversationID,
		Role:     RoleAssistant,
		Content:  []ContentPart{{Text: text}},
	}
	sess.pendingMessageID = ""

	if _, err := d.store.AppendMessage(sess.ConversationID, msg); err != nil {
		return err
	}
	sess.accumulating = true
	return nil
}

// applyFile registers a pending attachment at the current last message
// position and resolves it in the background. Resolution must not block
// decoding of subsequent events; its result is discarded if the
// conversation's generation has advanced by the time it lands.
func (d *Dispatcher) applyFile(ctx context.Context, evt *StreamEvent, sess *SessionContext) error {
	conv, ok := d.store.Conversation(sess.ConversationID)
	if !ok {
		return fmt.Errorf("unknown conversation: %s", sess.ConversationID)
	}
	position := len(conv.Messages) - 1
	if position < 0 {
		position = 0
	}

	att := &MediaAttachment{FileID: evt.FileID, Kind: evt.FileType}
	if err := d.store.RegisterMedia(sess.ConversationID, position, att); err != nil {
		return err
	}

	conversationID := sess.ConversationID
	generation := sess.Generation
	go func() {
		handle, err := d.resolver.Resolve(ctx, evt.FileID, evt.FileType)
		if err != nil {
			// Non-fatal: the slot stays unresolved.
			LogWarn("Failed to resolve media %s: %v", evt.FileID, err)
			return
		}
		if d.store.Generation(conversationID) != generation {
			LogDebug("Discarding stale media handle for %s", evt.FileID)
			return
		}
		if err := d.store.AttachMediaHandle(conversationID, evt.FileID, handle); err != nil {
			LogWarn("Failed to attach media handle %s: %v", evt.FileID, err)
		}
	}()

	return nil
}
