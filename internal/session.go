package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// SessionState is the lifecycle state of a send session
type SessionState int

const (
	StateIdle SessionState = iota
	StateSending
	StateStreaming
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrSendInProgress is returned when a send is attempted on a
// conversation that already has an active session.
var ErrSendInProgress = errors.New("a send is already in progress for this conversation")

// SessionController orchestrates one send end-to-end: optimistic local
// append, the assistant request, and the stream consumption loop. It
// never mutates conversation state directly; every change goes through
// the Dispatcher so mutation logic stays in one place.
type SessionController struct {
	store      *ConversationStore
	client     *Client
	dispatcher *Dispatcher

	// Per-read idle timeout on the response stream. Zero disables it.
	ReadTimeout time.Duration

	mu     sync.Mutex
	states map[string]SessionState
}

// NewSessionController creates a controller over the given collaborators
func NewSessionController(store *ConversationStore, client *Client, dispatcher *Dispatcher) *SessionController {
	return &SessionController{
		store:       store,
		client:      client,
		dispatcher:  dispatcher,
		ReadTimeout: 2 * time.Minute,
		states:      make(map[string]SessionState),
	}
}

// State returns the session state for a conversation
func (sc *SessionController) State(conversationID string) SessionState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.states[conversationID]
}

func (sc *SessionController) setState(conversationID string, state SessionState) {
	sc.mu.Lock()
	if state == StateIdle {
		delete(sc.states, conversationID)
	} else {
		sc.states[conversationID] = state
	}
	sc.mu.Unlock()
}

// tryBegin moves the conversation into Sending unless a session is
// already active on it.
func (sc *SessionController) tryBegin(conversationID string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if state := sc.states[conversationID]; state == StateSending || state == StateStreaming {
		return false
	}
	sc.states[conversationID] = StateSending
	return true
}

// Send sends the user's text (plus attachments) on the given
// conversation and consumes the response stream to completion. It
// returns the conversation's final id, which differs from
// conversationID when the backend promoted a provisional conversation.
//
// The optimistic user message is appended before any network call and is
// never rolled back. If the active conversation is switched away while
// the stream is live, event application stops and the remaining stream
// is discarded.
func (sc *SessionController) Send(ctx context.Context, conversationID, text string, attachments []OutgoingAttachment) (string, error) {
	conv, ok := sc.store.Conversation(conversationID)
	if !ok {
		return conversationID, fmt.Errorf("unknown conversation: %s", conversationID)
	}

	if !sc.tryBegin(conversationID) {
		return conversationID, ErrSendInProgress
	}
	defer sc.setState(conversationID, StateIdle)

	userMsg := &Message{
		Role:    RoleUser,
		Content: []ContentPart{{Text: text}},
	}
	if !conv.Provisional {
		userMsg.ThreadID = conv.ID
	}

	// Optimistic append: the message and its attachments are visible
	// before the request goes out.
	pos, err := sc.store.AppendMessage(conversationID, userMsg)
	if err != nil {
		return conversationID, err
	}
	for _, att := range attachments {
		local := &MediaAttachment{FileID: att.Name, Kind: att.Kind, Handle: att.Name}
		if err := sc.store.RegisterMedia(conversationID, pos, local); err != nil {
			return conversationID, err
		}
	}

	sess := NewSessionContext(conversationID, sc.store.Generation(conversationID))

	body, err := sc.client.SendMessage(ctx, userMsg, attachments)
	if err != nil {
		sc.setState(conversationID, StateFailed)
		LogError("Send failed before streaming: %v", err)
		return conversationID, err
	}
	defer body.Close()

	sc.setState(conversationID, StateStreaming)
	if err := sc.consumeStream(ctx, body, sess); err != nil {
		return sess.ConversationID, err
	}
	return sess.ConversationID, nil
}

// consumeStream pulls chunks through the decoder and applies each event
// in order. The conversation generation is checked immediately before
// every event application, not once per chunk, because one chunk may
// carry several events.
func (sc *SessionController) consumeStream(ctx context.Context, body io.ReadCloser, sess *SessionContext) error {
	reader := NewTimeoutReader(body, sc.ReadTimeout)
	decoder := NewStreamDecoder()
	buf := make([]byte, 4096)

	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			events, decErr := decoder.Feed(buf[:n])
			if decErr != nil {
				// Skip-and-log: one bad record must not abort the stream.
				LogWarn("Skipping malformed stream record: %v", decErr)
			}
			for _, evt := range events {
				if sc.store.Generation(sess.ConversationID) != sess.Generation {
					LogDebug("Conversation %s switched away, discarding remaining stream", sess.ConversationID)
					return nil
				}
				if err := sc.dispatcher.Apply(ctx, evt, sess); err != nil {
					LogWarn("Failed to apply %s event: %v", evt.Type, err)
				}
			}
		}

		if readErr != nil {
			decoder.Flush()
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			// Mid-stream drop: partial assistant text stays visible.
			return &StreamInterruptedError{ThreadID: sess.ConversationID, Err: readErr}
		}
	}
}
