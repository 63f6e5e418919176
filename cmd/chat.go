package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gboksm11/optimai/internal"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// Styles for the chat transcript
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	attachmentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat with the assistant",
	Long: `Start an interactive chat with the assistant.

Without arguments a new conversation begins; pass a conversation id
(see 'optimai list') to resume one. Assistant replies stream in as they
are generated.

Slash commands inside the chat:
  /new             start a new conversation
  /switch <id>     switch to another conversation
  /attach <path>   attach a file or image to the next message
  /quit            exit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		session := newChatSession(a, bufio.NewScanner(os.Stdin), os.Stdout)

		if len(args) == 1 {
			if err := session.resume(cmd.Context(), args[0]); err != nil {
				return err
			}
		} else {
			session.startProvisional()
		}

		return session.run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatSession drives the interactive loop. It renders store changes as
// a subscriber, which keeps all conversation state inside the store and
// the rendering strictly observational.
type chatSession struct {
	app *app
	in  *bufio.Scanner
	out *os.File

	pending []internal.OutgoingAttachment

	// renderMu guards the incremental-render cursor below. Store
	// notifications may arrive from a media resolution goroutine while
	// the main loop is resetting the cursor for the next send.
	renderMu sync.Mutex

	// printed tracks how much of the accumulating assistant message has
	// already been written, so each delta prints exactly once.
	printed       int
	labelled      bool
	mediaNotified map[string]bool
}

func newChatSession(a *app, in *bufio.Scanner, out *os.File) *chatSession {
	return &chatSession{
		app:           a,
		in:            in,
		out:           out,
		mediaNotified: make(map[string]bool),
	}
}

// resetRender clears the render cursor for a fresh assistant reply
func (s *chatSession) resetRender() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.printed = 0
	s.labelled = false
	s.mediaNotified = make(map[string]bool)
}

// markTailRendered aligns the render cursor with a conversation whose
// tail is about to be printed by renderHistory, so the activation
// notification does not print it a second time.
func (s *chatSession) markTailRendered(conversationID string) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	s.printed = 0
	s.labelled = false
	s.mediaNotified = make(map[string]bool)

	tail, ok := s.app.store.Tail(conversationID)
	if !ok || tail.Role != internal.RoleAssistant {
		return
	}
	s.printed = len(tail.Text)
	s.labelled = true
	for _, att := range tail.Media {
		s.mediaNotified[mediaKey(att)] = true
	}
}

// mediaKey distinguishes an attachment's pending and resolved
// announcements, so each prints once.
func mediaKey(att internal.MediaAttachment) string {
	if att.Resolved() {
		return att.FileID + "+handle"
	}
	return att.FileID
}

// startProvisional opens a fresh conversation under a local id. The
// backend assigns the durable id on the first send; the summary entry is
// re-keyed to it then.
func (s *chatSession) startProvisional() {
	id := uuid.NewString()
	s.app.store.CreateConversation(id, true)
	s.resetRender()
	s.app.store.SwitchActive(id)
	if err := s.app.chats.Add(id, "New Chat"); err != nil {
		internal.LogWarn("Failed to save conversation summary: %v", err)
	}
	fmt.Fprintln(s.out, noticeStyle.Render("Started a new conversation."))
}

// resume loads an existing conversation's history from the backend
func (s *chatSession) resume(ctx context.Context, id string) error {
	summary, found, err := s.app.chats.Get(id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("unknown conversation: %s (see 'optimai list')", id)
	}

	messages, err := s.app.client.ThreadMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}

	s.app.store.CreateConversation(id, false)
	if err := s.app.store.ReplaceHistory(id, messages); err != nil {
		return err
	}
	s.markTailRendered(id)
	s.app.store.SwitchActive(id)

	fmt.Fprintln(s.out, noticeStyle.Render(fmt.Sprintf("Resumed %q (%d messages).", summary.Title, len(messages))))
	s.renderHistory(id)
	return nil
}

// run is the interactive read-send loop
func (s *chatSession) run(ctx context.Context) error {
	unsubscribe := s.app.store.Subscribe(s.onStoreChange)
	defer unsubscribe()

	for {
		fmt.Fprint(s.out, promptStyle.Render("> "))
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.handleCommand(ctx, line)
			if err != nil {
				fmt.Fprintln(s.out, failureStyle.Render(fmt.Sprintf("Error: %v", err)))
			}
			if quit {
				return nil
			}
			continue
		}

		s.send(ctx, line)
	}
}

func (s *chatSession) handleCommand(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		s.startProvisional()
		return false, nil

	case "/switch":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /switch <conversation-id>")
		}
		return false, s.resume(ctx, fields[1])

	case "/attach":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /attach <path>")
		}
		return false, s.attach(fields[1])

	default:
		return false, fmt.Errorf("unknown command: %s", fields[0])
	}
}

// attach stages a local file for the next send
func (s *chatSession) attach(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}

	kind := internal.MediaKindFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		kind = internal.MediaKindImage
	}

	s.pending = append(s.pending, internal.OutgoingAttachment{
		Name: filepath.Base(path),
		Kind: kind,
		Data: data,
	})
	fmt.Fprintln(s.out, attachmentStyle.Render(fmt.Sprintf("Attached %s (%s)", filepath.Base(path), kind)))
	return nil
}

// send runs one full send session and keeps the chat list in sync with
// what the backend assigned.
func (s *chatSession) send(ctx context.Context, text string) {
	conversationID := s.app.store.ActiveID()
	conv, ok := s.app.store.Conversation(conversationID)
	if !ok {
		fmt.Fprintln(s.out, failureStyle.Render("No active conversation."))
		return
	}

	firstPrompt := len(conv.Messages) == 0
	wasProvisional := conv.Provisional
	attachments := s.pending
	s.pending = nil
	s.resetRender()

	finalID, err := s.app.session.Send(ctx, conversationID, text, attachments)
	fmt.Fprintln(s.out)

	switch {
	case errors.Is(err, internal.ErrSendInProgress):
		fmt.Fprintln(s.out, failureStyle.Render("Still streaming; wait for the current reply."))
		return
	case err != nil:
		var interrupted *internal.StreamInterruptedError
		if errors.As(err, &interrupted) {
			// Partial text already rendered stays visible.
			fmt.Fprintln(s.out, failureStyle.Render("Connection lost mid-reply."))
		} else {
			fmt.Fprintln(s.out, failureStyle.Render(fmt.Sprintf("Send failed: %v. Your message is kept; try again.", err)))
			return
		}
	}

	if wasProvisional && finalID != conversationID {
		if err := s.app.chats.Rekey(conversationID, finalID); err != nil {
			internal.LogWarn("Failed to re-key conversation summary: %v", err)
		}
	}
	if firstPrompt {
		if err := s.app.chats.Rename(finalID, internal.TitleFromPrompt(text)); err != nil {
			internal.LogWarn("Failed to update conversation title: %v", err)
		}
	}
}

// onStoreChange renders newly streamed content. It works from a copied
// tail view, never the live conversation: notifications can arrive on a
// media resolution goroutine while the stream consumer keeps mutating
// the message under the store lock.
func (s *chatSession) onStoreChange(conversationID string) {
	if conversationID != s.app.store.ActiveID() {
		return
	}
	tail, ok := s.app.store.Tail(conversationID)
	if !ok || tail.Role != internal.RoleAssistant {
		return
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if !s.labelled {
		fmt.Fprintf(s.out, "\n%s ", assistantLabelStyle.Render("assistant:"))
		s.labelled = true
	}

	if len(tail.Text) > s.printed {
		fmt.Fprint(s.out, tail.Text[s.printed:])
		s.printed = len(tail.Text)
	}

	// Announce attachments registered against the reply once each.
	for _, att := range tail.Media {
		key := mediaKey(att)
		if s.mediaNotified[key] {
			continue
		}
		s.mediaNotified[key] = true
		if att.Resolved() {
			fmt.Fprintf(s.out, "\n%s\n", attachmentStyle.Render(fmt.Sprintf("[saved %s]", att.Handle)))
		} else {
			fmt.Fprintf(s.out, "\n%s\n", attachmentStyle.Render(fmt.Sprintf("[fetching %s...]", att.FileID)))
		}
	}
}

// renderHistory prints an already-loaded conversation
func (s *chatSession) renderHistory(conversationID string) {
	conv, ok := s.app.store.Conversation(conversationID)
	if !ok {
		return
	}
	for pos, msg := range conv.Messages {
		label := userLabelStyle.Render("user:")
		if msg.Role == internal.RoleAssistant {
			label = assistantLabelStyle.Render("assistant:")
		}
		fmt.Fprintf(s.out, "%s %s\n", label, msg.PlainText())
		for _, att := range conv.Media[pos] {
			fmt.Fprintf(s.out, "%s\n", attachmentStyle.Render(fmt.Sprintf("[attachment %s]", att.FileID)))
		}
	}
}
