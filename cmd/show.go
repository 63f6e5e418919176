package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/gboksm11/optimai/internal"
	"github.com/spf13/cobra"
)

var showLimit int

var (
	// Styles for show command
	conversationHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	conversationMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	mediaRefStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true).
			Padding(0, 2)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show a conversation's messages",
	Long:  `Fetch a conversation's full history from the backend and display it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		summary, found, err := a.chats.Get(id)
		if err != nil {
			return err
		}
		title := id
		if found {
			title = summary.Title
		}

		messages, err := a.client.ThreadMessages(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to fetch conversation: %w", err)
		}

		fmt.Println(conversationHeaderStyle.Render(title))
		fmt.Println(conversationMetaStyle.Render(fmt.Sprintf("id: %s • %d messages", id, len(messages))))

		if showLimit > 0 && len(messages) > showLimit {
			messages = messages[len(messages)-showLimit:]
			fmt.Println(conversationMetaStyle.Render(fmt.Sprintf("(showing last %d)", showLimit)))
		}

		for _, msg := range messages {
			label := userMessageStyle.Render("user")
			if msg.Role == internal.RoleAssistant {
				label = assistantMessageStyle.Render("assistant")
			}
			fmt.Println(label)
			fmt.Println(messageContentStyle.Render(msg.PlainText()))
			for _, part := range msg.Content {
				if part.ImageRef != "" {
					fmt.Println(mediaRefStyle.Render(fmt.Sprintf("[image %s]", part.ImageRef)))
				}
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Show only the last N messages")
}
