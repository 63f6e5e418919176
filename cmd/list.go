package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	Long:  `List all conversation summaries saved locally. Full history lives on the backend and is fetched when a conversation is opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		chats, err := a.chats.List()
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		if len(chats) == 0 {
			fmt.Println("No saved conversations. Start one with 'optimai chat'.")
			return nil
		}

		fmt.Println(headerStyle.Render("Conversations"))
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, chat := range chats {
			fmt.Fprintf(w, "%s\t%s\n", titleStyle.Render(chat.Title), idStyle.Render(chat.ID))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println(countStyle.Render(fmt.Sprintf("%d conversation(s)", len(chats))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
