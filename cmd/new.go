package cmd

import (
	"fmt"

	"github.com/gboksm11/optimai/internal"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new conversation",
	Long:  `Ask the backend for a new thread and save it to the local conversation list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.client.CreateThread(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to create new chat: %w", err)
		}
		internal.LogDebug("Created thread %s", id)

		if err := a.chats.Add(id, "New Chat"); err != nil {
			return err
		}

		fmt.Printf("Created conversation %s\n", id)
		fmt.Printf("Open it with: optimai chat %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
