package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Remove a conversation from the local list",
	Long:  `Remove a conversation summary from the local list. The backend's copy of the history is not touched.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		_, found, err := a.chats.Get(id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("unknown conversation: %s", id)
		}

		if err := a.chats.Remove(id); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
