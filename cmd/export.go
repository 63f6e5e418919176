package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gboksm11/optimai/internal"
	"github.com/gboksm11/optimai/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation transcript to file",
	Long: `Export a conversation transcript to various formats (jsonl, md, yaml, json).

The conversation's full history is fetched from the backend first.
Use 'optimai list' to see available conversation ids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id := args[0]
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		messages, err := a.client.ThreadMessages(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to fetch conversation: %w", err)
		}

		a.store.CreateConversation(id, false)
		if err := a.store.ReplaceHistory(id, messages); err != nil {
			return err
		}
		conv, _ := a.store.Conversation(id)

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		outPath := filepath.Join(outputDir, fmt.Sprintf("%s.%s", id, exporter.Extension()))
		f, err := os.Create(outPath)
		if err != nil {
			return &internal.ExportError{Format: format, Path: outPath, Err: err}
		}
		defer f.Close()

		if err := exporter.Export(conv, f); err != nil {
			return &internal.ExportError{Format: format, Path: outPath, Err: err}
		}

		fmt.Printf("Exported %s -> %s\n", id, outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "md", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
}
