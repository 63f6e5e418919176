package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/gboksm11/optimai/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *internal.Conversation, w io.Writer) error {
	tr := buildTranscript(conv)

	title := tr.Title
	if title == "" {
		title = tr.ID
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)
	_, _ = fmt.Fprintf(w, "**Conversation:** %s  \n", tr.ID)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(tr.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range tr.Messages {
		content := escapeMarkdown(msg.Content)
		_, _ = fmt.Fprintf(w, "**%s:**\n\n%s\n\n", msg.Role, content)

		for _, media := range msg.Media {
			_, _ = fmt.Fprintf(w, "![attachment](%s)\n\n", media)
		}

		if i < len(tr.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes markdown special characters outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
