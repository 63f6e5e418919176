package export

import (
	"fmt"
	"io"

	"github.com/gboksm11/optimai/internal"
)

// Exporter defines the interface for all transcript export formats
type Exporter interface {
	Export(conv *internal.Conversation, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

// transcript is the serializable view of a conversation shared by the
// structured exporters.
type transcript struct {
	ID       string              `json:"id" yaml:"id"`
	Title    string              `json:"title,omitempty" yaml:"title,omitempty"`
	Messages []transcriptMessage `json:"messages" yaml:"messages"`
}

type transcriptMessage struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty"`
	Role    string   `json:"role" yaml:"role"`
	Content string   `json:"content" yaml:"content"`
	Media   []string `json:"media,omitempty" yaml:"media,omitempty"`
}

// buildTranscript flattens a conversation into its export view. Media
// entries are the resolved local handles when available, the backend
// file ids otherwise.
func buildTranscript(conv *internal.Conversation) transcript {
	tr := transcript{
		ID:    conv.ID,
		Title: conv.Title,
	}
	for pos, msg := range conv.Messages {
		tm := transcriptMessage{
			ID:      msg.ID,
			Role:    msg.Role,
			Content: msg.PlainText(),
		}
		for _, att := range conv.Media[pos] {
			if att.Resolved() {
				tm.Media = append(tm.Media, att.Handle)
			} else {
				tm.Media = append(tm.Media, att.FileID)
			}
		}
		tr.Messages = append(tr.Messages, tm)
	}
	return tr
}
