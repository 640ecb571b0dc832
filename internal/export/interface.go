package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/deep-research/internal/viewer"
)

// Exporter writes one session view in a single format
type Exporter interface {
	Export(session *viewer.SessionView, w io.Writer) error
	Extension() string
}

// NewExporter returns the exporter for format. Format names are case-insensitive.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
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
