package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/deep-research/internal/viewer"
)

// JSONLExporter exports sessions in JSONL format (one message per line)
type JSONLExporter struct{}

// Export writes each message in its persisted wire form, followed by the
// final answer when the session finished.
func (e *JSONLExporter) Export(session *viewer.SessionView, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, msg := range session.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	if session.FinalResult != nil {
		final := map[string]interface{}{
			"type":      "final",
			"content":   *session.FinalResult,
			"iteration": session.Iterations,
		}
		if err := enc.Encode(final); err != nil {
			return fmt.Errorf("failed to encode final answer: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
