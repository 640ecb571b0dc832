package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/deep-research/internal/viewer"
)

// JSONExporter exports sessions in JSON format (pretty-printed), in the
// same shape the viewer API serves
type JSONExporter struct{}

// Export exports a session to JSON format
func (e *JSONExporter) Export(session *viewer.SessionView, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(session)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
