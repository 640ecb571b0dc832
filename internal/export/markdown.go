package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/viewer"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct {
	// IncludeSystem renders the system prompt as well
	IncludeSystem bool
}

// Export renders the answer first, then the transcript, then the cited
// sources ordered by citation index.
func (e *MarkdownExporter) Export(session *viewer.SessionView, w io.Writer) error {
	title := session.FilePath
	if session.Query != nil {
		title = session.Query.Query
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", title)

	if session.Query != nil {
		_, _ = fmt.Fprintf(w, "**Date:** %s  \n", session.Query.Date)
	}
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", session.FilePath)
	_, _ = fmt.Fprintf(w, "**Status:** %s  \n", viewer.Summarize(session).Status)
	_, _ = fmt.Fprintf(w, "**Iterations:** %d\n\n", session.Iterations)

	if session.FinalResult != nil {
		_, _ = fmt.Fprintf(w, "## Answer\n\n%s\n\n", *session.FinalResult)
	}

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Transcript\n\n")

	for _, msg := range session.Messages {
		switch msg.Role {
		case internal.RoleSystem:
			if !e.IncludeSystem {
				continue
			}
			_, _ = fmt.Fprintf(w, "### System\n\n%s\n\n", escapeMarkdown(msg.Content))
		case internal.RoleUser:
			_, _ = fmt.Fprintf(w, "### User\n\n%s\n\n", escapeMarkdown(msg.Content))
		case internal.RoleAssistant:
			_, _ = fmt.Fprintf(w, "### Assistant\n\n")
			if msg.ReasoningContent != "" {
				_, _ = fmt.Fprintf(w, "%s\n\n", quote(msg.ReasoningContent))
			}
			if msg.Content != "" {
				_, _ = fmt.Fprintf(w, "%s\n\n", escapeMarkdown(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				_, _ = fmt.Fprintf(w, "- `%s` `%s`\n", call.Function.Name, call.Function.Arguments)
			}
			if len(msg.ToolCalls) > 0 {
				_, _ = fmt.Fprintln(w)
			}
		case internal.RoleTool:
			_, _ = fmt.Fprintf(w, "### Tool result (%s)\n\n", msg.ToolCallID)
			if len(msg.SearchResults) == 0 {
				_, _ = fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(msg.Content))
				continue
			}
			for _, item := range msg.SearchResults {
				_, _ = fmt.Fprintf(w, "- [^%d^] %s\n", item.Index, item.Title)
			}
			_, _ = fmt.Fprintln(w)
		}
	}

	if len(session.Evidence) > 0 {
		_, _ = fmt.Fprintf(w, "---\n\n")
		_, _ = fmt.Fprintf(w, "## Sources\n\n")
		for _, item := range sortedEvidence(session.Evidence) {
			line := fmt.Sprintf("[^%d^] [%s](%s)", item.Index, item.Title, item.URL)
			if item.SiteName != "" {
				line += " - " + item.SiteName
			}
			if item.PublishedTime != "" {
				line += ", " + item.PublishedTime
			}
			_, _ = fmt.Fprintf(w, "%s  \n", line)
		}
		_, _ = fmt.Fprintln(w)
	}

	return nil
}

func sortedEvidence(evidence map[int]internal.EvidenceItem) []internal.EvidenceItem {
	items := make([]internal.EvidenceItem, 0, len(evidence))
	for _, item := range evidence {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	return items
}

func quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
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
			// Escape markdown syntax outside code blocks
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
