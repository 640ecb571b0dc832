package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	limit         int
	showReasoning bool
	showSystem    bool
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	toolMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true).
			Padding(0, 2)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <md5|path|query>",
	Short: "Show the transcript of a session",
	Long: `Display the transcript of one session.

The session may be named by its log path relative to the data directory
(2025-06-01/<md5>.jsonl), by the md5 of its query, or by the query text
itself. For the last two the newest date wins.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := loadView(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		displaySessionHeader(out, view)

		var messages []internal.Message
		for _, msg := range view.Messages {
			if msg.Role == internal.RoleSystem && !showSystem {
				continue
			}
			messages = append(messages, msg)
		}

		// Apply limit if specified
		total := len(messages)
		if limit > 0 && limit < len(messages) {
			messages = messages[:limit]
		}

		for i, msg := range messages {
			displayMessage(out, i+1, msg, total)
		}

		// Show remaining count if limit was applied
		if limit > 0 && limit < total {
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				Italic(true).
				Render(fmt.Sprintf("... (%d more message(s))", total-limit)))
		}

		if view.FinalResult != nil {
			_, _ = fmt.Fprintln(out, sessionHeaderStyle.Render("✅ Final answer"))
			_, _ = fmt.Fprintln(out, messageContentStyle.Render(wrapText(*view.FinalResult, 80)))
		}
		return nil
	},
}

// loadView resolves ref against the configured data directory
func loadView(ref string) (*viewer.SessionView, error) {
	rel, err := viewer.ResolveSession(cfg.DataDir, ref)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", ref, err)
	}
	return viewer.LoadSession(cfg.DataDir, rel)
}

func displaySessionHeader(out io.Writer, view *viewer.SessionView) {
	if view == nil {
		return
	}
	title := view.FilePath
	if view.Query != nil {
		title = view.Query.Query
	}
	_, _ = fmt.Fprintln(out, sessionHeaderStyle.Render(fmt.Sprintf("🔎 %s", title)))

	s := viewer.Summarize(view)
	metaParts := []string{
		fmt.Sprintf("Date: %s", s.Date),
		fmt.Sprintf("Status: %s", s.Status),
		fmt.Sprintf("Iterations: %d", s.Iterations),
		fmt.Sprintf("Sources: %d", s.Evidence),
		fmt.Sprintf("File: %s", view.FilePath),
	}
	_, _ = fmt.Fprintln(out, sessionMetaStyle.Render(strings.Join(metaParts, " • ")))
	_, _ = fmt.Fprintln(out)
}

func displayMessage(out io.Writer, index int, msg internal.Message, total int) {
	var actorStyle lipgloss.Style
	var actorLabel string

	switch msg.Role {
	case internal.RoleUser:
		actorStyle = userMessageStyle
		actorLabel = "👤 User"
	case internal.RoleAssistant:
		actorStyle = assistantMessageStyle
		actorLabel = "🤖 Assistant"
	case internal.RoleTool:
		actorStyle = toolMessageStyle
		actorLabel = fmt.Sprintf("🔧 Tool (%s)", msg.ToolCallID)
	default:
		actorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		actorLabel = fmt.Sprintf("⚙️  %s", msg.Role)
	}

	header := actorStyle.Render(actorLabel) + " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	_, _ = fmt.Fprintln(out, header)

	if showReasoning && msg.ReasoningContent != "" {
		_, _ = fmt.Fprintln(out, reasoningStyle.Render(wrapText(strings.TrimSpace(msg.ReasoningContent), 80)))
	}

	switch {
	case msg.Role == internal.RoleTool && len(msg.SearchResults) > 0:
		var lines []string
		for _, item := range msg.SearchResults {
			lines = append(lines, fmt.Sprintf("[^%d^] %s (%s)", item.Index, item.Title, item.URL))
		}
		_, _ = fmt.Fprintln(out, messageContentStyle.Render(strings.Join(lines, "\n")))
	case strings.TrimSpace(msg.Content) != "":
		_, _ = fmt.Fprintln(out, messageContentStyle.Render(wrapText(strings.TrimSpace(msg.Content), 80)))
	case len(msg.ToolCalls) == 0:
		_, _ = fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
	}

	for _, call := range msg.ToolCalls {
		_, _ = fmt.Fprintln(out, messageContentStyle.Render(fmt.Sprintf("→ %s %s", call.Function.Name, call.Function.Arguments)))
	}

	_, _ = fmt.Fprintln(out)
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		// Wrap long lines
		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				if currentLine != "" {
					wrapped = append(wrapped, currentLine)
					currentLine = word
				} else {
					wrapped = append(wrapped, word)
					currentLine = ""
				}
			} else {
				if currentLine == "" {
					currentLine = word
				} else {
					currentLine += " " + word
				}
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of messages to show")
	showCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "Show the model's reasoning")
	showCmd.Flags().BoolVar(&showSystem, "system", false, "Show the system prompt")
}
