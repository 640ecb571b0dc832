package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/catalog"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var (
	listClearCache bool
	listNoCache    bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusStyles = map[viewer.Status]lipgloss.Style{
		viewer.StatusComplete:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		viewer.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		viewer.StatusEmpty:      lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	}
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List research sessions",
	Long: `List every session log under the data directory, newest date first.

Per-session statistics are cached in a SQLite catalog inside the data
directory and refreshed whenever a log changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := viewer.ListSessions(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		var summaries []viewer.Summary
		if listNoCache || len(sessions) == 0 {
			summaries = summarizeAll(sessions)
		} else {
			cat, err := catalog.Open(catalog.DefaultPath(cfg.DataDir))
			if err != nil {
				internal.LogWarn("Catalog unavailable, reading logs directly: %v", err)
				summaries = summarizeAll(sessions)
			} else {
				defer cat.Close()
				if listClearCache {
					if err := cat.Clear(); err != nil {
						internal.LogWarn("Failed to clear cache: %v", err)
					} else {
						internal.LogInfo("Cache cleared")
					}
				}
				summaries = cat.Summaries(cfg.DataDir, sessions)
			}
		}

		displaySessions(cmd.OutOrStdout(), summaries)
		return nil
	},
}

func summarizeAll(sessions []viewer.SessionInfo) []viewer.Summary {
	out := make([]viewer.Summary, 0, len(sessions))
	for _, info := range sessions {
		view, err := viewer.LoadSession(cfg.DataDir, info.FilePath)
		if err != nil {
			internal.LogWarn("Skipping %s: %v", info.FilePath, err)
			continue
		}
		out = append(out, viewer.Summarize(view))
	}
	return out
}

func displaySessions(out io.Writer, summaries []viewer.Summary) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(out, headerStyle.Render("📋 No sessions found"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(summaries)))
	_, _ = fmt.Fprintln(out, header)
	_, _ = fmt.Fprintln(out)

	// Use tabwriter for aligned columns with better spacing
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Query")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Iterations")+"\t"+titleStyle.Render("Sources")+"\t"+titleStyle.Render("Date")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, s := range summaries {
		query := s.Query
		if query == "" {
			query = "Untitled"
		}
		query = truncate(query, 50)
		query = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Render(query)

		status := string(s.Status)
		if style, ok := statusStyles[s.Status]; ok {
			status = style.Render(status)
		}

		// Show short ID (first 8 chars) for readability
		shortID := s.MD5
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(shortID),
			query,
			status,
			countStyle.Render(strconv.Itoa(s.Iterations)),
			countStyle.Render(strconv.Itoa(s.Evidence)),
			dateStyle.Render(s.Date),
		)
	}

	_ = w.Flush()
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the md5 (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(summaries[0].MD5)+
		idStyle.Render(") or the file path with `deep-research show <ref>`"))
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listClearCache, "clear-cache", false, "Clear the catalog before listing")
	listCmd.Flags().BoolVar(&listNoCache, "no-cache", false, "Read every log instead of using the catalog")
}
