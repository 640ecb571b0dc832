package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/agent"
	"github.com/iksnae/deep-research/internal/compact"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	inspectFormat string
)

// inspectReport is what inspect prints for one log
type inspectReport struct {
	File         string         `json:"file"`
	Query        string         `json:"query"`
	Records      int            `json:"records"`
	Malformed    int            `json:"malformed"`
	Roles        map[string]int `json:"roles"`
	ToolRounds   int            `json:"tool_rounds"`
	Evidence     int            `json:"evidence"`
	FirstIndex   int            `json:"first_index"`
	LastIndex    int            `json:"last_index"`
	IndexGaps    []int          `json:"index_gaps,omitempty"`
	Compactable  int            `json:"compactable"`
	PendingCalls int            `json:"pending_calls"`
	Started      string         `json:"started,omitempty"`
	Updated      string         `json:"updated,omitempty"`
	NextRun      string         `json:"next_run"`
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <md5|path|query>",
	Short: "Inspect the structure of a session log",
	Long: `Inspect a session log and report:
  • Record counts, including malformed lines that replay skips
  • Turns per role and completed tool rounds
  • Citation index range and any gaps
  • How many tool results the next model call would see compacted
  • What the next run of the same query would do

Examples:
  deep-research inspect 2025-06-01/<md5>.jsonl
  deep-research inspect --format json "weather today"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, err := viewer.ResolveSession(cfg.DataDir, args[0])
		if err != nil {
			return fmt.Errorf("session %q: %w", args[0], err)
		}
		full, err := internal.ResolveWithin(cfg.DataDir, rel)
		if err != nil {
			return err
		}
		rep, err := sessionlog.ReplayFile(full)
		if err != nil {
			return err
		}

		report := buildInspectReport(rel, rep, cfg.Agent.KeepRounds)
		switch inspectFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		case "text":
			printInspectReport(cmd.OutOrStdout(), report)
			return nil
		default:
			return fmt.Errorf("unsupported format: %s (supported: text, json)", inspectFormat)
		}
	},
}

func buildInspectReport(rel string, rep *sessionlog.Replay, keepRounds int) inspectReport {
	r := inspectReport{
		File:       rel,
		Records:    rep.Records,
		Malformed:  rep.Malformed,
		Roles:      make(map[string]int),
		FirstIndex: -1,
		LastIndex:  -1,
	}
	if rep.Query != nil {
		r.Query = rep.Query.Query
	}
	if !rep.Started.IsZero() {
		r.Started = rep.Started.Format("2006-01-02 15:04:05")
		r.Updated = rep.Updated.Format("2006-01-02 15:04:05")
	}

	for _, turn := range rep.Messages {
		r.Roles[string(turn.Role())]++
		if a, ok := turn.(internal.AssistantTurn); ok && a.HasToolCalls() {
			r.ToolRounds++
		}
	}

	evidence := internal.CollectEvidence(rep.Messages)
	r.Evidence = len(evidence)
	if len(evidence) > 0 {
		indices := make([]int, 0, len(evidence))
		seen := make(map[int]bool)
		for _, item := range evidence {
			if !seen[item.Index] {
				seen[item.Index] = true
				indices = append(indices, item.Index)
			}
		}
		sort.Ints(indices)
		r.FirstIndex, r.LastIndex = indices[0], indices[len(indices)-1]
		for i := r.FirstIndex; i <= r.LastIndex; i++ {
			if !seen[i] {
				r.IndexGaps = append(r.IndexGaps, i)
			}
		}
	}

	_, r.Compactable = compact.Stats(compact.Compact(rep.Messages, keepRounds))

	switch {
	case rep.Complete():
		r.NextRun = fmt.Sprintf("%s: answer from the log (iteration %d)", agent.StateResumedComplete, rep.Final.Iteration)
	case rep.Query == nil && len(rep.Messages) > 0:
		r.NextRun = "corrupt: messages without a query record"
	case rep.Query == nil:
		r.NextRun = agent.StateFresh.String()
	default:
		transcript := agent.Restore(rep, rep.Query.Date, agent.ResearchPrompt)
		r.PendingCalls = len(agent.PendingCalls(transcript))
		last, ok := internal.LastAssistant(transcript)
		switch {
		case ok && !last.HasToolCalls():
			r.NextRun = fmt.Sprintf("%s: write the missing final record", agent.StateResumedInProgress)
		case r.PendingCalls > 0:
			r.NextRun = fmt.Sprintf("%s: finish %d tool call(s), then iteration %d", agent.StateResumedInProgress, r.PendingCalls, r.ToolRounds+1)
		default:
			r.NextRun = fmt.Sprintf("%s: continue at iteration %d", agent.StateResumedInProgress, r.ToolRounds+1)
		}
	}
	return r
}

func printInspectReport(out io.Writer, r inspectReport) {
	_, _ = fmt.Fprintf(out, "📋 Log: %s\n", r.File)
	if r.Query != "" {
		_, _ = fmt.Fprintf(out, "🔎 Query: %s\n", r.Query)
	}
	if r.Started != "" {
		_, _ = fmt.Fprintf(out, "🕒 %s → %s\n", r.Started, r.Updated)
	}
	_, _ = fmt.Fprintln(out)

	_, _ = fmt.Fprintf(out, "📊 Records: %d", r.Records)
	if r.Malformed > 0 {
		_, _ = fmt.Fprintf(out, " (%d malformed line(s) skipped)", r.Malformed)
	}
	_, _ = fmt.Fprintln(out)

	roles := make([]string, 0, len(r.Roles))
	for role := range r.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		_, _ = fmt.Fprintf(out, "  • %s: %d\n", role, r.Roles[role])
	}
	_, _ = fmt.Fprintf(out, "🔧 Tool rounds: %d\n", r.ToolRounds)

	if r.Evidence > 0 {
		_, _ = fmt.Fprintf(out, "📚 Evidence: %d item(s), [^%d^]..[^%d^]\n", r.Evidence, r.FirstIndex, r.LastIndex)
		if len(r.IndexGaps) > 0 {
			_, _ = fmt.Fprintf(out, "⚠️  Missing citation indices: %v\n", r.IndexGaps)
		}
	} else {
		_, _ = fmt.Fprintln(out, "📚 Evidence: none")
	}
	_, _ = fmt.Fprintf(out, "🗜  Compacted on next call: %d tool result(s)\n", r.Compactable)
	_, _ = fmt.Fprintf(out, "▶️  Next run: %s\n", r.NextRun)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format (text, json)")
}
