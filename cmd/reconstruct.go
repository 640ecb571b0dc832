package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/agent"
	"github.com/iksnae/deep-research/internal/compact"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	reconstructOutput     string
	reconstructKeepRounds int
)

// reconstructCmd represents the reconstruct command
var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <md5|path|query>",
	Short: "Rebuild the transcript the next model call would see",
	Long: `Replay a session log, restore its transcript the way a resumed run does and
apply context compaction, then write the resulting messages as JSON for
debugging.`,
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
		if rep.Query == nil {
			return &internal.CorruptLogError{Path: full, Reason: "no query record"}
		}

		keepRounds := cfg.Agent.KeepRounds
		if cmd.Flags().Changed("keep-rounds") {
			keepRounds = reconstructKeepRounds
		}
		transcript := compact.Compact(agent.Restore(rep, rep.Query.Date, agent.ResearchPrompt), keepRounds)

		messages := make([]internal.Message, 0, len(transcript))
		for _, turn := range transcript {
			msg, err := internal.EncodeTurn(turn)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}

		var out io.Writer = cmd.OutOrStdout()
		if reconstructOutput != "" && reconstructOutput != "-" {
			file, err := os.Create(reconstructOutput)
			if err != nil {
				return &internal.ExportError{Format: "json", Path: reconstructOutput, Err: err}
			}
			defer file.Close()
			out = file
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(messages); err != nil {
			return &internal.ExportError{Format: "json", Path: reconstructOutput, Err: err}
		}

		tools, compacted := compact.Stats(transcript)
		internal.LogInfo("Reconstructed %d message(s); %d of %d tool result(s) compacted", len(messages), compacted, tools)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconstructCmd)
	reconstructCmd.Flags().StringVarP(&reconstructOutput, "out", "o", "-", "Output file (- for stdout)")
	reconstructCmd.Flags().IntVar(&reconstructKeepRounds, "keep-rounds", internal.DefaultKeepRounds, "Number of recent tool results kept in full")
}
