package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/deep-research/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	configPath  string
	dataDirFlag string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"

	// cfg is loaded once per invocation before any subcommand runs
	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deep-research",
	Short: "Run resumable deep-research sessions and browse their logs",
	Long: `A CLI that researches a question by alternating model calls with web
searches, citing every source it reads.

Every step of a session is appended to a JSONL log under the data directory
(<data-dir>/<date>/<md5(query)>.jsonl). Asking the same question again on the
same day resumes the log instead of starting over; a finished session is
answered straight from the log.

Features:
  • Resumable research sessions with crash-safe logs
  • Concurrent searches with deduplicated, numbered citations
  • Context compaction for long sessions
  • List, view, inspect and export past sessions
  • A read-only HTTP API over the logs

Quick Start:
  deep-research research -q "What changed in Go 1.24?"
  deep-research list                      # List all sessions
  deep-research show <md5|path|query>     # View a session
  deep-research export --format md        # Export as Markdown
  deep-research serve                     # Serve the viewer API`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)

		loaded, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if dataDirFlag != "" {
			loaded.DataDir = dataDirFlag
		}
		cfg = loaded
		internal.LogDebug("Data directory: %s", cfg.DataDir)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.deep-research.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding the session logs (overrides config)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
