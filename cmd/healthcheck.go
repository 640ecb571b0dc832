package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/deep-research/internal/search"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
	healthcheckOffline bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that deep-research is ready to run",
	Long: `Check the health of deep-research by verifying:
  • Configuration loading and validation
  • Model API credentials
  • Data directory access
  • Existing session logs
  • Search endpoint reachability (skipped with --offline)

This command is useful for debugging setup issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		fail := func(msg string, err error) {
			failed++
			_, _ = fmt.Fprintln(out, errorStyle.Render("❌ "+msg), err)
		}

		_, _ = fmt.Fprintln(out, sectionStyle.Render("🔍 Deep Research Health Check"))
		_, _ = fmt.Fprintln(out)

		// Step 1: Configuration
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 1: Checking configuration..."))
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			_, _ = fmt.Fprintf(out, "   Model: %s at %s\n", cfg.Model.Name, cfg.Model.BaseURL)
			_, _ = fmt.Fprintf(out, "   Search: %s\n", cfg.Search.URL)
			_, _ = fmt.Fprintf(out, "   Max iterations: %d, keep rounds: %d\n", cfg.Agent.MaxIterations, cfg.Agent.KeepRounds)
		}
		_, _ = fmt.Fprintln(out)

		// Step 2: Credentials
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 2: Checking model credentials..."))
		if err := cfg.RequireModelCredentials(); err != nil {
			fail("Model credentials missing:", err)
		} else {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Model API key set"))
		}
		if cfg.Search.APIKey == "" {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  SEARCH_API_KEY not set; searches run unauthenticated"))
		}
		_, _ = fmt.Fprintln(out)

		// Step 3: Data directory
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 3: Checking data directory..."))
		if err := checkWritable(cfg.DataDir); err != nil {
			fail("Data directory not writable:", err)
		} else {
			_, _ = fmt.Fprintln(out, successStyle.Render("✅ Data directory writable"))
			if healthcheckVerbose {
				_, _ = fmt.Fprintf(out, "   Directory: %s\n", cfg.DataDir)
			}
		}
		_, _ = fmt.Fprintln(out)

		// Step 4: Existing sessions
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 4: Scanning session logs..."))
		sessions, err := viewer.ListSessions(cfg.DataDir)
		if err != nil {
			fail("Failed to scan session logs:", err)
		} else if len(sessions) > 0 {
			_, _ = fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d session(s)", len(sessions))))
			if healthcheckVerbose {
				for i, s := range sessions {
					if i == 5 {
						_, _ = fmt.Fprintf(out, "   ... and %d more\n", len(sessions)-5)
						break
					}
					_, _ = fmt.Fprintf(out, "   [%d] %s (%s)\n", i+1, truncate(s.Query, 60), s.FilePath)
				}
			}
		} else {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  No sessions found yet"))
		}
		_, _ = fmt.Fprintln(out)

		// Step 5: Search endpoint
		_, _ = fmt.Fprintln(out, infoStyle.Render("Step 5: Checking search endpoint..."))
		if healthcheckOffline {
			_, _ = fmt.Fprintln(out, warningStyle.Render("⚠️  Skipped (--offline)"))
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := search.NewJina(cfg.Search).Ping(ctx)
			cancel()
			if err != nil {
				fail("Search endpoint unreachable:", err)
			} else {
				_, _ = fmt.Fprintln(out, successStyle.Render("✅ Search endpoint reachable"))
			}
		}
		_, _ = fmt.Fprintln(out)

		return printHealthSummary(out, failed)
	},
}

func printHealthSummary(out io.Writer, failed int) error {
	_, _ = fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
	_, _ = fmt.Fprintln(out)
	if failed == 0 {
		_, _ = fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		return nil
	}
	_, _ = fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Health check failed: %d problem(s)", failed)))
	return fmt.Errorf("health check failed: %d problem(s)", failed)
}

// checkWritable creates dir if needed and probes it with a temporary file
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "verbose", "v", false, "Show detailed diagnostic information")
	healthcheckCmd.Flags().BoolVar(&healthcheckOffline, "offline", false, "Skip the search endpoint check")
}
