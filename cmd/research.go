package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/agent"
	"github.com/iksnae/deep-research/internal/llm"
	"github.com/iksnae/deep-research/internal/search"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/spf13/cobra"
)

var (
	researchQuery         string
	researchMaxIterations int
	researchKeepRounds    int
	researchModel         string
)

// researchCmd represents the research command
var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Research a question, resuming today's session if one exists",
	Long: `Research a question by alternating model calls with web searches.

The session is keyed by the query text and today's date. Running the same
query again the same day continues the existing log, or prints the stored
answer if that session already finished.`,
	Example: `  deep-research research -q "How do solid-state batteries work?"
  deep-research research --max-iterations 20 "history of the Zip drive"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(researchQuery)
		if query == "" {
			query = strings.TrimSpace(strings.Join(args, " "))
		}
		if query == "" {
			return errors.New("a query is required (use --query or pass it as an argument)")
		}

		if cmd.Flags().Changed("max-iterations") {
			cfg.Agent.MaxIterations = researchMaxIterations
		}
		if cmd.Flags().Changed("keep-rounds") {
			cfg.Agent.KeepRounds = researchKeepRounds
		}
		if researchModel != "" {
			cfg.Model.Name = researchModel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.RequireModelCredentials(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctrl := newController(cfg)
		res, err := ctrl.Run(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				internal.PrintWarning("Interrupted; run the same query again today to resume")
			}
			return err
		}

		switch {
		case res.Truncated:
			internal.PrintWarning(fmt.Sprintf("Stopped at the iteration cap (%d) without a final answer", cfg.Agent.MaxIterations))
		case res.Resumed && res.State == agent.StateResumedComplete:
			internal.LogInfo("Answer loaded from the existing session log")
		default:
			internal.LogInfo("Finished after %d iteration(s)", res.Iterations)
		}
		internal.LogInfo("Session log: %s", res.Key.Path(cfg.DataDir))

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
		return nil
	},
}

// newController wires the model client, the search provider and the log
// store for one session.
func newController(c *internal.Config) *agent.Controller {
	provider := search.NewJina(c.Search)
	executor := search.NewExecutor(provider,
		search.WithMaxLength(c.Search.MaxLength),
		search.WithTimeout(c.Search.Timeout),
		search.WithMaxConcurrency(c.Search.Concurrency),
	)
	return agent.New(
		llm.NewClient(c.Model),
		executor,
		sessionlog.NewStore(c.DataDir),
		agent.WithMaxIterations(c.Agent.MaxIterations),
		agent.WithKeepRounds(c.Agent.KeepRounds),
	)
}

func init() {
	rootCmd.AddCommand(researchCmd)
	researchCmd.Flags().StringVarP(&researchQuery, "query", "q", "", "The question to research")
	researchCmd.Flags().IntVar(&researchMaxIterations, "max-iterations", internal.DefaultMaxIterations, "Maximum number of model calls")
	researchCmd.Flags().IntVar(&researchKeepRounds, "keep-rounds", internal.DefaultKeepRounds, "Number of recent tool results sent in full")
	researchCmd.Flags().StringVar(&researchModel, "model", "", "Model name (overrides config)")
}
