package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session logs over HTTP",
	Long: `Serve a read-only JSON API over the session logs:

  GET /api/queries          list of sessions
  GET /api/query/<path>     one session with its messages and sources
  GET /healthz              liveness
  GET /metrics              Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		internal.PrintInfo("Serving " + cfg.DataDir + " on http://" + serveAddr)
		return viewer.Serve(ctx, serveAddr, viewer.NewRouter(cfg.DataDir))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5005", "Listen address")
}
