package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/export"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/spf13/cobra"
)

var (
	format       string
	outputDir    string
	exportDate   string
	sessionRef   string
	completeOnly bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions to file",
	Long: `Export research sessions to various formats (jsonl, md, yaml, json).

You can export all sessions, the sessions of one date, or a single session.
Use 'deep-research list' to see available sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Create exporter
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		var refs []string
		if sessionRef != "" {
			rel, err := viewer.ResolveSession(cfg.DataDir, sessionRef)
			if err != nil {
				return fmt.Errorf("session not found: %s (use 'deep-research list' to see available sessions)", sessionRef)
			}
			refs = append(refs, rel)
		} else {
			sessions, err := viewer.ListSessions(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			for _, s := range sessions {
				if exportDate != "" && s.Date != exportDate {
					continue
				}
				refs = append(refs, s.FilePath)
			}
		}

		if len(refs) == 0 {
			internal.PrintWarning("No sessions to export")
			return nil
		}

		// Ensure output directory exists
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return &internal.ExportError{Format: format, Path: outputDir, Err: err}
		}

		exported := 0
		ctx := context.Background()
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d session(s) to %s", len(refs), outputDir), func() error {
			for _, rel := range refs {
				view, err := viewer.LoadSession(cfg.DataDir, rel)
				if err != nil {
					internal.LogError("Failed to load session %s: %v", rel, err)
					continue
				}
				if completeOnly && view.FinalResult == nil {
					internal.LogDebug("Skipping unfinished session %s", rel)
					continue
				}
				path := filepath.Join(outputDir, exportFileName(view, exporter.Extension()))
				if err := exportTo(exporter, view, path); err != nil {
					internal.LogError("%v", err)
					continue
				}
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Export complete: %d session(s) exported to %s", exported, outputDir))
		return nil
	},
}

// exportFileName names an exported session after its date and query hash
func exportFileName(view *viewer.SessionView, ext string) string {
	if key, err := internal.ParseSessionPath(view.FilePath); err == nil {
		return fmt.Sprintf("%s_%s.%s", key.Date, key.MD5, ext)
	}
	return fmt.Sprintf("session_%s.%s", filepath.Base(view.FilePath), ext)
}

func exportTo(exporter export.Exporter, view *viewer.SessionView, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := exporter.Export(view, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: exporter.Extension(), Path: path, Err: err}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Only export sessions of this date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&sessionRef, "session", "s", "", "Export a single session (md5, path or query)")
	exportCmd.Flags().BoolVar(&completeOnly, "complete-only", false, "Skip sessions without a final answer")
}
