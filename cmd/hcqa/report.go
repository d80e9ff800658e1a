package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/report"
	"github.com/hcqa/hcqa/internal/runner"
)

func reportCmd(a *app) *cobra.Command {
	var (
		last int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the consolidated HTML report from run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(a.cfg.ResultsDir, 0o755); err != nil {
				return fmt.Errorf("create results dir: %w", err)
			}
			history, err := runner.OpenHistory(filepath.Join(a.cfg.ResultsDir, historyDirName))
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.Latest(last)
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(a.cfg.ResultsDir, reportFileName)
			}
			if err := report.WriteFile(out, runs, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s (%d run(s))\n", out, len(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", reportRuns, "number of most recent runs to include; 0 for all")
	cmd.Flags().StringVarP(&out, "output", "o", "", "report path; defaults to RESULTS_DIR/"+reportFileName)
	return cmd
}
