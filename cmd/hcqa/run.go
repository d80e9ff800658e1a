package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/config"
	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/report"
	"github.com/hcqa/hcqa/internal/runner"
)

const (
	historyDirName = "history"
	reportFileName = "consolidated_report.html"
	reportRuns     = 20
)

func runCmd(a *app) *cobra.Command {
	var (
		environment string
		browser     string
		headless    bool
		parallel    bool
		coverage    bool
		tags        []string
		cleanup     bool
		withReport  bool
		root        string
	)

	cmd := &cobra.Command{
		Use:       "run <" + strings.Join(runner.KindNames(), "|") + ">",
		Short:     "Run test suites",
		Args:      cobra.ExactArgs(1),
		ValidArgs: runner.KindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if environment == "" {
				environment = cfg.Environment
			}
			if browser == "" {
				browser = cfg.Browser
			}
			if !cmd.Flags().Changed("headless") {
				headless = cfg.Headless
			}
			if err := oneOf("environment", environment, config.Environments); err != nil {
				return err
			}
			if err := oneOf("browser", browser, config.Browsers); err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
				return fmt.Errorf("create results dir: %w", err)
			}
			history, err := runner.OpenHistory(filepath.Join(cfg.ResultsDir, historyDirName))
			if err != nil {
				return err
			}
			defer history.Close()

			r := runner.New(runner.Options{
				Environment: environment,
				Browser:     browser,
				Headless:    headless,
				Parallel:    parallel,
				Coverage:    coverage,
				Tags:        tags,
				Root:        root,
				ResultsDir:  cfg.ResultsDir,
				Output:      cmd.OutOrStdout(),
				Logger:      a.logger,
			}, a.executor, history)

			ctx := cmd.Context()
			rec, err := r.Run(ctx, args[0])
			if err != nil {
				return err
			}

			if cleanup {
				mgr, err := a.connectDB(ctx)
				if err != nil {
					return fmt.Errorf("cleanup: %w", err)
				}
				defer mgr.CloseAll()
				if _, err := runner.Cleanup(ctx, mgr, db.DefaultAlias, a.logger); err != nil {
					return err
				}
			}

			if withReport {
				path := filepath.Join(cfg.ResultsDir, reportFileName)
				runs, err := history.Latest(reportRuns)
				if err != nil {
					return err
				}
				if err := report.WriteFile(path, runs, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
			}

			if !rec.Passed {
				return errSuitesFailed
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&environment, "environment", "e", "", "target environment (dev, staging, prod); defaults to ENVIRONMENT")
	f.StringVarP(&browser, "browser", "b", "", "browser for UI suites (chromium, firefox, webkit); defaults to BROWSER")
	f.BoolVar(&headless, "headless", true, "run browsers headless; defaults to HEADLESS")
	f.BoolVarP(&parallel, "parallel", "p", false, "run packages and tests in parallel")
	f.BoolVarP(&coverage, "coverage", "c", false, "write coverage profiles to RESULTS_DIR")
	f.StringSliceVarP(&tags, "tags", "t", nil, "only run tests whose names match one of these tags")
	f.BoolVar(&cleanup, "cleanup", false, "remove test patients from the database after the run")
	f.BoolVar(&withReport, "report", false, "write the consolidated HTML report after the run")
	f.StringVar(&root, "root", ".", "project root the suites run in")
	return cmd
}

func oneOf(name, value string, allowed []string) error {
	for _, v := range allowed {
		if v == value {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (choose from %s)", name, value, strings.Join(allowed, ", "))
}
