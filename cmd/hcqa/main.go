package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/config"
	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/runner"
)

// errSuitesFailed makes `hcqa run` exit non-zero without printing a usage
// message.
var errSuitesFailed = errors.New("one or more test suites failed")

// app carries state shared by all subcommands. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configFile string

	cfg    *config.Config
	logger zerolog.Logger
	// logOut receives log lines. Defaults to stderr so command output on
	// stdout stays machine readable.
	logOut io.Writer
	// executor runs suite invocations; nil means runner.GoExecutor.
	executor runner.Executor
}

func main() {
	if err := newRootCmd(&app{logOut: os.Stderr}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "hcqa",
		Short:        "Healthcare QA automation toolkit",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cfg, a.logOut)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (json, yaml or .env)")

	rootCmd.AddCommand(runCmd(a))
	rootCmd.AddCommand(dbCmd(a))
	rootCmd.AddCommand(dataCmd(a))
	rootCmd.AddCommand(sandboxCmd(a))
	rootCmd.AddCommand(reportCmd(a))
	rootCmd.AddCommand(securityCmd(a))
	return rootCmd
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// connectDB opens the configured database under db.DefaultAlias.
func (a *app) connectDB(ctx context.Context) (*db.Manager, error) {
	engine, err := db.ParseEngine(a.cfg.DBType)
	if err != nil {
		return nil, err
	}
	mgr := db.NewManager(db.Options{Logger: a.logger})
	err = mgr.Connect(ctx, db.ConnConfig{
		Engine:   engine,
		Host:     a.cfg.DBHost,
		Port:     a.cfg.DBPortOrDefault(),
		Database: a.cfg.DBName,
		Username: a.cfg.DBUser,
		Password: a.cfg.DBPassword,
		SSLMode:  a.cfg.DBSSLMode,
	}, db.DefaultAlias)
	if err != nil {
		return nil, err
	}
	return mgr, nil
}
