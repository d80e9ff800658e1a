package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/sandbox"
)

func sandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Local healthcare API for the API suites",
	}
	cmd.AddCommand(sandboxServeCmd(a))
	return cmd
}

func sandboxServeCmd(a *app) *cobra.Command {
	var (
		port         string
		seedPatients int
		seed         uint64
		auditDB      bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.SandboxPort
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scfg := sandbox.Config{
				Username:     a.cfg.SandboxUser,
				Password:     a.cfg.SandboxPassword,
				JWTSecret:    a.cfg.JWTSecret,
				SeedPatients: seedPatients,
				Seed:         seed,
				Logger:       a.logger,
			}
			if auditDB {
				mgr, err := a.connectDB(ctx)
				if err != nil {
					return err
				}
				defer mgr.CloseAll()
				if _, err := db.NewMigrator(mgr, db.DefaultAlias, a.cfg.SchemaDir).Up(ctx); err != nil {
					return fmt.Errorf("migrate audit database: %w", err)
				}
				scfg.DB = mgr
				scfg.DBAlias = db.DefaultAlias
			}

			srv, err := sandbox.New(scfg)
			if err != nil {
				return err
			}
			return srv.Serve(ctx, ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port; defaults to SANDBOX_PORT")
	cmd.Flags().IntVar(&seedPatients, "patients", sandbox.DefaultSeedPatients, "patients to seed; negative seeds none")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "generator seed; zero uses the default")
	cmd.Flags().BoolVar(&auditDB, "audit-db", false, "persist audit entries to the configured database")
	return cmd
}
