package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/runner"
	"github.com/hcqa/hcqa/internal/testdata"
)

// fixtureTables maps fixture file names to the table and key they load into,
// parents first.
var fixtureTables = []struct {
	table string
	key   string
}{
	{"patients", "patient_id"},
	{"appointments", "appointment_id"},
	{"medical_records", "record_id"},
}

func dbCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the test database",
	}
	cmd.AddCommand(dbMigrateCmd(a))
	cmd.AddCommand(dbLoadCmd(a))
	cmd.AddCommand(dbCleanupCmd(a))
	cmd.AddCommand(dbIntegrityCmd(a))
	cmd.AddCommand(dbStatusCmd(a))
	return cmd
}

func dbMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	var dir string

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			count, err := db.NewMigrator(mgr, db.DefaultAlias, migrationsDir(a, dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().StringVar(&dir, "dir", "", "migrations directory; defaults to SCHEMA_DIR")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			statuses, err := db.NewMigrator(mgr, db.DefaultAlias, migrationsDir(a, dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
			}
			return w.Flush()
		},
	}
	statusCmd.Flags().StringVar(&dir, "dir", "", "migrations directory; defaults to SCHEMA_DIR")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(a *app, dir string) string {
	if dir != "" {
		return dir
	}
	return a.cfg.SchemaDir
}

func dbLoadCmd(a *app) *cobra.Command {
	var (
		dir    string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Upsert fixture files into the database",
		Long: "Loads <prefix>patients, <prefix>appointments and <prefix>medical_records " +
			"(json, csv or yaml) from the data directory. Missing files are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.DataDir
			}
			store, err := testdata.NewStore(dir)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			for _, ft := range fixtureTables {
				records, err := store.Load(prefix + ft.table)
				if errors.Is(err, testdata.ErrNotFound) {
					a.logger.Debug().Str("table", ft.table).Msg("no fixture file, skipping")
					continue
				}
				if err != nil {
					return err
				}
				n, err := mgr.Upsert(ctx, db.DefaultAlias, ft.table, ft.key, records)
				if err != nil {
					return fmt.Errorf("load %s: %w", ft.table, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d row(s)\n", ft.table, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "fixture directory; defaults to DATA_DIR")
	cmd.Flags().StringVar(&prefix, "prefix", "sample_", "fixture file name prefix")
	return cmd
}

func dbCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete test patients and their dependent rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			rep, err := runner.Cleanup(ctx, mgr, db.DefaultAlias, a.logger)
			if err != nil {
				return err
			}
			return printCleanup(cmd.OutOrStdout(), rep)
		},
	}
}

func printCleanup(out io.Writer, rep *db.CleanupReport) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Removed %d test patient(s)\n", len(rep.PatientIDs))
	fmt.Fprintln(w, "TABLE\tDELETED\tREMAINING")
	for _, t := range rep.Tables {
		fmt.Fprintf(w, "%s\t%d\t%d\n", t.Table, t.Deleted, t.Remaining)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !rep.Clean() {
		return errors.New("test rows remain after cleanup")
	}
	return nil
}

func dbIntegrityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity <patient_id>",
		Short: "Check a patient's required fields and related rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			rep, err := mgr.ValidatePatientIntegrity(ctx, db.DefaultAlias, args[0])
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if !rep.Passed {
				return fmt.Errorf("integrity check failed for patient %s", args[0])
			}
			return nil
		},
	}
}

func dbStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connection health and pool statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, err := a.connectDB(ctx)
			if err != nil {
				return err
			}
			defer mgr.CloseAll()

			stats, err := mgr.Stats(ctx, db.DefaultAlias)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
