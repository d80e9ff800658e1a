package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/testdata"
)

func dataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Generate test data fixtures",
	}
	cmd.AddCommand(dataGenerateCmd(a))
	return cmd
}

func dataGenerateCmd(a *app) *cobra.Command {
	var (
		patients     int
		appointments int
		records      int
		seed         uint64
		format       string
		dir          string
		prefix       string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write generated patients, appointments and medical records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if patients <= 0 {
				return fmt.Errorf("--patients must be positive, got %d", patients)
			}
			f := testdata.Format(format)
			switch f {
			case testdata.JSON, testdata.CSV, testdata.YAML, testdata.YML:
			default:
				return fmt.Errorf("unsupported format %q (choose from json, csv, yaml, yml)", format)
			}
			if dir == "" {
				dir = a.cfg.DataDir
			}
			store, err := testdata.NewStore(dir)
			if err != nil {
				return err
			}

			factory := testdata.NewFactory(testdata.FactoryOptions{Seed: seed})
			ps := factory.Patients(patients)
			var (
				apts []testdata.Appointment
				mrs  []db.Record
			)
			for _, p := range ps {
				for i := 0; i < appointments; i++ {
					apts = append(apts, factory.Appointment(p.PatientID))
				}
				for i := 0; i < records; i++ {
					mrs = append(mrs, factory.MedicalRecord(p.PatientID).ToRecord())
				}
			}

			sets := []struct {
				name    string
				records []db.Record
			}{
				{prefix + "patients", testdata.PatientRecords(ps)},
				{prefix + "appointments", testdata.AppointmentRecords(apts)},
				{prefix + "medical_records", mrs},
			}
			for _, s := range sets {
				if len(s.records) == 0 {
					continue
				}
				path, err := store.Save(s.records, s.name, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d record(s)\n", path, len(s.records))
			}
			a.logger.Info().
				Int("patients", len(ps)).
				Int("appointments", len(apts)).
				Int("medical_records", len(mrs)).
				Str("dir", store.Dir()).
				Msg("test data generated")
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&patients, "patients", "n", 10, "number of patients")
	fl.IntVar(&appointments, "appointments", 2, "appointments per patient")
	fl.IntVar(&records, "records", 1, "medical records per patient")
	fl.Uint64Var(&seed, "seed", testdata.DefaultSeed, "generator seed")
	fl.StringVarP(&format, "format", "f", string(testdata.JSON), "output format (json, csv, yaml, yml)")
	fl.StringVar(&dir, "dir", "", "output directory; defaults to DATA_DIR")
	fl.StringVar(&prefix, "prefix", "generated_", "file name prefix")
	return cmd
}
