//go:build database

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/runner"
	"github.com/hcqa/hcqa/internal/testdata"
)

func TestSmokeDatabaseConnection(t *testing.T) {
	mgr := connect(t)
	stats, _ := mgr.Stats(context.Background(), db.DefaultAlias)
	if !stats.Healthy {
		t.Fatalf("database unhealthy: %s", stats.Error)
	}
}

func TestSmokeMigrationsApplied(t *testing.T) {
	mgr := connect(t)
	statuses, _ := db.NewMigrator(mgr, db.DefaultAlias, filepath.Join(globalDB.Root, "data", "sql_scripts")).Status(context.Background())
	if len(statuses) == 0 {
		t.Fatal("no migrations found")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %d %s is pending", s.Version, s.Name)
		}
	}
}

func TestRegressionPatientIntegrity(t *testing.T) {
	ctx := context.Background()
	mgr := connect(t)
	f := testdata.NewFactory(testdata.FactoryOptions{})

	id := uniquePatientID()
	rec := f.Patient(func(p *testdata.Patient) { p.PatientID = id }).ToRecord()
	got, _ := mgr.CreateTestPatient(ctx, db.DefaultAlias, rec)
	if got != id {
		t.Fatalf("CreateTestPatient returned %q, want %q", got, id)
	}
	t.Cleanup(func() { mgr.CleanupTestData(context.Background(), db.DefaultAlias, []string{id}) })

	mgr.Upsert(ctx, db.DefaultAlias, "appointments", "appointment_id", testdata.AppointmentRecords([]testdata.Appointment{
		f.Appointment(id),
		f.Appointment(id),
	}))

	report, _ := mgr.ValidatePatientIntegrity(ctx, db.DefaultAlias, id)
	if !report.Passed {
		t.Fatalf("integrity failed: %+v", report)
	}
	if report.RelatedCounts["appointments"] != 2 {
		t.Errorf("appointments = %d, want 2", report.RelatedCounts["appointments"])
	}
}

func TestRegressionAuditTrail(t *testing.T) {
	ctx := context.Background()
	mgr := connect(t)

	id := uniquePatientID()
	mgr.RecordAudit(ctx, db.DefaultAlias, db.AuditEvent{
		PatientID:    id,
		Action:       "read",
		UserID:       "qa_admin",
		ResourceType: "patients",
	})
	if ok, _ := mgr.VerifyAuditTrail(ctx, db.DefaultAlias, id, "read", "qa_admin"); !ok {
		t.Fatal("audit entry not found")
	}

	quiet := db.NewManager(db.Options{})
	if err := quiet.Connect(ctx, globalDB.Conn, db.DefaultAlias); err != nil {
		t.Fatal(err)
	}
	defer quiet.CloseAll()
	ok, err := quiet.VerifyAuditTrail(ctx, db.DefaultAlias, id, "delete", "qa_admin")
	if ok || !errors.Is(err, db.ErrSecurity) {
		t.Errorf("missing entry: ok=%v err=%v, want ErrSecurity", ok, err)
	}
}

func TestRegressionSampleFixtures(t *testing.T) {
	ctx := context.Background()
	mgr := connect(t)

	store, err := testdata.NewStore(filepath.Join(globalDB.Root, "data", "test_data"))
	if err != nil {
		t.Fatal(err)
	}
	patients, err := store.Load("sample_patients")
	if err != nil {
		t.Fatal(err)
	}
	appointments, err := store.Load("sample_appointments")
	if err != nil {
		t.Fatal(err)
	}

	ids := make([]string, len(patients))
	for i, p := range patients {
		ids[i] = p["patient_id"].(string)
	}
	t.Cleanup(func() { mgr.CleanupTestData(context.Background(), db.DefaultAlias, ids) })

	// Loading twice exercises the update path of the upsert.
	for i := 0; i < 2; i++ {
		if n, _ := mgr.Upsert(ctx, db.DefaultAlias, "patients", "patient_id", patients); n != len(patients) {
			t.Fatalf("upserted %d patients, want %d", n, len(patients))
		}
		if n, _ := mgr.Upsert(ctx, db.DefaultAlias, "appointments", "appointment_id", appointments); n != len(appointments) {
			t.Fatalf("upserted %d appointments, want %d", n, len(appointments))
		}
	}

	rows, _ := mgr.Query(ctx, db.DefaultAlias, "SELECT COUNT(*) AS count FROM appointments WHERE patient_id = ?", ids[0])
	if len(rows) != 1 || rows[0]["count"] == nil {
		t.Fatalf("unexpected count rows: %v", rows)
	}
}

func TestRegressionCleanupLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	mgr := connect(t)
	f := testdata.NewFactory(testdata.FactoryOptions{Seed: 99})

	var ids []string
	for i := 0; i < 3; i++ {
		id := uniquePatientID()
		ids = append(ids, id)
		mgr.CreateTestPatient(ctx, db.DefaultAlias, f.Patient(func(p *testdata.Patient) { p.PatientID = id }).ToRecord())
		mgr.Upsert(ctx, db.DefaultAlias, "appointments", "appointment_id",
			testdata.AppointmentRecords([]testdata.Appointment{f.Appointment(id)}))
		mgr.Upsert(ctx, db.DefaultAlias, "medical_records", "record_id",
			[]db.Record{f.MedicalRecord(id).ToRecord()})
	}

	report, _ := runner.Cleanup(ctx, mgr, db.DefaultAlias, zerolog.Nop())
	if !report.Clean() {
		t.Fatalf("rows remain after cleanup: %+v", report.Tables)
	}
	for _, id := range ids {
		integrity, _ := mgr.ValidatePatientIntegrity(ctx, db.DefaultAlias, id)
		if integrity.PatientExists {
			t.Errorf("patient %s still exists", id)
		}
	}
}

func TestRegressionRejectsUnsafeIdentifiers(t *testing.T) {
	quiet := db.NewManager(db.Options{})
	if err := quiet.Connect(context.Background(), globalDB.Conn, db.DefaultAlias); err != nil {
		t.Fatal(err)
	}
	defer quiet.CloseAll()

	_, err := quiet.Upsert(context.Background(), db.DefaultAlias, "patients; DROP TABLE patients", "patient_id",
		[]db.Record{{"patient_id": "TEST_X"}})
	if !errors.Is(err, db.ErrSecurity) {
		t.Fatalf("err = %v, want ErrSecurity", err)
	}
}
