package db

import (
	"context"
	"fmt"
	"strings"
)

// DefaultCleanupOrder lists the tables CleanupTestData deletes from, child
// tables before patients.
var DefaultCleanupOrder = []string{
	"prescriptions",
	"medical_records",
	"appointments",
	"patient_allergies",
	"patient_medications",
	"patients",
}

// TestIDPrefixes identify rows created by test automation.
var TestIDPrefixes = []string{"TEST_", "PAT_"}

// TableCleanup is the result for one table.
type TableCleanup struct {
	Table     string `json:"table"`
	Deleted   int64  `json:"deleted"`
	Remaining int64  `json:"remaining"`
}

// CleanupReport is the outcome of CleanupTestData.
type CleanupReport struct {
	PatientIDs []string       `json:"patient_ids"`
	Tables     []TableCleanup `json:"tables"`
}

// Clean reports whether no rows for the cleaned ids remain in any table.
func (r *CleanupReport) Clean() bool {
	for _, t := range r.Tables {
		if t.Remaining != 0 {
			return false
		}
	}
	return true
}

// CleanupTestData deletes every row referencing patientIDs, walking
// DefaultCleanupOrder so dependent rows go before the patient rows. After
// each table the remaining rows are counted. An empty id list does nothing.
// The deletes are not wrapped in a transaction.
func (m *Manager) CleanupTestData(ctx context.Context, alias string, patientIDs []string) (*CleanupReport, error) {
	report := &CleanupReport{PatientIDs: patientIDs}
	if len(patientIDs) == 0 {
		m.logger.Info().Msg("no patient IDs provided for cleanup")
		return report, nil
	}

	if _, err := m.conn(alias); err != nil {
		return nil, m.fail(err)
	}

	args := make([]any, len(patientIDs))
	for i, id := range patientIDs {
		args[i] = id
	}
	in := Placeholders(len(patientIDs))

	for _, table := range DefaultCleanupOrder {
		deleted, err := m.exec(ctx, alias, fmt.Sprintf("DELETE FROM %s WHERE patient_id IN (%s)", table, in), args...)
		if err != nil {
			return report, m.fail(fmt.Errorf("%w: test data cleanup failed on %s: %w", ErrTestData, table, err))
		}
		remaining, err := m.count(ctx, alias, fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE patient_id IN (%s)", table, in), args...)
		if err != nil {
			return report, m.fail(fmt.Errorf("%w: test data cleanup failed on %s: %w", ErrTestData, table, err))
		}

		report.Tables = append(report.Tables, TableCleanup{Table: table, Deleted: deleted, Remaining: remaining})
		if remaining == 0 {
			m.logger.Debug().Str("table", table).Msg("all test data cleaned")
		} else {
			m.logger.Warn().Str("table", table).Int64("remaining", remaining).Msg("test data remains after cleanup")
		}
	}

	m.logger.Info().Int("patients", len(patientIDs)).Msg("test data cleanup completed")
	return report, nil
}

// TestPatientIDs returns patient ids that start with one of prefixes
// (TestIDPrefixes when none are given).
func (m *Manager) TestPatientIDs(ctx context.Context, alias string, prefixes ...string) ([]string, error) {
	if len(prefixes) == 0 {
		prefixes = TestIDPrefixes
	}

	conds := make([]string, len(prefixes))
	args := make([]any, len(prefixes))
	for i, p := range prefixes {
		conds[i] = "patient_id LIKE ? ESCAPE '!'"
		args[i] = likeEscaper.Replace(p) + "%"
	}

	records, err := m.query(ctx, alias,
		"SELECT patient_id FROM patients WHERE "+strings.Join(conds, " OR ")+" ORDER BY patient_id", args...)
	if err != nil {
		return nil, m.fail(fmt.Errorf("%w: list test patients: %w", ErrTestData, err))
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, fmt.Sprint(r["patient_id"]))
	}
	return ids, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
