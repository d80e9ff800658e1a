package db

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdent rejects anything that is not a plain SQL identifier. Table and
// column names are interpolated into statements, values never are.
func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", ErrSecurity, name)
	}
	return nil
}

// PatientRequiredFields must be non-null for a patient row to pass
// ValidatePatientIntegrity.
var PatientRequiredFields = []string{"first_name", "last_name", "date_of_birth", "social_security_number"}

// PatientRelatedTables are counted by ValidatePatientIntegrity.
var PatientRelatedTables = []string{"appointments", "medical_records", "prescriptions"}

// CreateTestPatient inserts patient into the patients table and returns its
// patient_id. A missing patient_id is generated as
// TEST_<yyyymmddhhmmss>_<8 hex chars> so ids made in the same second differ;
// created_date, updated_date, status and created_by are defaulted. The
// caller's map is not modified.
func (m *Manager) CreateTestPatient(ctx context.Context, alias string, patient Record) (string, error) {
	c, err := m.conn(alias)
	if err != nil {
		return "", m.fail(err)
	}

	now := m.now()
	row := make(Record, len(patient)+4)
	for k, v := range patient {
		row[k] = v
	}
	if id, _ := row["patient_id"].(string); id == "" {
		row["patient_id"] = "TEST_" + now.Format("20060102150405") + "_" + uuid.NewString()[:8]
	}
	defaults := Record{
		"created_date": timeArg(c.Engine, now),
		"updated_date": timeArg(c.Engine, now),
		"status":       "ACTIVE",
		"created_by":   "TEST_AUTOMATION",
	}
	for k, v := range defaults {
		if _, ok := row[k]; !ok {
			row[k] = v
		}
	}

	cols := make([]string, 0, len(row))
	for k := range row {
		if err := checkIdent(k); err != nil {
			return "", m.fail(err)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = row[col]
	}

	query := fmt.Sprintf("INSERT INTO patients (%s) VALUES (%s)", strings.Join(cols, ", "), Placeholders(len(cols)))
	if _, err := m.exec(ctx, alias, query, args...); err != nil {
		return "", m.fail(fmt.Errorf("%w: failed to create test patient: %w", ErrTestData, err))
	}

	id := fmt.Sprint(row["patient_id"])
	m.logger.Info().Str("patient_id", id).Msg("test patient created")
	return id, nil
}

// IntegrityReport is the outcome of ValidatePatientIntegrity.
type IntegrityReport struct {
	PatientID         string           `json:"patient_id"`
	PatientExists     bool             `json:"patient_exists"`
	HasRequiredFields bool             `json:"has_required_fields"`
	FieldDetails      map[string]bool  `json:"field_details,omitempty"`
	RelatedCounts     map[string]int64 `json:"related_counts,omitempty"`
	Passed            bool             `json:"data_integrity_passed"`
}

// ValidatePatientIntegrity checks that the patient exists and has its
// required fields, and counts rows referencing it in the related tables. A
// missing patient is reported, not returned as an error.
func (m *Manager) ValidatePatientIntegrity(ctx context.Context, alias, patientID string) (*IntegrityReport, error) {
	report := &IntegrityReport{PatientID: patientID}

	n, err := m.count(ctx, alias, "SELECT COUNT(*) AS count FROM patients WHERE patient_id = ?", patientID)
	if err != nil {
		return nil, m.fail(fmt.Errorf("data integrity validation failed: %w", err))
	}
	report.PatientExists = n > 0
	if !report.PatientExists {
		m.logger.Warn().Str("patient_id", patientID).Msg("patient not found in database")
		return report, nil
	}

	selects := make([]string, len(PatientRequiredFields))
	for i, f := range PatientRequiredFields {
		selects[i] = fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN 1 ELSE 0 END AS has_%s", f, f)
	}
	records, err := m.query(ctx, alias,
		fmt.Sprintf("SELECT %s FROM patients WHERE patient_id = ?", strings.Join(selects, ", ")), patientID)
	if err != nil {
		return nil, m.fail(fmt.Errorf("data integrity validation failed: %w", err))
	}
	if len(records) > 0 {
		report.FieldDetails = make(map[string]bool, len(PatientRequiredFields))
		report.HasRequiredFields = true
		for _, f := range PatientRequiredFields {
			v, err := toInt64(records[0]["has_"+f])
			if err != nil {
				return nil, m.fail(fmt.Errorf("data integrity validation failed: %w", err))
			}
			report.FieldDetails[f] = v == 1
			if v != 1 {
				report.HasRequiredFields = false
			}
		}
	}

	report.RelatedCounts = make(map[string]int64, len(PatientRelatedTables))
	for _, table := range PatientRelatedTables {
		n, err := m.count(ctx, alias,
			fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE patient_id = ?", table), patientID)
		if err != nil {
			return nil, m.fail(fmt.Errorf("data integrity validation failed: %w", err))
		}
		report.RelatedCounts[table] = n
	}

	report.Passed = report.PatientExists && report.HasRequiredFields
	m.logger.Info().
		Str("patient_id", patientID).
		Bool("passed", report.Passed).
		Msg("patient data integrity validated")
	return report, nil
}
