package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditWindow is how far back VerifyAuditTrail looks.
const AuditWindow = 5 * time.Minute

// AuditEvent is one row of the audit_trail table.
type AuditEvent struct {
	PatientID    string
	Action       string
	UserID       string
	ResourceType string
	Details      string
}

// RecordAudit inserts ev into audit_trail stamped with the current time.
func (m *Manager) RecordAudit(ctx context.Context, alias string, ev AuditEvent) error {
	c, err := m.conn(alias)
	if err != nil {
		return m.fail(err)
	}
	_, err = m.exec(ctx, alias,
		"INSERT INTO audit_trail (id, patient_id, action, user_id, resource_type, details, created_date) VALUES (?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), ev.PatientID, ev.Action, ev.UserID, ev.ResourceType, ev.Details, timeArg(c.Engine, m.now()))
	if err != nil {
		return m.fail(fmt.Errorf("%w: record audit event: %w", ErrSecurity, err))
	}
	return nil
}

// VerifyAuditTrail checks that audit_trail holds an entry for patientID,
// action and userID created within the last AuditWindow. A missing entry is
// a security failure.
func (m *Manager) VerifyAuditTrail(ctx context.Context, alias, patientID, action, userID string) (bool, error) {
	c, err := m.conn(alias)
	if err != nil {
		return false, m.fail(err)
	}

	since := timeArg(c.Engine, m.now().Add(-AuditWindow))
	n, err := m.count(ctx, alias,
		`SELECT COUNT(*) AS count FROM audit_trail
		 WHERE patient_id = ? AND action = ? AND user_id = ? AND created_date >= ?`,
		patientID, action, userID, since)
	if err != nil {
		return false, m.fail(fmt.Errorf("%w: audit trail verification failed: %w", ErrSecurity, err))
	}

	if n == 0 {
		return false, m.fail(fmt.Errorf("%w: audit trail missing for %s on patient %s", ErrSecurity, action, patientID))
	}

	m.logger.Info().Str("patient_id", patientID).Str("action", action).Msg("audit trail verified")
	return true, nil
}
