package sandbox

import (
	"context"
	"fmt"

	"github.com/hcqa/hcqa/internal/platform/db"
	"github.com/hcqa/hcqa/internal/platform/middleware"
)

// DBAuditRecorder writes patient-scoped audit entries to audit_trail through
// mgr, so tests can check API access with db.Manager.VerifyAuditTrail.
// Entries without a patient or user are skipped.
func DBAuditRecorder(mgr *db.Manager, alias string) middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(ctx context.Context, e middleware.AuditEntry) error {
		if e.PatientID == "" || e.UserID == "" {
			return nil
		}
		return mgr.RecordAudit(ctx, alias, db.AuditEvent{
			PatientID:    e.PatientID,
			Action:       e.Action,
			UserID:       e.UserID,
			ResourceType: e.ResourceType,
			Details:      fmt.Sprintf("%s %s %d request_id=%s", e.Method, e.Path, e.StatusCode, e.RequestID),
		})
	})
}
