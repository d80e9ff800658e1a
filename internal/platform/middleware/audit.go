package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry records one access to patient data.
type AuditEntry struct {
	RequestID    string
	UserID       string
	PatientID    string
	ResourceType string
	Action       string // read, create, update, delete
	Method       string
	Path         string
	RemoteIP     string
	StatusCode   int
	Timestamp    time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs every request under /api/v1/ and /fhir/ as a phi_access event
// and hands it to recorder when one is given. Recorder errors are logged and
// never change the response.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			rid, _ := c.Get("request_id").(string)
			entry := AuditEntry{
				RequestID:    rid,
				UserID:       UserIDFromContext(req.Context()),
				PatientID:    extractPatientID(c),
				ResourceType: extractResourceType(req.URL.Path),
				Action:       httpMethodToAction(req.Method),
				Method:       req.Method,
				Path:         req.URL.Path,
				RemoteIP:     c.RealIP(),
				StatusCode:   status,
				Timestamp:    time.Now().UTC(),
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(req.Context(), entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", rid).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "hipaa_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/fhir/") || strings.HasPrefix(path, "/api/v1/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the first path segment after the API prefix:
//
//	/fhir/Patient/PAT_1      -> Patient
//	/api/v1/appointments     -> appointments
func extractResourceType(path string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/fhir/"), "/api/v1/")
	seg, _, _ := strings.Cut(rest, "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// extractPatientID looks for a patient ID in /api/v1/patients/<id>,
// /fhir/Patient/<id> or a patient_id query parameter.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path
	for _, prefix := range []string{"/api/v1/patients/", "/fhir/Patient/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			if id, _, _ := strings.Cut(rest, "/"); id != "" {
				return id
			}
		}
	}
	return c.QueryParam("patient_id")
}
