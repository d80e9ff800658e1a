package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hcqa/hcqa/internal/platform/security"
	"github.com/hcqa/hcqa/internal/testdata"
	"github.com/hcqa/hcqa/pkg/pagination"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) health(c echo.Context) error {
	_, total := s.store.Patients(0, 0)
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"patients": total,
	})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid login request")
	}
	if req.Username != s.cfg.Username || !s.helper.VerifyPassword(req.Password, s.hash) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := s.helper.IssueToken(map[string]any{"sub": req.Username, "role": "admin"}, s.cfg.JWTSecret)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(security.DefaultTokenTTL / time.Second),
	})
}

func (s *Server) listPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	patients, total := s.store.Patients(p.Offset, p.Limit)
	return c.JSON(http.StatusOK, pagination.NewResponse(redactAll(patients), total, p.Limit, p.Offset))
}

func (s *Server) getPatient(c echo.Context) error {
	patient, err := s.store.Patient(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, redact(patient))
}

func (s *Server) createPatient(c echo.Context) error {
	var p testdata.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient body")
	}
	if err := s.validatePatient(p); err != nil {
		return err
	}
	if p.CreatedDate == "" {
		p.CreatedDate = s.now().UTC().Format("2006-01-02T15:04:05")
	}

	created, err := s.store.CreatePatient(p)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, redact(created))
}

func (s *Server) validatePatient(p testdata.Patient) error {
	var missing []string
	for field, v := range map[string]string{
		"first_name":    p.FirstName,
		"last_name":     p.LastName,
		"date_of_birth": p.DateOfBirth,
		"gender":        p.Gender,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return echo.NewHTTPError(http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
	}
	if _, err := time.Parse("2006-01-02", p.DateOfBirth); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
	}
	if p.Email != "" && !s.helper.ValidateEmail(p.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if p.PhoneNumber != "" && !s.helper.ValidatePhone(p.PhoneNumber) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid phone_number")
	}
	return nil
}

func (s *Server) deletePatient(c echo.Context) error {
	if err := s.store.DeletePatient(c.Param("id")); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listAppointments(c echo.Context) error {
	p := pagination.FromContext(c)
	appts, total := s.store.Appointments(c.QueryParam("patient_id"), p.Offset, p.Limit)
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, p.Limit, p.Offset))
}

func (s *Server) createAppointment(c echo.Context) error {
	var a testdata.Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment body")
	}
	if a.PatientID == "" || a.AppointmentDate == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and appointment_date are required")
	}
	if _, err := time.Parse("2006-01-02T15:04:05", a.AppointmentDate); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_date must be YYYY-MM-DDTHH:MM:SS")
	}
	a.Notes = s.helper.SanitizeInput(a.Notes)
	if a.CreatedDate == "" {
		a.CreatedDate = s.now().UTC().Format("2006-01-02T15:04:05")
	}

	created, err := s.store.CreateAppointment(a)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown patient_id")
	}
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) fhirPatient(c echo.Context) error {
	p, err := s.store.Patient(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return fhirJSON(c, fhirPatient(p))
}

func (s *Server) searchFHIRPatients(c echo.Context) error {
	p := pagination.FromContext(c)
	patients, total := s.store.Patients(p.Offset, p.Limit)
	return fhirJSON(c, patientBundle(patients, total, p))
}

func fhirJSON(c echo.Context, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/fhir+json", body)
}

func (s *Server) now() time.Time {
	if s.cfg.Now != nil {
		return s.cfg.Now()
	}
	return time.Now()
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

// redact masks the SSN on patients leaving the API.
func redact(p testdata.Patient) testdata.Patient {
	if p.SSN != "" {
		p.SSN = security.MaskValue(p.SSN)
	}
	return p
}

func redactAll(ps []testdata.Patient) []testdata.Patient {
	for i := range ps {
		ps[i] = redact(ps[i])
	}
	return ps
}
