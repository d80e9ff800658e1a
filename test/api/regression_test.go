//go:build api

package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hcqa/hcqa/internal/platform/middleware"
	"github.com/hcqa/hcqa/internal/sandbox"
	"github.com/hcqa/hcqa/internal/testdata"
)

func TestRegressionPatientList(t *testing.T) {
	c := login(t, "")
	body, _ := c.Get(context.Background(), "/api/v1/patients", url.Values{"limit": {"5"}}, http.StatusOK)

	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("data is %T, want array", body["data"])
	}
	if len(data) > 5 {
		t.Errorf("got %d patients, limit was 5", len(data))
	}
	for _, item := range data {
		p, ok := item.(map[string]any)
		if !ok {
			t.Fatalf("patient is %T", item)
		}
		c.ValidatePatientResponse(p)
	}
}

func TestRegressionPatientLifecycle(t *testing.T) {
	ctx := context.Background()
	c := login(t, "")

	id := testPatientID()
	f := testdata.NewFactory(testdata.FactoryOptions{})
	p := f.Patient(func(p *testdata.Patient) {
		p.PatientID = id
		p.SSN = "321-54-9876"
		p.Email = "lifecycle@example.com"
	})

	created, _ := c.Post(ctx, "/api/v1/patients", p, http.StatusCreated)
	c.ValidatePatientResponse(created)
	c.ValidateSecurityHeaders()
	if ssn, _ := created["social_security_number"].(string); !strings.HasSuffix(ssn, "9876") || strings.Contains(ssn, "321") {
		t.Errorf("SSN should be masked to its last four digits, got %q", ssn)
	}

	got, _ := c.Get(ctx, "/api/v1/patients/"+id, nil, http.StatusOK)
	if got["last_name"] != p.LastName {
		t.Errorf("last_name = %v, want %s", got["last_name"], p.LastName)
	}

	c.Post(ctx, "/api/v1/patients", p, http.StatusConflict)
	c.Delete(ctx, "/api/v1/patients/"+id, http.StatusNoContent)
	c.Get(ctx, "/api/v1/patients/"+id, nil, http.StatusNotFound)
}

func TestRegressionPatientValidation(t *testing.T) {
	c := login(t, "")
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing last name", map[string]any{"first_name": "A", "date_of_birth": "1990-01-01", "gender": "F"}},
		{"non ISO birth date", map[string]any{"first_name": "A", "last_name": "B", "date_of_birth": "12/31/1990", "gender": "F"}},
		{"invalid email", map[string]any{"first_name": "A", "last_name": "B", "date_of_birth": "1990-01-01", "gender": "F", "email": "a@"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.Post(context.Background(), "/api/v1/patients", tt.body, http.StatusBadRequest)
		})
	}
}

func TestRegressionAppointments(t *testing.T) {
	ctx := context.Background()
	c := login(t, "")

	id := testPatientID()
	f := testdata.NewFactory(testdata.FactoryOptions{})
	c.Post(ctx, "/api/v1/patients", f.Patient(func(p *testdata.Patient) {
		p.PatientID = id
		p.Email = "appointments@example.com"
	}), http.StatusCreated)
	defer c.Delete(ctx, "/api/v1/patients/"+id, http.StatusNoContent)

	appt, _ := c.Post(ctx, "/api/v1/appointments", map[string]any{
		"patient_id":       id,
		"appointment_date": "2030-01-15T10:00:00",
		"appointment_type": "CONSULTATION",
		"notes":            "<script>alert(1)</script>fasting required",
	}, http.StatusCreated)
	if notes, _ := appt["notes"].(string); strings.Contains(notes, "<script") {
		t.Errorf("notes were not sanitized: %q", notes)
	}

	list, _ := c.Get(ctx, "/api/v1/appointments", url.Values{"patient_id": {id}}, http.StatusOK)
	if list["total"] != float64(1) {
		t.Errorf("total = %v, want 1", list["total"])
	}

	c.Post(ctx, "/api/v1/appointments", map[string]any{
		"patient_id":       "TEST_API_missing",
		"appointment_date": "2030-01-15T10:00:00",
	}, http.StatusUnprocessableEntity)
}

func TestRegressionFHIRPatient(t *testing.T) {
	ctx := context.Background()
	c := login(t, "")

	list, _ := c.Get(ctx, "/api/v1/patients", url.Values{"limit": {"1"}}, http.StatusOK)
	data, _ := list["data"].([]any)
	if len(data) == 0 {
		t.Skip("no patients available on the target")
	}
	first, _ := data[0].(map[string]any)
	id, _ := first["patient_id"].(string)

	resource, _ := c.Get(ctx, "/fhir/Patient/"+id, nil, http.StatusOK)
	c.ValidateFHIRCompliance(resource)
	if resource["resourceType"] != "Patient" || resource["id"] != id {
		t.Errorf("unexpected resource: %v", resource)
	}
}

func TestRegressionFHIRSearchBundle(t *testing.T) {
	c := login(t, "")
	bundle, _ := c.Get(context.Background(), "/fhir/Patient", url.Values{"_count": {"2"}}, http.StatusOK)

	if bundle["resourceType"] != "Bundle" || bundle["type"] != "searchset" {
		t.Fatalf("unexpected bundle: %v", bundle)
	}
	entries, _ := bundle["entry"].([]any)
	if len(entries) > 2 {
		t.Errorf("got %d entries, _count was 2", len(entries))
	}
	for _, e := range entries {
		entry, _ := e.(map[string]any)
		resource, _ := entry["resource"].(map[string]any)
		c.ValidateFHIRCompliance(resource)
	}
}

func TestRegressionRateLimit(t *testing.T) {
	baseURL := globalTarget.BaseURL
	if globalTarget.Sandbox {
		ts, err := startSandbox(globalTarget.Config, sandbox.Config{
			SeedPatients: 3,
			RateLimit:    middleware.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3},
		})
		if err != nil {
			t.Fatal(err)
		}
		defer ts.Close()
		baseURL = ts.URL
	}

	c := login(t, baseURL)
	res := c.ProbeRateLimit(context.Background(), "/api/v1/patients", 10, 200*time.Millisecond)
	if res.Sent != 10 {
		t.Errorf("sent %d requests, want 10", res.Sent)
	}
	if globalTarget.Sandbox && !res.Detected() {
		t.Errorf("sandbox did not rate limit: %v", res.Statuses)
	}
	if !res.Detected() {
		t.Logf("no rate limiting observed on %s", baseURL)
	}
}
