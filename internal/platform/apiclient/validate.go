package apiclient

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce    sync.Once
	fhirSchema    *gojsonschema.Schema
	patientSchema *gojsonschema.Schema
	schemaErr     error
)

func loadSchemas() error {
	schemaOnce.Do(func() {
		fhirSchema, schemaErr = compileSchema("schemas/fhir_resource.json")
		if schemaErr != nil {
			return
		}
		patientSchema, schemaErr = compileSchema("schemas/patient.json")
	})
	return schemaErr
}

func compileSchema(name string) (*gojsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

func validateAgainst(s *gojsonschema.Schema, data map[string]any) []string {
	result, err := s.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return []string{err.Error()}
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}

// DefaultPatientFields are required by ValidatePatientResponse when no
// fields are given.
var DefaultPatientFields = []string{"patient_id", "first_name", "last_name", "date_of_birth", "gender"}

var isoLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339Nano}

// ValidatePatientResponse checks that data has every required field
// non-null, that the identifying fields are strings and that date_of_birth
// is an ISO-8601 date or date-time.
func (c *Client) ValidatePatientResponse(data map[string]any, required ...string) error {
	if len(required) == 0 {
		required = DefaultPatientFields
	}
	if err := loadSchemas(); err != nil {
		return c.fail(err)
	}

	var missing []string
	for _, f := range required {
		if v, ok := data[f]; !ok || v == nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return c.fail(fmt.Errorf("%w: missing required fields in patient response: %v", ErrValidation, missing))
	}

	if problems := validateAgainst(patientSchema, data); len(problems) > 0 {
		sort.Strings(problems)
		return c.fail(fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; ")))
	}

	if dob, ok := data["date_of_birth"].(string); ok && !isISODate(dob) {
		return c.fail(fmt.Errorf("%w: invalid date_of_birth format %q, expected ISO-8601", ErrValidation, dob))
	}

	c.logger.Debug().Msg("patient API response validation passed")
	return nil
}

func isISODate(s string) bool {
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidateFHIRCompliance checks the resource envelope: a known resourceType
// and a non-empty string id.
func (c *Client) ValidateFHIRCompliance(data map[string]any) error {
	if err := loadSchemas(); err != nil {
		return c.fail(err)
	}
	if problems := validateAgainst(fhirSchema, data); len(problems) > 0 {
		return c.fail(fmt.Errorf("%w: FHIR compliance: %s", ErrValidation, strings.Join(problems, "; ")))
	}
	c.logger.Debug().Interface("resource_type", data["resourceType"]).Msg("FHIR compliance validated")
	return nil
}

// securityHeaders maps each required header to its accepted values; nil
// means presence is enough. X-XSS-Protection "0" is accepted alongside the
// legacy "1; mode=block" since current guidance disables the filter.
var securityHeaders = []struct {
	name    string
	allowed []string
}{
	{"X-Content-Type-Options", []string{"nosniff"}},
	{"X-Frame-Options", []string{"DENY", "SAMEORIGIN"}},
	{"X-XSS-Protection", []string{"1; mode=block", "0"}},
	{"Strict-Transport-Security", nil},
	{"Content-Security-Policy", nil},
}

// ValidateSecurityHeaders checks the last response for the security headers
// a healthcare API must send.
func (c *Client) ValidateSecurityHeaders() error {
	if c.last == nil {
		return c.fail(fmt.Errorf("%w: no response available for security header validation", ErrValidation))
	}

	var problems []string
	for _, h := range securityHeaders {
		got := c.last.Header.Get(h.name)
		if got == "" {
			problems = append(problems, "missing: "+h.name)
			continue
		}
		if h.allowed != nil && !contains(h.allowed, got) {
			problems = append(problems, fmt.Sprintf("invalid %s: %s", h.name, got))
		}
	}
	if len(problems) > 0 {
		return c.fail(fmt.Errorf("%w: security headers: %s", ErrValidation, strings.Join(problems, ", ")))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
