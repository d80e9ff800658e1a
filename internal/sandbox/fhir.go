package sandbox

import (
	"github.com/hcqa/hcqa/internal/testdata"
	"github.com/hcqa/hcqa/pkg/pagination"
)

type humanName struct {
	Use    string   `json:"use"`
	Family string   `json:"family"`
	Given  []string `json:"given"`
}

type contactPoint struct {
	System string `json:"system"`
	Value  string `json:"value"`
	Use    string `json:"use,omitempty"`
}

type address struct {
	Use        string   `json:"use"`
	Line       []string `json:"line"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	PostalCode string   `json:"postalCode"`
	Country    string   `json:"country"`
}

type identifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// FHIRPatient is the subset of the FHIR R4 Patient resource the sandbox
// serves.
type FHIRPatient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id"`
	Active       bool           `json:"active"`
	Identifier   []identifier   `json:"identifier"`
	Name         []humanName    `json:"name"`
	Gender       string         `json:"gender"`
	BirthDate    string         `json:"birthDate"`
	Telecom      []contactPoint `json:"telecom,omitempty"`
	Address      []address      `json:"address,omitempty"`
}

func fhirPatient(p testdata.Patient) FHIRPatient {
	given := []string{p.FirstName}
	if p.MiddleName != "" {
		given = append(given, p.MiddleName)
	}

	r := FHIRPatient{
		ResourceType: "Patient",
		ID:           p.PatientID,
		Active:       p.Status == "" || p.Status == "ACTIVE",
		Identifier:   []identifier{{System: "urn:hcqa:patient-id", Value: p.PatientID}},
		Name:         []humanName{{Use: "official", Family: p.LastName, Given: given}},
		Gender:       fhirGender(p.Gender),
		BirthDate:    p.DateOfBirth,
	}
	if p.PhoneNumber != "" {
		r.Telecom = append(r.Telecom, contactPoint{System: "phone", Value: p.PhoneNumber, Use: "home"})
	}
	if p.Email != "" {
		r.Telecom = append(r.Telecom, contactPoint{System: "email", Value: p.Email})
	}
	if p.AddressLine1 != "" {
		lines := []string{p.AddressLine1}
		if p.AddressLine2 != "" {
			lines = append(lines, p.AddressLine2)
		}
		r.Address = []address{{Use: "home", Line: lines, City: p.City, State: p.State, PostalCode: p.ZipCode, Country: "US"}}
	}
	return r
}

func fhirGender(g string) string {
	switch g {
	case "M", "m", "male":
		return "male"
	case "F", "f", "female":
		return "female"
	case "O", "other":
		return "other"
	default:
		return "unknown"
	}
}

type bundleEntry struct {
	FullURL  string      `json:"fullUrl"`
	Resource FHIRPatient `json:"resource"`
}

// Bundle is a FHIR searchset Bundle of patients.
type Bundle struct {
	ResourceType string                `json:"resourceType"`
	Type         string                `json:"type"`
	Total        int                   `json:"total"`
	Link         []pagination.FHIRLink `json:"link"`
	Entry        []bundleEntry         `json:"entry"`
}

func patientBundle(patients []testdata.Patient, total int, p pagination.Params) Bundle {
	b := Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        total,
		Link:         p.FHIRLinks("/fhir/Patient", total),
		Entry:        make([]bundleEntry, 0, len(patients)),
	}
	for _, pt := range patients {
		b.Entry = append(b.Entry, bundleEntry{FullURL: "Patient/" + pt.PatientID, Resource: fhirPatient(pt)})
	}
	return b
}
