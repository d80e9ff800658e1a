// Package testdata generates realistic healthcare records for tests and
// persists them as json, csv or yaml fixtures.
package testdata

import (
	"encoding/json"
	"strings"

	"github.com/hcqa/hcqa/internal/platform/db"
)

// Patient demographics, contact and insurance details.
type Patient struct {
	PatientID             string `json:"patient_id" yaml:"patient_id"`
	FirstName             string `json:"first_name" yaml:"first_name"`
	MiddleName            string `json:"middle_name" yaml:"middle_name"`
	LastName              string `json:"last_name" yaml:"last_name"`
	DateOfBirth           string `json:"date_of_birth" yaml:"date_of_birth"`
	Gender                string `json:"gender" yaml:"gender"`
	SSN                   string `json:"social_security_number" yaml:"social_security_number"`
	PhoneNumber           string `json:"phone_number" yaml:"phone_number"`
	Email                 string `json:"email" yaml:"email"`
	AddressLine1          string `json:"address_line1" yaml:"address_line1"`
	AddressLine2          string `json:"address_line2" yaml:"address_line2"`
	City                  string `json:"city" yaml:"city"`
	State                 string `json:"state" yaml:"state"`
	ZipCode               string `json:"zip_code" yaml:"zip_code"`
	EmergencyContactName  string `json:"emergency_contact_name" yaml:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone" yaml:"emergency_contact_phone"`
	InsuranceProvider     string `json:"insurance_provider" yaml:"insurance_provider"`
	InsurancePolicyNumber string `json:"insurance_policy_number" yaml:"insurance_policy_number"`
	Status                string `json:"status" yaml:"status"`
	CreatedDate           string `json:"created_date" yaml:"created_date"`
}

// ToRecord maps the patient onto patients table columns. created_date is
// left to the database.
func (p Patient) ToRecord() db.Record {
	return db.Record{
		"patient_id":              p.PatientID,
		"first_name":              p.FirstName,
		"middle_name":             p.MiddleName,
		"last_name":               p.LastName,
		"date_of_birth":           p.DateOfBirth,
		"gender":                  p.Gender,
		"social_security_number":  p.SSN,
		"phone_number":            p.PhoneNumber,
		"email":                   p.Email,
		"address_line1":           p.AddressLine1,
		"address_line2":           p.AddressLine2,
		"city":                    p.City,
		"state":                   p.State,
		"zip_code":                p.ZipCode,
		"emergency_contact_name":  p.EmergencyContactName,
		"emergency_contact_phone": p.EmergencyContactPhone,
		"insurance_provider":      p.InsuranceProvider,
		"insurance_policy_number": p.InsurancePolicyNumber,
		"status":                  p.Status,
	}
}

// Appointment types, durations and statuses the factory draws from.
var (
	AppointmentTypes  = []string{"CONSULTATION", "FOLLOW_UP", "ROUTINE_CHECKUP", "PROCEDURE", "EMERGENCY", "TELEMEDICINE"}
	Durations         = []int{15, 30, 45, 60, 90}
	AppointmentStates = []string{"SCHEDULED", "CONFIRMED", "IN_PROGRESS", "COMPLETED"}
)

type Appointment struct {
	AppointmentID   string `json:"appointment_id" yaml:"appointment_id"`
	PatientID       string `json:"patient_id" yaml:"patient_id"`
	ProviderID      string `json:"provider_id" yaml:"provider_id"`
	AppointmentType string `json:"appointment_type" yaml:"appointment_type"`
	// AppointmentDate is an ISO-8601 date-time without zone, e.g.
	// 2025-07-01T09:30:00.
	AppointmentDate string `json:"appointment_date" yaml:"appointment_date"`
	DurationMinutes int    `json:"duration_minutes" yaml:"duration_minutes"`
	Status          string `json:"status" yaml:"status"`
	Notes           string `json:"notes" yaml:"notes"`
	CreatedDate     string `json:"created_date" yaml:"created_date"`
}

// ToRecord maps the appointment onto appointments table columns, splitting
// the slot into date and HH:MM.
func (a Appointment) ToRecord() db.Record {
	date, clock, _ := strings.Cut(a.AppointmentDate, "T")
	if len(clock) > 5 {
		clock = clock[:5]
	}
	return db.Record{
		"appointment_id":   a.AppointmentID,
		"patient_id":       a.PatientID,
		"provider_id":      a.ProviderID,
		"appointment_type": a.AppointmentType,
		"appointment_date": date,
		"appointment_time": clock,
		"duration_minutes": a.DurationMinutes,
		"status":           a.Status,
		"notes":            a.Notes,
	}
}

// Diagnoses and Medications the factory draws medical records from.
var (
	Diagnoses   = []string{"Hypertension", "Diabetes Type 2", "Asthma", "COPD", "Arthritis", "Depression", "Anxiety", "Migraine"}
	Medications = []string{"Lisinopril", "Metformin", "Albuterol", "Atorvastatin", "Omeprazole", "Ibuprofen", "Acetaminophen", "Aspirin"}
)

type VitalSigns struct {
	BloodPressureSystolic  int     `json:"blood_pressure_systolic" yaml:"blood_pressure_systolic"`
	BloodPressureDiastolic int     `json:"blood_pressure_diastolic" yaml:"blood_pressure_diastolic"`
	HeartRate              int     `json:"heart_rate" yaml:"heart_rate"`
	Temperature            float64 `json:"temperature" yaml:"temperature"`
	WeightLbs              int     `json:"weight_lbs" yaml:"weight_lbs"`
	HeightInches           int     `json:"height_inches" yaml:"height_inches"`
}

type MedicalRecord struct {
	RecordID       string     `json:"record_id" yaml:"record_id"`
	PatientID      string     `json:"patient_id" yaml:"patient_id"`
	VisitDate      string     `json:"visit_date" yaml:"visit_date"`
	ChiefComplaint string     `json:"chief_complaint" yaml:"chief_complaint"`
	Diagnosis      string     `json:"diagnosis" yaml:"diagnosis"`
	Treatment      string     `json:"treatment" yaml:"treatment"`
	Medications    []string   `json:"medications" yaml:"medications"`
	VitalSigns     VitalSigns `json:"vital_signs" yaml:"vital_signs"`
	ProviderNotes  string     `json:"provider_notes" yaml:"provider_notes"`
	CreatedDate    string     `json:"created_date" yaml:"created_date"`
}

// ToRecord maps the record onto medical_records columns. Medications and
// vital signs are stored as JSON text.
func (r MedicalRecord) ToRecord() db.Record {
	meds, _ := json.Marshal(r.Medications)
	vitals, _ := json.Marshal(r.VitalSigns)
	return db.Record{
		"record_id":       r.RecordID,
		"patient_id":      r.PatientID,
		"visit_date":      r.VisitDate,
		"chief_complaint": r.ChiefComplaint,
		"diagnosis":       r.Diagnosis,
		"treatment":       r.Treatment,
		"medications":     string(meds),
		"vital_signs":     string(vitals),
		"provider_notes":  r.ProviderNotes,
	}
}
