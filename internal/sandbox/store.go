package sandbox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hcqa/hcqa/internal/testdata"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Store holds the sandbox's patients and appointments in memory. Listing
// order is insertion order.
type Store struct {
	mu           sync.RWMutex
	patients     map[string]testdata.Patient
	order        []string
	appointments []testdata.Appointment
	seq          int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{patients: make(map[string]testdata.Patient)}
}

// Seed adds n factory patients with two appointments each.
func (s *Store) Seed(f *testdata.Factory, n int) error {
	for _, p := range f.Patients(n) {
		if _, err := s.CreatePatient(p); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if _, err := s.CreateAppointment(f.Appointment(p.PatientID)); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreatePatient stores p, assigning a PAT_ id when it has none.
func (s *Store) CreatePatient(p testdata.Patient) (testdata.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.PatientID == "" {
		for {
			s.seq++
			p.PatientID = fmt.Sprintf("PAT_%08d", s.seq)
			if _, taken := s.patients[p.PatientID]; !taken {
				break
			}
		}
	}
	if _, ok := s.patients[p.PatientID]; ok {
		return testdata.Patient{}, fmt.Errorf("patient %s: %w", p.PatientID, ErrConflict)
	}
	if p.Status == "" {
		p.Status = "ACTIVE"
	}
	s.patients[p.PatientID] = p
	s.order = append(s.order, p.PatientID)
	return p, nil
}

// Patient returns the patient with the given id or ErrNotFound.
func (s *Store) Patient(id string) (testdata.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return testdata.Patient{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// Patients returns one page of patients and the total count.
func (s *Store) Patients(offset, limit int) ([]testdata.Patient, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := page(s.order, offset, limit)
	out := make([]testdata.Patient, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.patients[id])
	}
	return out, len(s.order)
}

// DeletePatient removes the patient and its appointments.
func (s *Store) DeletePatient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[id]; !ok {
		return fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	delete(s.patients, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.appointments[:0]
	for _, a := range s.appointments {
		if a.PatientID != id {
			kept = append(kept, a)
		}
	}
	s.appointments = kept
	return nil
}

// CreateAppointment stores a for an existing patient.
func (s *Store) CreateAppointment(a testdata.Appointment) (testdata.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.patients[a.PatientID]; !ok {
		return testdata.Appointment{}, fmt.Errorf("patient %s: %w", a.PatientID, ErrNotFound)
	}
	if a.AppointmentID == "" {
		s.seq++
		a.AppointmentID = fmt.Sprintf("APT_%08d", s.seq)
	}
	for _, existing := range s.appointments {
		if existing.AppointmentID == a.AppointmentID {
			return testdata.Appointment{}, fmt.Errorf("appointment %s: %w", a.AppointmentID, ErrConflict)
		}
	}
	if a.Status == "" {
		a.Status = "SCHEDULED"
	}
	s.appointments = append(s.appointments, a)
	return a, nil
}

// Appointments returns one page of appointments, filtered to patientID when
// it is not empty, and the filtered total.
func (s *Store) Appointments(patientID string, offset, limit int) ([]testdata.Appointment, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []testdata.Appointment
	for _, a := range s.appointments {
		if patientID == "" || a.PatientID == patientID {
			matched = append(matched, a)
		}
	}
	return append([]testdata.Appointment(nil), page(matched, offset, limit)...), len(matched)
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
