package testdata

import (
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// DefaultSeed makes generated data reproducible between runs.
const DefaultSeed uint64 = 42

type FactoryOptions struct {
	// Seed for the generator. Zero means DefaultSeed.
	Seed uint64
	// Now anchors generated dates. Defaults to time.Now.
	Now func() time.Time
}

// Factory builds patients, appointments and medical records. A Factory is
// not safe for concurrent use.
type Factory struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

func NewFactory(opts FactoryOptions) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Factory{faker: gofakeit.New(seed), now: now}
}

func (f *Factory) digits(prefix string, n int) string {
	lo := int(math.Pow10(n - 1))
	hi := int(math.Pow10(n)) - 1
	return fmt.Sprintf("%s%d", prefix, f.faker.Number(lo, hi))
}

// dateRange keeps generated times in the location of start.
func (f *Factory) dateRange(start, end time.Time) time.Time {
	return f.faker.DateRange(start, end).In(start.Location())
}

func (f *Factory) ssn() string {
	return fmt.Sprintf("%03d-%02d-%04d", f.faker.Number(100, 899), f.faker.Number(10, 99), f.faker.Number(1000, 9999))
}

// Patient returns an adult patient (18 to 90 years old) with an id of the
// form PAT_########. Overrides are applied in order.
func (f *Factory) Patient(overrides ...func(*Patient)) Patient {
	now := f.now()
	p := Patient{
		PatientID:             f.digits("PAT_", 8),
		Gender:                f.faker.RandomString([]string{"M", "F", "O"}),
		FirstName:             f.faker.FirstName(),
		MiddleName:            f.faker.FirstName(),
		LastName:              f.faker.LastName(),
		DateOfBirth:           f.dateRange(now.AddDate(-90, 0, 0), now.AddDate(-18, 0, 0)).Format("2006-01-02"),
		SSN:                   f.ssn(),
		PhoneNumber:           f.faker.Phone(),
		Email:                 f.faker.Email(),
		AddressLine1:          f.faker.Street(),
		AddressLine2:          fmt.Sprintf("Apt. %d", f.faker.Number(1, 999)),
		City:                  f.faker.City(),
		State:                 f.faker.StateAbr(),
		ZipCode:               f.faker.Zip(),
		EmergencyContactName:  f.faker.Name(),
		EmergencyContactPhone: f.faker.Phone(),
		InsuranceProvider:     f.faker.Company(),
		InsurancePolicyNumber: f.digits("INS", 10),
		Status:                "ACTIVE",
		CreatedDate:           now.Format("2006-01-02T15:04:05"),
	}
	for _, o := range overrides {
		o(&p)
	}
	return p
}

// Patients returns n patients.
func (f *Factory) Patients(n int) []Patient {
	out := make([]Patient, n)
	for i := range out {
		out[i] = f.Patient()
	}
	return out
}

// Appointment returns an appointment in the next 30 days. An empty patientID
// gets a generated PAT_ id.
func (f *Factory) Appointment(patientID string, overrides ...func(*Appointment)) Appointment {
	now := f.now()
	if patientID == "" {
		patientID = f.digits("PAT_", 8)
	}
	a := Appointment{
		AppointmentID:   f.digits("APT_", 8),
		PatientID:       patientID,
		ProviderID:      f.digits("PRV_", 6),
		AppointmentType: f.faker.RandomString(AppointmentTypes),
		AppointmentDate: f.dateRange(now, now.AddDate(0, 0, 30)).Format("2006-01-02T15:04:05"),
		DurationMinutes: f.faker.RandomInt(Durations),
		Status:          f.faker.RandomString(AppointmentStates),
		Notes:           f.faker.Sentence(12),
		CreatedDate:     now.Format("2006-01-02T15:04:05"),
	}
	for _, o := range overrides {
		o(&a)
	}
	return a
}

// MedicalRecord returns a visit from the last two years with one to three
// medications.
func (f *Factory) MedicalRecord(patientID string, overrides ...func(*MedicalRecord)) MedicalRecord {
	now := f.now()
	if patientID == "" {
		patientID = f.digits("PAT_", 8)
	}

	count := f.faker.Number(1, 3)
	idx := make([]int, len(Medications))
	for i := range idx {
		idx[i] = i
	}
	f.faker.ShuffleInts(idx)
	meds := make([]string, count)
	for i := range meds {
		meds[i] = Medications[idx[i]]
	}

	r := MedicalRecord{
		RecordID:       f.digits("MR_", 10),
		PatientID:      patientID,
		VisitDate:      f.dateRange(now.AddDate(-2, 0, 0), now).Format("2006-01-02"),
		ChiefComplaint: f.faker.Sentence(8),
		Diagnosis:      f.faker.RandomString(Diagnoses),
		Treatment:      f.faker.Sentence(12),
		Medications:    meds,
		VitalSigns: VitalSigns{
			BloodPressureSystolic:  f.faker.Number(90, 180),
			BloodPressureDiastolic: f.faker.Number(60, 110),
			HeartRate:              f.faker.Number(60, 100),
			Temperature:            math.Round(f.faker.Float64Range(97.0, 101.0)*10) / 10,
			WeightLbs:              f.faker.Number(100, 300),
			HeightInches:           f.faker.Number(60, 78),
		},
		ProviderNotes: f.faker.Sentence(20),
		CreatedDate:   now.Format("2006-01-02T15:04:05"),
	}
	for _, o := range overrides {
		o(&r)
	}
	return r
}
