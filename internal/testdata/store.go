package testdata

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hcqa/hcqa/internal/platform/db"
)

// ErrNotFound is returned by Load when no file exists for a name.
var ErrNotFound = errors.New("test data file not found")

// Format is a fixture file format and extension.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
	YML  Format = "yml"
)

// loadOrder is the extension search order used by Load.
var loadOrder = []Format{JSON, CSV, YAML, YML}

// Store reads and writes fixture files in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store for dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes records to <dir>/<name>.<format> and returns the path.
func (s *Store) Save(records []db.Record, name string, format Format) (string, error) {
	path := filepath.Join(s.dir, name+"."+string(format))

	var (
		data []byte
		err  error
	)
	switch format {
	case JSON:
		data, err = json.MarshalIndent(records, "", "  ")
	case YAML, YML:
		data, err = yaml.Marshal(records)
	case CSV:
		return path, writeCSV(path, records)
	default:
		return "", fmt.Errorf("unsupported test data format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Load reads <dir>/<name> trying the json, csv, yaml and yml extensions in
// that order. CSV values load as strings.
func (s *Store) Load(name string) ([]db.Record, error) {
	for _, format := range loadOrder {
		path := filepath.Join(s.dir, name+"."+string(format))
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return loadFile(path, format)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func loadFile(path string, format Format) ([]db.Record, error) {
	if format == CSV {
		return readCSV(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []db.Record
	switch format {
	case JSON:
		err = json.Unmarshal(data, &records)
	default:
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

func writeCSV(path string, records []db.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var header []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range records {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = csvValue(r[col])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any, []string:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return fmt.Sprint(v)
}

func readCSV(path string) ([]db.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]db.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(db.Record, len(header))
		for i, col := range header {
			rec[col] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// PatientRecords converts patients for Save or db.Manager.Upsert.
func PatientRecords(patients []Patient) []db.Record {
	out := make([]db.Record, len(patients))
	for i, p := range patients {
		out[i] = p.ToRecord()
	}
	return out
}

// AppointmentRecords converts appointments for Save or db.Manager.Upsert.
func AppointmentRecords(appointments []Appointment) []db.Record {
	out := make([]db.Record, len(appointments))
	for i, a := range appointments {
		out[i] = a.ToRecord()
	}
	return out
}
