package runner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const runKeyPrefix = "run:"

// SuiteStatus is the outcome of one suite.
type SuiteStatus string

const (
	StatusPassed  SuiteStatus = "passed"
	StatusFailed  SuiteStatus = "failed"
	StatusSkipped SuiteStatus = "skipped"
)

type SuiteResult struct {
	Name     string        `json:"name"`
	Status   SuiteStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Command  string        `json:"command,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// RunRecord is one hcqa run as stored in the history.
type RunRecord struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	Environment string        `json:"environment"`
	Browser     string        `json:"browser"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Suites      []SuiteResult `json:"suites"`
	Passed      bool          `json:"passed"`
}

// History stores run records in LevelDB keyed by start time, so iteration
// order is chronological.
type History struct {
	db *leveldb.DB
}

// OpenHistory opens or creates the store at path.
func OpenHistory(path string) (*History, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open run history %s: %w", path, err)
	}
	return &History{db: db}, nil
}

// NewMemHistory returns a History that lives only in memory.
func NewMemHistory() (*History, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &History{db: db}, nil
}

func runKey(rec RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runKeyPrefix, rec.StartedAt.UTC().UnixNano(), rec.ID))
}

func (h *History) Record(rec RunRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	if err := h.db.Put(runKey(rec), b, nil); err != nil {
		return fmt.Errorf("store run %s: %w", rec.ID, err)
	}
	return nil
}

// Latest returns up to n records, newest first. n <= 0 returns all.
func (h *History) Latest(n int) ([]RunRecord, error) {
	iter := h.db.NewIterator(util.BytesPrefix([]byte(runKeyPrefix)), nil)
	defer iter.Release()

	var out []RunRecord
	for ok := iter.Last(); ok; ok = iter.Prev() {
		var rec RunRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode run %s: %w", iter.Key(), err)
		}
		out = append(out, rec)
		if n > 0 && len(out) == n {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}
	return out, nil
}

func (h *History) Close() error {
	return h.db.Close()
}
