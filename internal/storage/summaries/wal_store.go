// Package summaries persists computed tax summaries in a write-ahead log.
package summaries

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/taxlots/internal/domain"
)

const (
	DefaultDir   = "./wal/summaries"
	segmentLimit = 100
	maxSegments  = 100

	summaryKeyPrefix = "tax_summary_"
)

// ErrNotFound is returned when no record carries the requested id.
var ErrNotFound = errors.New("summary not found")

// Record is one stored calculation.
type Record struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Portfolio string            `json:"portfolio,omitempty"`
	Summary   domain.TaxSummary `json:"summary"`
}

// WALStore persists summary records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// NewWALStore initializes a WAL-backed summary store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "summary_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init summary WAL")
	}

	return &WALStore{wal: wal, now: time.Now}, nil
}

// Save writes the summary and returns the id of the new record.
func (s *WALStore) Save(portfolio string, summary domain.TaxSummary) (Record, error) {
	if s == nil || s.wal == nil {
		return Record{}, errors.New("summary store is not initialized")
	}

	record := Record{
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC(),
		Portfolio: portfolio,
		Summary:   summary,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal summary record")
	}

	key := fmt.Sprintf("%s%s", summaryKeyPrefix, record.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return Record{}, errors.Wrap(err, "write summary record")
	}
	return record, nil
}

// Get returns the record with the given id.
func (s *WALStore) Get(id string) (Record, error) {
	records, err := s.List()
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, errors.Wrapf(ErrNotFound, "id %s", id)
}

// List returns all stored records in write order.
func (s *WALStore) List() ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("summary store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	records := make([]Record, 0, current)
	for idx := uint64(1); idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			// rotated out
			continue
		}
		if !strings.HasPrefix(key, summaryKeyPrefix) {
			continue
		}

		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrapf(err, "decode summary record %d", idx)
		}
		records = append(records, record)
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("summary store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
