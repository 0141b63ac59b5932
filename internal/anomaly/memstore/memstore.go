// Package memstore provides an in-memory implementation of anomaly.Store,
// seeded from the reference data set shipped with the binary.
package memstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/linnemanlabs/costguard/internal/anomaly"
)

//go:embed anomalies.json
var seed []byte

// Store holds anomaly records in memory. The record set is fixed after
// construction; the mutex only guards against concurrent readers racing a
// late New-from-records caller in tests.
type Store struct {
	mu      sync.RWMutex
	records map[string]*anomaly.Record // anomaly ID -> record
}

// New initializes a Store from the embedded seed data. The seed ships with
// the binary, so a parse failure is a build defect, not a runtime condition.
func New() (*Store, error) {
	var recs []*anomaly.Record
	if err := json.Unmarshal(seed, &recs); err != nil {
		return nil, fmt.Errorf("parse embedded anomaly data: %w", err)
	}
	return NewFromRecords(recs), nil
}

// NewFromRecords initializes a Store from an explicit record set.
func NewFromRecords(recs []*anomaly.Record) *Store {
	m := make(map[string]*anomaly.Record, len(recs))
	for _, r := range recs {
		cp := *r
		m[r.AnomalyID] = &cp
	}
	return &Store{records: m}
}

// Get retrieves a record by anomaly ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*anomaly.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// List returns all records ordered by anomaly ID. Returns copies.
func (s *Store) List(_ context.Context) ([]*anomaly.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*anomaly.Record, 0, len(s.records))
	for _, r := range s.records {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnomalyID < out[j].AnomalyID })
	return out, nil
}
