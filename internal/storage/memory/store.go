// Package memory provides an in-memory RecordStore for development and
// testing.
package memory

import (
	"context"
	"sync"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

// Store keeps records in a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	records map[string]crawler.Record
	synced  map[string]bool
}

var _ crawler.RecordStore = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]crawler.Record),
		synced:  make(map[string]bool),
	}
}

// Exists reports whether the id is stored.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

// Insert stores the record; duplicate ids are a no-op.
func (s *Store) Insert(_ context.Context, record crawler.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return nil
	}
	s.records[record.ID] = record
	return nil
}

// MarkSynced flags the given ids.
func (s *Store) MarkSynced(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.synced[id] = true
	}
	return nil
}

// Seed pre-populates an id, marking its content as already known.
func (s *Store) Seed(record crawler.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
}

// Records returns a copy of all stored records.
func (s *Store) Records() []crawler.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Synced reports whether an id has been marked synced.
func (s *Store) Synced(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced[id]
}
