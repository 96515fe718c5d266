package session

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/authbridge/internal/clock"
)

type memoryRecord struct {
	fields    map[string][]byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. It suits tests and single-node use.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string]*memoryRecord
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clk,
		records: make(map[string]*memoryRecord),
	}
}

// record returns the live record for sid. Callers hold mu.
func (s *MemoryStore) record(sid string) *memoryRecord {
	rec, ok := s.records[sid]
	if !ok {
		return nil
	}
	if !rec.expiresAt.IsZero() && !s.clock.Now().Before(rec.expiresAt) {
		delete(s.records, sid)
		return nil
	}
	return rec
}

func (s *MemoryStore) Get(_ context.Context, sid, field string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(sid)
	if rec == nil {
		return nil, ErrNotFound
	}
	value, ok := rec.fields[field]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(_ context.Context, sid, field string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(sid)
	if rec == nil {
		rec = &memoryRecord{fields: make(map[string][]byte)}
		s.records[sid] = rec
	}
	rec.fields[field] = append([]byte(nil), value...)
	if ttl > 0 {
		rec.expiresAt = s.clock.Now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) DeleteField(_ context.Context, sid, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec := s.record(sid); rec != nil {
		delete(rec.fields, field)
		if len(rec.fields) == 0 {
			delete(s.records, sid)
		}
	}
	return nil
}

func (s *MemoryStore) Rename(_ context.Context, from, to string) error {
	if from == to {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(from)
	if rec == nil {
		return nil
	}
	delete(s.records, from)
	s.records[to] = rec
	return nil
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for sid := range s.records {
		if s.record(sid) != nil {
			n++
		}
	}
	return n
}
