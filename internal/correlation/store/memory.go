package store

import (
	"context"
	"sync"
	"time"

	"vcrelay/internal/correlation/models"
	"vcrelay/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map with lazy TTL expiry. It is the
// default backend for single-instance deployments and tests.
type InMemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	records map[string]*entry
}

type entry struct {
	record   *models.Record
	storedAt time.Time
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemory builds a store whose entries expire ttl after their last write.
func NewInMemory(ttl time.Duration, opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		ttl:     ttl,
		clock:   time.Now,
		records: make(map[string]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, token string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *e.record
	copied.Token = token
	return &copied, nil
}

func (s *InMemoryStore) Put(_ context.Context, token string, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	copied.Token = token
	s.records[token] = &entry{record: &copied, storedAt: s.clock()}
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, token string, fn func(*models.Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return sentinel.ErrNotFound
	}
	copied := *e.record
	copied.Token = token
	if err := fn(&copied); err != nil {
		return err
	}
	s.records[token] = &entry{record: &copied, storedAt: s.clock()}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

// live returns the entry for token if present and within TTL, dropping it
// otherwise. Callers hold s.mu.
func (s *InMemoryStore) live(token string) (*entry, bool) {
	e, ok := s.records[token]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.clock().Sub(e.storedAt) >= s.ttl {
		delete(s.records, token)
		return nil, false
	}
	return e, true
}
