// Package memstore provides an in-memory MatchStore used by tests and as a
// storage-free development mode. Records are deep-copied on the way in and
// out so callers never share mutable state with the store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/tile-duel/internal/domain"
)

// Store is a mutex-guarded in-memory match store.
type Store struct {
	mu      sync.RWMutex
	matches map[string]*domain.Match
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{matches: make(map[string]*domain.Match)}
}

// Get returns the match or domain.ErrMatchNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return m.Clone(), nil
}

// Create inserts a new match, failing on duplicate id.
func (s *Store) Create(ctx context.Context, m *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("match %s already exists", m.ID)
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

// Update replaces the stored record.
func (s *Store) Update(ctx context.Context, m *domain.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[m.ID]; !ok {
		return domain.ErrMatchNotFound
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

// Delete removes a match. Deleting an absent match is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
	return nil
}

// ListExpirable returns ids of matches past expiry or done beyond the
// retention grace.
func (s *Store) ListExpirable(ctx context.Context, nowMs, doneRetentionMs int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, m := range s.matches {
		if nowMs > m.ExpiresAt {
			ids = append(ids, id)
			continue
		}
		if m.Status == domain.StatusDone && m.EndedAt != 0 && nowMs-m.EndedAt >= doneRetentionMs {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of stored matches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}
