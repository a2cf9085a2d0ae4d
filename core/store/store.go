package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/siherrmann/mapper/model"
)

// Store accumulates relationships keyed by source id.
// Replace drops every earlier relationship of the source id, an empty slice
// records a processed source without relationships.
// ReplaceAll applies several entries at once, either all of them or none.
type Store interface {
	Replace(ctx context.Context, sourceID string, relationships []*model.Relationship) error
	ReplaceAll(ctx context.Context, entries []Entry) error
	Get(ctx context.Context, sourceID string) ([]*model.Relationship, error)
	All(ctx context.Context) ([]*model.Relationship, error)
	SourceIDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Entry holds the complete relationships of one source id.
type Entry struct {
	SourceID      string
	Relationships []*model.Relationship
}

// CheckEntry returns an error if a relationship of the entry belongs to another source.
func CheckEntry(entry Entry) error {
	for _, relationship := range entry.Relationships {
		if relationship.SourceID != entry.SourceID {
			return fmt.Errorf("relationship source %q does not match %q", relationship.SourceID, entry.SourceID)
		}
	}
	return nil
}

// MemoryStore is a Store held in memory for one mapping session.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	entries map[string][]*model.Relationship
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string][]*model.Relationship{},
	}
}

// Replace sets the relationships of sourceID. A source keeps its position from its first write.
func (s *MemoryStore) Replace(ctx context.Context, sourceID string, relationships []*model.Relationship) error {
	return s.ReplaceAll(ctx, []Entry{{SourceID: sourceID, Relationships: relationships}})
}

// ReplaceAll sets the relationships of every entry in order under one lock.
// Nothing is written if an entry is invalid.
func (s *MemoryStore) ReplaceAll(ctx context.Context, entries []Entry) error {
	copied := make([][]*model.Relationship, len(entries))
	for i, entry := range entries {
		if err := CheckEntry(entry); err != nil {
			return err
		}
		copied[i] = make([]*model.Relationship, len(entry.Relationships))
		copy(copied[i], entry.Relationships)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range entries {
		if _, ok := s.entries[entry.SourceID]; !ok {
			s.order = append(s.order, entry.SourceID)
		}
		s.entries[entry.SourceID] = copied[i]
	}
	return nil
}

// Get returns the relationships of sourceID, nil if the source was never stored.
func (s *MemoryStore) Get(ctx context.Context, sourceID string) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	relationships, ok := s.entries[sourceID]
	if !ok {
		return nil, nil
	}
	result := make([]*model.Relationship, len(relationships))
	copy(result, relationships)
	return result, nil
}

// All returns every stored relationship ordered by source then insertion.
func (s *MemoryStore) All(ctx context.Context) ([]*model.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*model.Relationship{}
	for _, sourceID := range s.order {
		result = append(result, s.entries[sourceID]...)
	}
	return result, nil
}

// SourceIDs returns the stored source ids in order of their first write.
func (s *MemoryStore) SourceIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.order))
	copy(result, s.order)
	return result, nil
}

// Clear removes all entries
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.entries = map[string][]*model.Relationship{}
	return nil
}

// Len returns the number of stored source ids
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
