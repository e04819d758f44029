// Package store persists dossier aggregates and their event outbox. The
// in-memory implementation backs unit tests and local development; the
// Postgres implementation is the production store. Both enforce the same
// optimistic-concurrency contract: an Update based on a stale read fails
// with sentinel.ErrConcurrentModification and writes nothing.
package store

import (
	"context"
	"sync"
	"time"

	"dossierflow/internal/dossier/models"
	"dossierflow/pkg/domain"
	"dossierflow/pkg/platform/sentinel"
)

// InMemory keeps aggregates and outbox under one mutex, mirroring the
// single-row transaction scope of the Postgres store.
type InMemory struct {
	mu       sync.RWMutex
	dossiers map[domain.DossierID]*models.Dossier
	outbox   []models.OutboxEntry
	nextID   int64
}

func NewInMemory() *InMemory {
	return &InMemory{dossiers: make(map[domain.DossierID]*models.Dossier), nextID: 1}
}

// Create inserts a new aggregate and stages its events atomically.
func (s *InMemory) Create(_ context.Context, d *models.Dossier, events []models.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.dossiers[d.ID]; exists {
		return sentinel.ErrConflict
	}
	s.dossiers[d.ID] = d.Clone()
	s.stage(events)
	return nil
}

// FindByID returns a deep copy so callers can only write back through
// Update.
func (s *InMemory) FindByID(_ context.Context, id domain.DossierID) (*models.Dossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dossiers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

// Update writes the aggregate and stages events if and only if the stored
// UpdatedAt still matches what the caller read. The losing writer of a race
// gets ErrConcurrentModification and must re-read.
func (s *InMemory) Update(_ context.Context, d *models.Dossier, expectedUpdatedAt time.Time, events []models.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.dossiers[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return sentinel.ErrConcurrentModification
	}
	s.dossiers[d.ID] = d.Clone()
	s.stage(events)
	return nil
}

func (s *InMemory) stage(events []models.DomainEvent) {
	for _, e := range events {
		s.outbox = append(s.outbox, models.OutboxEntry{
			ID:        s.nextID,
			Event:     e,
			CreatedAt: e.Timestamp,
		})
		s.nextID++
	}
}

// PendingBatch returns up to limit undispatched entries in append order.
func (s *InMemory) PendingBatch(_ context.Context, limit int) ([]models.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var batch []models.OutboxEntry
	for _, entry := range s.outbox {
		if entry.DispatchedAt == nil {
			batch = append(batch, entry)
			if len(batch) == limit {
				break
			}
		}
	}
	return batch, nil
}

// MarkDispatched stamps entries as delivered. Idempotent: re-marking an
// already dispatched entry is a no-op, which at-least-once delivery needs.
func (s *InMemory) MarkDispatched(_ context.Context, ids []int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.outbox {
		if marked[s.outbox[i].ID] && s.outbox[i].DispatchedAt == nil {
			dispatched := now
			s.outbox[i].DispatchedAt = &dispatched
		}
	}
	return nil
}
