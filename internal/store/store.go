// Package store owns the canonical in-memory alarm collection, written
// through to the persistent repository on every mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/logger"
	"wakemeup/internal/repository/alarms"
)

// AlarmStore keeps the alarm collection in memory and persists the whole
// collection synchronously after each mutation. A persistence failure is
// surfaced to the caller; the in-memory change is not rolled back.
type AlarmStore struct {
	// repo is the durable backing for the collection.
	repo alarms.Repository
	// mu protects the in-memory collection.
	mu sync.RWMutex
	// items is the canonical ordered alarm list.
	items []alarm.Alarm
}

// New creates a store backed by the provided repository.
func New(repo alarms.Repository) *AlarmStore {
	return &AlarmStore{
		repo:  repo,
		items: []alarm.Alarm{},
	}
}

// Load replaces the in-memory collection with the persisted one. A missing
// backing file yields an empty collection; any other failure is surfaced.
func (s *AlarmStore) Load(ctx context.Context) error {
	list, err := s.repo.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, alarms.ErrNotFound):
		list = []alarm.Alarm{}
	default:
		return fmt.Errorf("load alarms: %w", err)
	}

	s.mu.Lock()
	s.items = list
	s.mu.Unlock()

	logger.InfoKV(ctx, "Alarms loaded", "count", len(list))

	return nil
}

// List returns a defensive copy of the collection, in stored order.
func (s *AlarmStore) List() []alarm.Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]alarm.Alarm, 0, len(s.items))
	for i := range s.items {
		out = append(out, s.items[i].Clone())
	}

	return out
}

// Get returns a copy of the alarm with the given id.
func (s *AlarmStore) Get(id string) (alarm.Alarm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i].Clone(), true
		}
	}

	return alarm.Alarm{}, false
}

// Add validates and appends the alarm, then persists the collection. Ids are
// unique across the collection; reusing one is rejected before anything
// changes.
func (s *AlarmStore) Add(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()

	for i := range s.items {
		if s.items[i].ID == a.ID {
			s.mu.Unlock()

			return fmt.Errorf("%w: %s", alarm.ErrDuplicateID, a.ID)
		}
	}

	s.items = append(s.items, a.Clone())
	s.mu.Unlock()

	return s.persist(ctx)
}

// Update replaces the alarm with a matching id and persists the collection.
// An unknown id is a no-op: the collection stays unchanged and nothing is
// written to disk.
func (s *AlarmStore) Update(ctx context.Context, a alarm.Alarm) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()

	replaced := false

	for i := range s.items {
		if s.items[i].ID == a.ID {
			s.items[i] = a.Clone()
			replaced = true

			break
		}
	}

	s.mu.Unlock()

	if !replaced {
		logger.WarnKV(ctx, "Update for unknown alarm ignored", "alarm_id", a.ID)

		return nil
	}

	return s.persist(ctx)
}

// Remove deletes the alarm with the given id and persists the collection.
// An unknown id is a no-op without a persist.
func (s *AlarmStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()

	removed := false

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			removed = true

			break
		}
	}

	s.mu.Unlock()

	if !removed {
		return nil
	}

	return s.persist(ctx)
}

// persist writes the whole collection through to the repository.
// The in-memory mutation that preceded a failed persist is kept; the caller
// sees the error and the next successful mutation reconverges the file.
func (s *AlarmStore) persist(ctx context.Context) error {
	s.mu.RLock()
	snapshot := make([]alarm.Alarm, len(s.items))
	copy(snapshot, s.items)
	s.mu.RUnlock()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarms", "error", err)

		return fmt.Errorf("persist alarms: %w", err)
	}

	return nil
}
