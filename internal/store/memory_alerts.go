package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rpfaria/vinecast/internal/alerts"
)

// MemoryAlerts is a concurrency-safe in-memory alerts.Repository.
type MemoryAlerts struct {
	mu     sync.RWMutex
	data   map[int64]alerts.Alert
	nextID int64
}

func NewMemoryAlerts() *MemoryAlerts {
	return &MemoryAlerts{data: make(map[int64]alerts.Alert)}
}

func (s *MemoryAlerts) Insert(_ context.Context, a *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a.ID = s.nextID
	s.data[a.ID] = *a
	return nil
}

func (s *MemoryAlerts) Update(_ context.Context, a *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[a.ID]; !ok {
		return alerts.ErrNotFound
	}
	s.data[a.ID] = *a
	return nil
}

func (s *MemoryAlerts) Get(_ context.Context, id int64) (alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data[id]
	if !ok {
		return alerts.Alert{}, alerts.ErrNotFound
	}
	return a, nil
}

func (s *MemoryAlerts) FindActive(_ context.Context, kind alerts.Kind, locationID int) (alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data {
		if a.Active && a.Kind == kind && a.LocationID == locationID {
			return a, nil
		}
	}
	return alerts.Alert{}, alerts.ErrNotFound
}

func (s *MemoryAlerts) ListActive(_ context.Context, locationID int, now time.Time) ([]alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []alerts.Alert
	for _, a := range s.data {
		if !a.Active {
			continue
		}
		if locationID != 0 && a.LocationID != locationID {
			continue
		}
		if !a.ExpiresAt.IsZero() && !a.ExpiresAt.After(now) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryAlerts) ListExpired(_ context.Context, now time.Time) ([]alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []alerts.Alert
	for _, a := range s.data {
		if a.Active && !a.ExpiresAt.IsZero() && a.ExpiresAt.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryAlerts) ListCreatedSince(_ context.Context, locationID int, since time.Time) ([]alerts.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []alerts.Alert
	for _, a := range s.data {
		if a.CreatedAt.Before(since) {
			continue
		}
		if locationID != 0 && a.LocationID != locationID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryAlerts) PurgeInactiveBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, a := range s.data {
		if !a.Active && a.CreatedAt.Before(cutoff) {
			delete(s.data, id)
			purged++
		}
	}
	return purged, nil
}
