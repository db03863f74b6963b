package store

import (
	"context"
	"sync"
	"time"

	"github.com/rpfaria/vinecast/internal/weather"
)

// MemoryReadings is a concurrency-safe in-memory weather.Repository.
// Used when no database is configured.
type MemoryReadings struct {
	mu sync.RWMutex

	// key: location id, value: readings ordered oldest to newest
	data   map[int][]weather.Reading
	byName map[string]int

	// retention configuration
	maxHistory int           // max number of readings per location (0 = unlimited)
	maxAge     time.Duration // max age of readings (0 = unlimited)
}

// NewMemoryReadings creates a reading store with optional limits.
func NewMemoryReadings(maxHistory int, maxAge time.Duration) *MemoryReadings {
	return &MemoryReadings{
		data:       make(map[int][]weather.Reading),
		byName:     make(map[string]int),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Save appends a reading for its location and enforces retention.
func (s *MemoryReadings) Save(_ context.Context, r weather.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byName[r.LocationName] = r.LocationID
	history := append(s.data[r.LocationID], r)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history); i++ {
			if !history[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history) {
			history = history[i:]
		}
	}

	s.data[r.LocationID] = history
	return nil
}

// Latest returns the most recent reading for a location.
func (s *MemoryReadings) Latest(_ context.Context, locationID int) (weather.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return weather.Reading{}, weather.ErrNoData
	}
	return history[len(history)-1], nil
}

// LatestByName returns the most recent reading for a location name.
func (s *MemoryReadings) LatestByName(ctx context.Context, name string) (weather.Reading, error) {
	s.mu.RLock()
	id, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return weather.Reading{}, weather.ErrNoData
	}
	return s.Latest(ctx, id)
}

// Recent returns up to limit readings for a location, newest first.
func (s *MemoryReadings) Recent(_ context.Context, locationID int, limit int) ([]weather.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return nil, weather.ErrNoData
	}

	n := len(history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]weather.Reading, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

// LatestPerLocation returns the newest reading of every location.
func (s *MemoryReadings) LatestPerLocation(_ context.Context) ([]weather.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]weather.Reading, 0, len(s.data))
	for _, history := range s.data {
		if len(history) > 0 {
			out = append(out, history[len(history)-1])
		}
	}
	return out, nil
}

// CountSince reports how many readings were recorded at or after since.
func (s *MemoryReadings) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, history := range s.data {
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Timestamp.Before(since) {
				break
			}
			count++
		}
	}
	return count, nil
}
