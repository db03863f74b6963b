package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rpfaria/vinecast/internal/logger"
	"github.com/rpfaria/vinecast/internal/observability"
)

// DefaultRetention is how long inactive alerts are kept before being purged.
const DefaultRetention = 30 * 24 * time.Hour

// Manager owns the alert lifecycle: deduplication of candidates against
// active alerts, acknowledgement, deactivation, and time-based sweeps.
type Manager struct {
	repo      Repository
	clock     clockwork.Clock
	retention time.Duration
	log       zerolog.Logger

	// keyLocks serializes submissions per (kind, location) so a concurrent
	// scheduled cycle and a manual collect cannot race into two active
	// alerts for the same pair. Cross-key submissions proceed in parallel.
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewManager creates a Manager. A nil clock defaults to the real clock and a
// non-positive retention defaults to DefaultRetention.
func NewManager(repo Repository, retention time.Duration, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{
		repo:      repo,
		clock:     clock,
		retention: retention,
		log:       logger.WithComponent("alerts"),
		keyLocks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(kind Kind, locationID int) *sync.Mutex {
	key := fmt.Sprintf("%s:%d", kind, locationID)

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.keyLocks[key] = l
	}
	return l
}

// Submit reconciles a candidate against the active alert for its
// (kind, location) pair: an existing active alert is refreshed in place
// (level, message, recommendation, expiry, creation timestamp), otherwise a
// new active, unacknowledged alert is created.
func (m *Manager) Submit(ctx context.Context, c Candidate) (Alert, error) {
	l := m.lockFor(c.Kind, c.LocationID)
	l.Lock()
	defer l.Unlock()

	now := m.clock.Now().UTC()
	var expires time.Time
	if c.TTL > 0 {
		expires = now.Add(c.TTL)
	}

	existing, err := m.repo.FindActive(ctx, c.Kind, c.LocationID)
	switch {
	case err == nil:
		existing.Level = c.Level
		existing.Message = c.Message
		existing.Recommendation = c.Recommendation
		existing.ExpiresAt = expires
		existing.CreatedAt = now
		if err := m.repo.Update(ctx, &existing); err != nil {
			return Alert{}, err
		}
		observability.AlertsSubmittedTotal.WithLabelValues(string(c.Kind), "refreshed").Inc()
		m.log.Debug().
			Int64("alert_id", existing.ID).
			Str("kind", string(c.Kind)).
			Str("city", c.LocationName).
			Msg("alert refreshed")
		return existing, nil

	case errors.Is(err, ErrNotFound):
		a := Alert{
			Kind:           c.Kind,
			Level:          c.Level,
			Message:        c.Message,
			Recommendation: c.Recommendation,
			LocationID:     c.LocationID,
			LocationName:   c.LocationName,
			CreatedAt:      now,
			ExpiresAt:      expires,
			Active:         true,
		}
		if err := m.repo.Insert(ctx, &a); err != nil {
			return Alert{}, err
		}
		observability.AlertsSubmittedTotal.WithLabelValues(string(c.Kind), "created").Inc()
		m.log.Info().
			Int64("alert_id", a.ID).
			Str("kind", string(c.Kind)).
			Str("level", string(c.Level)).
			Str("city", c.LocationName).
			Msg("alert created")
		return a, nil

	default:
		return Alert{}, err
	}
}

// ListActive returns active, unexpired alerts, newest first.
// locationID 0 means all locations.
func (m *Manager) ListActive(ctx context.Context, locationID int) ([]Alert, error) {
	return m.repo.ListActive(ctx, locationID, m.clock.Now().UTC())
}

// Acknowledge marks an alert as acknowledged. An unknown id is a normal
// outcome reported as false, not an error.
func (m *Manager) Acknowledge(ctx context.Context, id int64) (bool, error) {
	a, err := m.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	a.Acknowledged = true
	a.AcknowledgedAt = m.clock.Now().UTC()
	if err := m.repo.Update(ctx, &a); err != nil {
		return false, err
	}
	return true, nil
}

// Deactivate clears an alert's active flag. Same not-found semantics as
// Acknowledge.
func (m *Manager) Deactivate(ctx context.Context, id int64) (bool, error) {
	a, err := m.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	a.Active = false
	if err := m.repo.Update(ctx, &a); err != nil {
		return false, err
	}
	return true, nil
}

// SweepExpired deactivates every active alert whose expiry has passed, then
// removes inactive alerts older than the retention horizon. Idempotent.
func (m *Manager) SweepExpired(ctx context.Context) error {
	now := m.clock.Now().UTC()

	expired, err := m.repo.ListExpired(ctx, now)
	if err != nil {
		return err
	}
	for i := range expired {
		expired[i].Active = false
		if err := m.repo.Update(ctx, &expired[i]); err != nil {
			return err
		}
		observability.AlertsExpiredTotal.Inc()
	}

	purged, err := m.repo.PurgeInactiveBefore(ctx, now.Add(-m.retention))
	if err != nil {
		return err
	}

	if len(expired) > 0 || purged > 0 {
		m.log.Info().
			Int("deactivated", len(expired)).
			Int("purged", purged).
			Msg("expiry sweep completed")
	}
	return nil
}

// Statistics aggregates alerts created within the last windowDays days.
// locationID 0 means all locations.
func (m *Manager) Statistics(ctx context.Context, locationID int, windowDays int) (Statistics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := m.clock.Now().UTC().AddDate(0, 0, -windowDays)

	list, err := m.repo.ListCreatedSince(ctx, locationID, since)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Total:   len(list),
		ByKind:  make(map[string]int),
		ByLevel: make(map[string]int),
	}
	for _, a := range list {
		stats.ByKind[string(a.Kind)]++
		stats.ByLevel[string(a.Level)]++
		if a.Active {
			stats.Active++
		}
		if a.Acknowledged {
			stats.Acknowledged++
		}
	}
	return stats, nil
}
