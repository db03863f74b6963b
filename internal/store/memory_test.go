package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/store"
	"github.com/rpfaria/vinecast/internal/weather"
)

func reading(locID int, name string, temp float64, ts time.Time) weather.Reading {
	return weather.Reading{
		LocationID:   locID,
		LocationName: name,
		Temperature:  temp,
		Timestamp:    ts,
	}
}

func TestMemoryReadingsLatestAndRecent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReadings(0, 0)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		r := reading(2, "Évora", 20+float64(i), now.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Save(ctx, r))
	}

	latest, err := s.Latest(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 24.0, latest.Temperature)

	byName, err := s.LatestByName(ctx, "Évora")
	require.NoError(t, err)
	assert.Equal(t, latest, byName)

	// Recent is newest first, capped at the limit.
	recent, err := s.Recent(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 24.0, recent[0].Temperature)
	assert.Equal(t, 22.0, recent[2].Temperature)
}

func TestMemoryReadingsNoData(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReadings(0, 0)

	_, err := s.Latest(ctx, 99)
	assert.ErrorIs(t, err, weather.ErrNoData)

	_, err = s.LatestByName(ctx, "Atlantis")
	assert.ErrorIs(t, err, weather.ErrNoData)

	_, err = s.Recent(ctx, 99, 10)
	assert.ErrorIs(t, err, weather.ErrNoData)
}

func TestMemoryReadingsHistoryLimit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReadings(3, 0)
	now := time.Now().UTC()

	for i := 0; i < 10; i++ {
		r := reading(2, "Évora", float64(i), now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Save(ctx, r))
	}

	recent, err := s.Recent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 9.0, recent[0].Temperature)
	assert.Equal(t, 7.0, recent[2].Temperature)
}

func TestMemoryReadingsLatestPerLocation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReadings(0, 0)
	now := time.Now().UTC()

	require.NoError(t, s.Save(ctx, reading(2, "Évora", 30, now.Add(-time.Hour))))
	require.NoError(t, s.Save(ctx, reading(2, "Évora", 31, now)))
	require.NoError(t, s.Save(ctx, reading(5, "Porto", 18, now)))

	all, err := s.LatestPerLocation(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	temps := map[string]float64{}
	for _, r := range all {
		temps[r.LocationName] = r.Temperature
	}
	assert.Equal(t, 31.0, temps["Évora"])
	assert.Equal(t, 18.0, temps["Porto"])
}

func TestMemoryReadingsCountSince(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryReadings(0, 0)
	now := time.Now().UTC()

	require.NoError(t, s.Save(ctx, reading(2, "Évora", 20, now.Add(-2*time.Hour))))
	require.NoError(t, s.Save(ctx, reading(2, "Évora", 21, now.Add(-30*time.Minute))))
	require.NoError(t, s.Save(ctx, reading(5, "Porto", 18, now.Add(-10*time.Minute))))

	count, err := s.CountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemoryAlertsActiveFiltering(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryAlerts()
	now := time.Now().UTC()

	live := alerts.Alert{Kind: alerts.KindIrrigation, LocationID: 2, Active: true,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := alerts.Alert{Kind: alerts.KindFungalRisk, LocationID: 2, Active: true,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	forever := alerts.Alert{Kind: alerts.KindWeatherWarning, LocationID: 5, Active: true,
		CreatedAt: now.Add(-time.Minute)} // zero expiry

	require.NoError(t, s.Insert(ctx, &live))
	require.NoError(t, s.Insert(ctx, &expired))
	require.NoError(t, s.Insert(ctx, &forever))

	active, err := s.ListActive(ctx, 0, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Newest first.
	assert.Equal(t, live.ID, active[0].ID)
	assert.Equal(t, forever.ID, active[1].ID)

	onlyEvora, err := s.ListActive(ctx, 2, now)
	require.NoError(t, err)
	require.Len(t, onlyEvora, 1)
	assert.Equal(t, live.ID, onlyEvora[0].ID)

	gone, err := s.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, expired.ID, gone[0].ID)
}

func TestMemoryAlertsUpdateUnknown(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryAlerts()

	err := s.Update(ctx, &alerts.Alert{ID: 42})
	assert.ErrorIs(t, err, alerts.ErrNotFound)
}
