package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned when no reading is available for a location.
var ErrNoData = errors.New("no weather data for location")

// Provider abstracts the external weather data source.
type Provider interface {
	Name() string
	Configured() bool
	Fetch(ctx context.Context, loc Location) (Reading, error)
}

// Repository is the contract the reading store (in-memory or persistent)
// must satisfy. Slices returned by Recent are ordered newest first.
type Repository interface {
	Save(ctx context.Context, r Reading) error
	Latest(ctx context.Context, locationID int) (Reading, error)
	LatestByName(ctx context.Context, name string) (Reading, error)
	Recent(ctx context.Context, locationID int, limit int) ([]Reading, error)
	LatestPerLocation(ctx context.Context) ([]Reading, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
