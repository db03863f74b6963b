package alerts

import (
	"context"
	"errors"
	"time"
)

// Kind identifies the vineyard condition an alert describes.
type Kind string

const (
	KindIrrigation        Kind = "irrigation"
	KindFungalRisk        Kind = "fungal_risk"
	KindHarvestSuggestion Kind = "harvest_suggestion"
	KindWeatherWarning    Kind = "weather_warning"
)

// Level is the severity of an alert.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// ErrNotFound is returned by repositories when an alert id is unknown.
var ErrNotFound = errors.New("alert not found")

// Alert is a detected vineyard condition. At most one active alert exists
// per (kind, location) pair; the manager enforces that invariant.
type Alert struct {
	ID             int64
	Kind           Kind
	Level          Level
	Message        string
	Recommendation string
	LocationID     int
	LocationName   string
	CreatedAt      time.Time
	ExpiresAt      time.Time // zero means no expiry
	Active         bool
	Acknowledged   bool
	AcknowledgedAt time.Time
}

// Candidate is an unpersisted alert produced by a rule evaluation. TTL is
// relative; the manager stamps CreatedAt/ExpiresAt from its clock on submit.
type Candidate struct {
	Kind           Kind
	Level          Level
	Message        string
	Recommendation string
	LocationID     int
	LocationName   string
	TTL            time.Duration
}

// DTO is the wire representation of an alert.
type DTO struct {
	ID             int64   `json:"id"`
	AlertType      string  `json:"alert_type"`
	Level          string  `json:"level"`
	Message        string  `json:"message"`
	Recommendation string  `json:"recommendation"`
	CityID         int     `json:"city_id"`
	CityName       string  `json:"city_name"`
	CreatedAt      string  `json:"created_at"`
	ExpiresAt      *string `json:"expires_at"`
	IsActive       bool    `json:"is_active"`
	IsAcknowledged bool    `json:"is_acknowledged"`
	AcknowledgedAt *string `json:"acknowledged_at"`
}

// ToDTO converts an alert into its wire representation.
func (a Alert) ToDTO() DTO {
	dto := DTO{
		ID:             a.ID,
		AlertType:      string(a.Kind),
		Level:          string(a.Level),
		Message:        a.Message,
		Recommendation: a.Recommendation,
		CityID:         a.LocationID,
		CityName:       a.LocationName,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		IsActive:       a.Active,
		IsAcknowledged: a.Acknowledged,
	}
	if !a.ExpiresAt.IsZero() {
		s := a.ExpiresAt.UTC().Format(time.RFC3339)
		dto.ExpiresAt = &s
	}
	if !a.AcknowledgedAt.IsZero() {
		s := a.AcknowledgedAt.UTC().Format(time.RFC3339)
		dto.AcknowledgedAt = &s
	}
	return dto
}

// Statistics aggregates alerts created within a time window.
type Statistics struct {
	Total        int            `json:"total_alerts"`
	ByKind       map[string]int `json:"by_type"`
	ByLevel      map[string]int `json:"by_level"`
	Active       int            `json:"active_alerts"`
	Acknowledged int            `json:"acknowledged_alerts"`
}

// Repository is the persistence contract for alerts. Implementations return
// ErrNotFound for unknown ids and for missing (kind, location) lookups.
type Repository interface {
	Insert(ctx context.Context, a *Alert) error
	Update(ctx context.Context, a *Alert) error
	Get(ctx context.Context, id int64) (Alert, error)

	// FindActive returns the active alert for a (kind, location) pair.
	FindActive(ctx context.Context, kind Kind, locationID int) (Alert, error)

	// ListActive returns active, unexpired alerts ordered by creation time
	// descending. locationID 0 means all locations.
	ListActive(ctx context.Context, locationID int, now time.Time) ([]Alert, error)

	// ListExpired returns active alerts whose expiry has passed.
	ListExpired(ctx context.Context, now time.Time) ([]Alert, error)

	// ListCreatedSince returns alerts created at or after since.
	// locationID 0 means all locations.
	ListCreatedSince(ctx context.Context, locationID int, since time.Time) ([]Alert, error)

	// PurgeInactiveBefore removes inactive alerts created before cutoff and
	// reports how many were removed.
	PurgeInactiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}
