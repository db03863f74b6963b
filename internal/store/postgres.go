package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/weather"
)

// OpenPostgres opens a gorm connection and migrates the schema.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&readingRecord{}, &alertRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

type readingRecord struct {
	ID           uint      `gorm:"primaryKey"`
	LocationID   int       `gorm:"index:idx_readings_loc_ts,priority:1"`
	LocationName string    `gorm:"size:100;index"`
	Temperature  float64
	Humidity     float64
	PrecipMM     float64
	WindSpeed    float64
	Condition    string `gorm:"size:32"`
	Pressure     float64
	Timestamp    time.Time `gorm:"index:idx_readings_loc_ts,priority:2"`
}

func (readingRecord) TableName() string { return "readings" }

func toReadingRecord(r weather.Reading) readingRecord {
	return readingRecord{
		LocationID:   r.LocationID,
		LocationName: r.LocationName,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		PrecipMM:     r.PrecipMM,
		WindSpeed:    r.WindSpeed,
		Condition:    string(r.Condition),
		Pressure:     r.Pressure,
		Timestamp:    r.Timestamp,
	}
}

func (rec readingRecord) toReading() weather.Reading {
	return weather.Reading{
		LocationID:   rec.LocationID,
		LocationName: rec.LocationName,
		Temperature:  rec.Temperature,
		Humidity:     rec.Humidity,
		PrecipMM:     rec.PrecipMM,
		WindSpeed:    rec.WindSpeed,
		Condition:    weather.Condition(rec.Condition),
		Pressure:     rec.Pressure,
		Timestamp:    rec.Timestamp,
	}
}

// PostgresReadings is a gorm-backed weather.Repository.
type PostgresReadings struct {
	db *gorm.DB
}

func NewPostgresReadings(db *gorm.DB) *PostgresReadings {
	return &PostgresReadings{db: db}
}

func (s *PostgresReadings) Save(ctx context.Context, r weather.Reading) error {
	rec := toReadingRecord(r)
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *PostgresReadings) Latest(ctx context.Context, locationID int) (weather.Reading, error) {
	var rec readingRecord
	err := s.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("timestamp desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return weather.Reading{}, weather.ErrNoData
	}
	if err != nil {
		return weather.Reading{}, err
	}
	return rec.toReading(), nil
}

func (s *PostgresReadings) LatestByName(ctx context.Context, name string) (weather.Reading, error) {
	var rec readingRecord
	err := s.db.WithContext(ctx).
		Where("location_name = ?", name).
		Order("timestamp desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return weather.Reading{}, weather.ErrNoData
	}
	if err != nil {
		return weather.Reading{}, err
	}
	return rec.toReading(), nil
}

func (s *PostgresReadings) Recent(ctx context.Context, locationID int, limit int) ([]weather.Reading, error) {
	var recs []readingRecord
	q := s.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, weather.ErrNoData
	}

	out := make([]weather.Reading, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toReading())
	}
	return out, nil
}

func (s *PostgresReadings) LatestPerLocation(ctx context.Context) ([]weather.Reading, error) {
	var recs []readingRecord
	err := s.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (location_id) * FROM readings
		     ORDER BY location_id, timestamp DESC`).
		Scan(&recs).Error
	if err != nil {
		return nil, err
	}

	out := make([]weather.Reading, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toReading())
	}
	return out, nil
}

func (s *PostgresReadings) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&readingRecord{}).
		Where("timestamp >= ?", since).
		Count(&count).Error
	return int(count), err
}

type alertRecord struct {
	ID             int64 `gorm:"primaryKey"`
	Kind           string `gorm:"size:32;index:idx_alerts_kind_loc_active"`
	Level          string `gorm:"size:16"`
	Message        string `gorm:"size:255"`
	Recommendation string
	LocationID     int    `gorm:"index:idx_alerts_kind_loc_active"`
	LocationName   string `gorm:"size:100"`
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	Active         bool `gorm:"index:idx_alerts_kind_loc_active"`
	Acknowledged   bool
	AcknowledgedAt *time.Time
}

func (alertRecord) TableName() string { return "vineyard_alerts" }

func toAlertRecord(a alerts.Alert) alertRecord {
	rec := alertRecord{
		ID:             a.ID,
		Kind:           string(a.Kind),
		Level:          string(a.Level),
		Message:        a.Message,
		Recommendation: a.Recommendation,
		LocationID:     a.LocationID,
		LocationName:   a.LocationName,
		CreatedAt:      a.CreatedAt,
		Active:         a.Active,
		Acknowledged:   a.Acknowledged,
	}
	if !a.ExpiresAt.IsZero() {
		t := a.ExpiresAt
		rec.ExpiresAt = &t
	}
	if !a.AcknowledgedAt.IsZero() {
		t := a.AcknowledgedAt
		rec.AcknowledgedAt = &t
	}
	return rec
}

func (rec alertRecord) toAlert() alerts.Alert {
	a := alerts.Alert{
		ID:             rec.ID,
		Kind:           alerts.Kind(rec.Kind),
		Level:          alerts.Level(rec.Level),
		Message:        rec.Message,
		Recommendation: rec.Recommendation,
		LocationID:     rec.LocationID,
		LocationName:   rec.LocationName,
		CreatedAt:      rec.CreatedAt,
		Active:         rec.Active,
		Acknowledged:   rec.Acknowledged,
	}
	if rec.ExpiresAt != nil {
		a.ExpiresAt = *rec.ExpiresAt
	}
	if rec.AcknowledgedAt != nil {
		a.AcknowledgedAt = *rec.AcknowledgedAt
	}
	return a
}

// PostgresAlerts is a gorm-backed alerts.Repository.
type PostgresAlerts struct {
	db *gorm.DB
}

func NewPostgresAlerts(db *gorm.DB) *PostgresAlerts {
	return &PostgresAlerts{db: db}
}

func (s *PostgresAlerts) Insert(ctx context.Context, a *alerts.Alert) error {
	rec := toAlertRecord(*a)
	rec.ID = 0
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	a.ID = rec.ID
	return nil
}

func (s *PostgresAlerts) Update(ctx context.Context, a *alerts.Alert) error {
	rec := toAlertRecord(*a)
	res := s.db.WithContext(ctx).Model(&alertRecord{ID: rec.ID}).
		Select("Kind", "Level", "Message", "Recommendation", "CreatedAt",
			"ExpiresAt", "Active", "Acknowledged", "AcknowledgedAt").
		Updates(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

func (s *PostgresAlerts) Get(ctx context.Context, id int64) (alerts.Alert, error) {
	var rec alertRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return alerts.Alert{}, alerts.ErrNotFound
	}
	if err != nil {
		return alerts.Alert{}, err
	}
	return rec.toAlert(), nil
}

func (s *PostgresAlerts) FindActive(ctx context.Context, kind alerts.Kind, locationID int) (alerts.Alert, error) {
	var rec alertRecord
	err := s.db.WithContext(ctx).
		Where("kind = ? AND location_id = ? AND active = ?", string(kind), locationID, true).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return alerts.Alert{}, alerts.ErrNotFound
	}
	if err != nil {
		return alerts.Alert{}, err
	}
	return rec.toAlert(), nil
}

func (s *PostgresAlerts) ListActive(ctx context.Context, locationID int, now time.Time) ([]alerts.Alert, error) {
	q := s.db.WithContext(ctx).
		Where("active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if locationID != 0 {
		q = q.Where("location_id = ?", locationID)
	}

	var recs []alertRecord
	if err := q.Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toAlerts(recs), nil
}

func (s *PostgresAlerts) ListExpired(ctx context.Context, now time.Time) ([]alerts.Alert, error) {
	var recs []alertRecord
	err := s.db.WithContext(ctx).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toAlerts(recs), nil
}

func (s *PostgresAlerts) ListCreatedSince(ctx context.Context, locationID int, since time.Time) ([]alerts.Alert, error) {
	q := s.db.WithContext(ctx).Where("created_at >= ?", since)
	if locationID != 0 {
		q = q.Where("location_id = ?", locationID)
	}

	var recs []alertRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return toAlerts(recs), nil
}

func (s *PostgresAlerts) PurgeInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("active = ? AND created_at < ?", false, cutoff).
		Delete(&alertRecord{})
	return int(res.RowsAffected), res.Error
}

func toAlerts(recs []alertRecord) []alerts.Alert {
	out := make([]alerts.Alert, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toAlert())
	}
	return out
}
