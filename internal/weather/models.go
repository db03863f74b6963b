package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "Unknown"
	ConditionClear   Condition = "Clear"
	ConditionClouds  Condition = "Clouds"
	ConditionRain    Condition = "Rain"
	ConditionDrizzle Condition = "Drizzle"
	ConditionStorm   Condition = "Thunderstorm"
	ConditionSnow    Condition = "Snow"
	ConditionMist    Condition = "Mist"
)

// Location is static reference data for a monitored vineyard town.
// Loaded once at startup and shared read-only by all components.
type Location struct {
	ID     int     `json:"id" validate:"required,gt=0"`
	Name   string  `json:"name" validate:"required"`
	Lat    float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon    float64 `json:"lon" validate:"gte=-180,lte=180"`
	Region string  `json:"region" validate:"required"`
}

// Reading is one measurement snapshot for a location. Immutable once created.
type Reading struct {
	LocationID   int       `json:"city_id"`
	LocationName string    `json:"city_name"`
	Temperature  float64   `json:"temperature"` // °C
	Humidity     float64   `json:"humidity"`    // %
	PrecipMM     float64   `json:"precip_mm"`   // last hour, >= 0
	WindSpeed    float64   `json:"wind_speed"`  // m/s
	Condition    Condition `json:"condition"`
	Pressure     float64   `json:"pressure"` // hPa
	Timestamp    time.Time `json:"timestamp"`
}

// DefaultLocations returns the Portuguese wine towns monitored out of the box.
func DefaultLocations() []Location {
	return []Location{
		{ID: 1, Name: "Peso da Régua", Lat: 41.16, Lon: -7.78, Region: "Douro"},
		{ID: 2, Name: "Évora", Lat: 38.57, Lon: -7.91, Region: "Alentejo"},
		{ID: 3, Name: "Reguengos de Monsaraz", Lat: 38.42, Lon: -7.54, Region: "Alentejo"},
		{ID: 4, Name: "Palmela", Lat: 38.57, Lon: -8.90, Region: "Setúbal"},
		{ID: 5, Name: "Porto", Lat: 41.15, Lon: -8.61, Region: "Vinho Verde"},
		{ID: 6, Name: "Lisbon", Lat: 38.72, Lon: -9.14, Region: "Lisboa"},
		{ID: 7, Name: "Braga", Lat: 41.55, Lon: -8.42, Region: "Vinho Verde"},
	}
}
