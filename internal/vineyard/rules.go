// Package vineyard evaluates viticulture rules against weather readings.
// The engine is pure: every check is a function of its explicit inputs and
// produces at most one candidate alert per rule.
package vineyard

import (
	"fmt"
	"time"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/weather"
)

// Thresholds holds every rule constant. Read-only after initialization.
type Thresholds struct {
	// Irrigation rule
	IrrigationTempC       float64 // fire above this temperature (strict)
	IrrigationHighTempC   float64 // escalate to high above this (strict)
	IrrigationHumidityPct float64 // fire below this humidity (strict)
	IrrigationDryReadings int     // no-rain window length

	// Fungal-risk rule
	FungalHumidityPct    float64 // favorable at or above
	FungalTempMinC       float64 // favorable band, inclusive
	FungalTempMaxC       float64
	FungalFavorableHours int // fire at or above
	FungalHighHours      int // escalate to high at or above

	// Harvest rule
	HarvestStabilityC float64 // max temperature variation, inclusive
	HarvestWindow     int     // forecast readings considered
	HarvestTempMinC   float64 // ideal band, inclusive
	HarvestTempMaxC   float64
	HarvestMaxWindMS  float64 // inclusive

	// DryPrecipMM is the precipitation at or below which a reading counts
	// as rain-free.
	DryPrecipMM float64

	// Alert lifetimes
	IrrigationTTL time.Duration
	FungalTTL     time.Duration
	HarvestTTL    time.Duration
}

// DefaultThresholds returns the standard viticulture thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IrrigationTempC:       25.0,
		IrrigationHighTempC:   30.0,
		IrrigationHumidityPct: 40.0,
		IrrigationDryReadings: 3,

		FungalHumidityPct:    80.0,
		FungalTempMinC:       15.0,
		FungalTempMaxC:       25.0,
		FungalFavorableHours: 6,
		FungalHighHours:      12,

		HarvestStabilityC: 3.0,
		HarvestWindow:     5,
		HarvestTempMinC:   18.0,
		HarvestTempMaxC:   28.0,
		HarvestMaxWindMS:  15.0,

		DryPrecipMM: 0.1,

		IrrigationTTL: 12 * time.Hour,
		FungalTTL:     24 * time.Hour,
		HarvestTTL:    48 * time.Hour,
	}
}

// Engine evaluates the rules. Stateless; safe for concurrent use.
type Engine struct {
	t Thresholds
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{t: t}
}

// ForecastWindow reports how many readings the harvest rule considers.
func (e *Engine) ForecastWindow() int {
	return e.t.HarvestWindow
}

// EvaluateAll runs every rule against the current reading. recent and
// forecast are ordered newest first; recent feeds the irrigation and fungal
// rules, forecast feeds the harvest rule.
func (e *Engine) EvaluateAll(current weather.Reading, recent, forecast []weather.Reading) []alerts.Candidate {
	var out []alerts.Candidate

	if c := e.CheckIrrigation(current, recent); c != nil {
		out = append(out, *c)
	}
	if c := e.CheckFungalRisk(current, recent); c != nil {
		out = append(out, *c)
	}
	if c := e.CheckHarvest(current, forecast); c != nil {
		out = append(out, *c)
	}
	return out
}

// CheckIrrigation fires when the current reading is hot and dry and the last
// N readings were all rain-free.
func (e *Engine) CheckIrrigation(current weather.Reading, recent []weather.Reading) *alerts.Candidate {
	tempHigh := current.Temperature > e.t.IrrigationTempC
	humidityLow := current.Humidity < e.t.IrrigationHumidityPct

	daysWithoutRain := 0
	for _, r := range window(recent, e.t.IrrigationDryReadings) {
		if r.PrecipMM <= e.t.DryPrecipMM {
			daysWithoutRain++
		}
	}
	noRainPeriod := daysWithoutRain >= e.t.IrrigationDryReadings

	if !tempHigh || !humidityLow || !noRainPeriod {
		return nil
	}

	c := &alerts.Candidate{
		Kind:         alerts.KindIrrigation,
		LocationID:   current.LocationID,
		LocationName: current.LocationName,
		TTL:          e.t.IrrigationTTL,
	}
	if current.Temperature > e.t.IrrigationHighTempC {
		c.Level = alerts.LevelHigh
		c.Message = fmt.Sprintf("Very high temperature (%.1f°C) and %d days without rain",
			current.Temperature, daysWithoutRain)
		c.Recommendation = "Irrigate immediately. Water early in the morning or late in the evening."
	} else {
		c.Level = alerts.LevelMedium
		c.Message = fmt.Sprintf("Dry conditions: %.1f°C, %d days without rain",
			current.Temperature, daysWithoutRain)
		c.Recommendation = "Consider irrigating within the next 24h. Check the soil before watering."
	}
	return c
}

// CheckFungalRisk fires when the current reading is favorable to fungi and
// enough of the last 24 readings were favorable as well. One reading counts
// as roughly one hour of coverage.
func (e *Engine) CheckFungalRisk(current weather.Reading, recent []weather.Reading) *alerts.Candidate {
	if !e.fungalFavorable(current) {
		return nil
	}

	favorableHours := 0
	for _, r := range window(recent, 24) {
		if e.fungalFavorable(r) {
			favorableHours++
		}
	}
	if favorableHours < e.t.FungalFavorableHours {
		return nil
	}

	c := &alerts.Candidate{
		Kind:         alerts.KindFungalRisk,
		LocationID:   current.LocationID,
		LocationName: current.LocationName,
		TTL:          e.t.FungalTTL,
	}
	if favorableHours >= e.t.FungalHighHours {
		c.Level = alerts.LevelHigh
		c.Message = fmt.Sprintf("High fungal disease risk: %dh of favorable conditions", favorableHours)
		c.Recommendation = "Apply preventive fungicide. Improve canopy ventilation."
	} else {
		c.Level = alerts.LevelMedium
		c.Message = fmt.Sprintf("Conditions favorable to fungi: humidity %.0f%%", current.Humidity)
		c.Recommendation = "Monitor the vines. Prepare preventive treatment if needed."
	}
	return c
}

func (e *Engine) fungalFavorable(r weather.Reading) bool {
	return r.Humidity >= e.t.FungalHumidityPct &&
		r.Temperature >= e.t.FungalTempMinC &&
		r.Temperature <= e.t.FungalTempMaxC
}

// CheckHarvest evaluates the harvest decision ladder against the current
// reading and the forecast window. First match wins.
func (e *Engine) CheckHarvest(current weather.Reading, forecast []weather.Reading) *alerts.Candidate {
	win := window(forecast, e.t.HarvestWindow)

	minTemp, maxTemp := current.Temperature, current.Temperature
	for _, r := range win {
		if r.Temperature < minTemp {
			minTemp = r.Temperature
		}
		if r.Temperature > maxTemp {
			maxTemp = r.Temperature
		}
	}
	tempStable := maxTemp-minTemp <= e.t.HarvestStabilityC

	tempIdeal := current.Temperature >= e.t.HarvestTempMinC &&
		current.Temperature <= e.t.HarvestTempMaxC
	windOK := current.WindSpeed <= e.t.HarvestMaxWindMS

	noRainForecast := true
	for _, r := range window(forecast, 3) {
		if r.PrecipMM > e.t.DryPrecipMM {
			noRainForecast = false
			break
		}
	}

	skyClear := current.Condition == weather.ConditionClear ||
		current.Condition == weather.ConditionClouds
	goodConditions := tempStable && tempIdeal && windOK && skyClear

	c := &alerts.Candidate{
		Kind:         alerts.KindHarvestSuggestion,
		LocationID:   current.LocationID,
		LocationName: current.LocationName,
		TTL:          e.t.HarvestTTL,
	}
	switch {
	case goodConditions && noRainForecast:
		c.Level = alerts.LevelHigh
		c.Message = fmt.Sprintf("Excellent harvest conditions: %.1f°C, stable weather", current.Temperature)
		c.Recommendation = "Ideal harvest window. The next 2-3 days look favorable."
	case goodConditions:
		c.Level = alerts.LevelMedium
		c.Message = "Good conditions, but rain is expected"
		c.Recommendation = "Consider harvesting urgently before the rain."
	case tempIdeal && windOK:
		c.Level = alerts.LevelLow
		c.Message = "Acceptable harvest conditions"
		c.Recommendation = "Harvest is possible, but keep monitoring the weather."
	default:
		return nil
	}
	return c
}

// window returns the first n readings, or all of them when fewer exist.
func window(readings []weather.Reading, n int) []weather.Reading {
	if len(readings) <= n {
		return readings
	}
	return readings[:n]
}
