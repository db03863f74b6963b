package httpapi

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/collector"
	"github.com/rpfaria/vinecast/internal/weather"
)

var validate = validator.New()

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Readings  weather.Repository
	Alerts    *alerts.Manager
	Collector *collector.Collector
	Provider  weather.Provider
	Locations []weather.Location
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	api := app.Group("/api")

	api.Get("/weather/current", func(c *fiber.Ctx) error {
		ctx := c.Context()
		city := c.Query("city")

		var data []weather.Reading
		if city != "" {
			r, err := deps.Readings.LatestByName(ctx, city)
			if err != nil && !errors.Is(err, weather.ErrNoData) {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
			}
			if err == nil {
				data = append(data, r)
			}
		} else {
			var err error
			data, err = deps.Readings.LatestPerLocation(ctx)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
			}
		}

		return c.JSON(fiber.Map{
			"success":   true,
			"data":      data,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.Get("/weather/cities", func(c *fiber.Ctx) error {
		cities := make([]fiber.Map, 0, len(deps.Locations))
		for _, loc := range deps.Locations {
			cities = append(cities, fiber.Map{
				"name":   loc.Name,
				"region": loc.Region,
				"lat":    loc.Lat,
				"lon":    loc.Lon,
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"cities":  cities,
		})
	})

	api.Get("/weather/analyze/:city", func(c *fiber.Ctx) error {
		ctx := c.Context()
		city, err := url.PathUnescape(c.Params("city"))
		if err != nil || city == "" {
			return fiber.NewError(fiber.StatusBadRequest, "invalid city name")
		}

		current, err := deps.Readings.LatestByName(ctx, city)
		if errors.Is(err, weather.ErrNoData) {
			return fiber.NewError(fiber.StatusNotFound, "no weather data for "+city)
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		analyzed, err := deps.Collector.Analyze(ctx, city)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "analysis failed")
		}

		dtos := make([]alerts.DTO, 0, len(analyzed))
		for _, a := range analyzed {
			dtos = append(dtos, a.ToDTO())
		}

		return c.JSON(fiber.Map{
			"success": true,
			"city":    city,
			"current_conditions": fiber.Map{
				"temperature":       current.Temperature,
				"humidity":          current.Humidity,
				"precipitation":     current.PrecipMM,
				"wind_speed":        current.WindSpeed,
				"weather_condition": current.Condition,
				"timestamp":         current.Timestamp.UTC().Format(time.RFC3339),
			},
			"alerts":             dtos,
			"analysis_timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.Post("/weather/collect", func(c *fiber.Ctx) error {
		collected, err := deps.Collector.RunOnce(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "collection failed")
		}
		return c.JSON(fiber.Map{
			"success":          true,
			"message":          "collection completed",
			"cities_collected": collected,
		})
	})

	api.Get("/weather/status", func(c *fiber.Ctx) error {
		recent, err := deps.Readings.CountSince(c.Context(), time.Now().UTC().Add(-time.Hour))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to query recent records")
		}
		return c.JSON(fiber.Map{
			"success": true,
			"status": fiber.Map{
				"collecting":         deps.Collector.Collecting(),
				"cities_monitored":   len(deps.Locations),
				"recent_records":     recent,
				"api_key_configured": deps.Provider.Configured(),
			},
		})
	})

	api.Get("/alerts", func(c *fiber.Ctx) error {
		cityID := c.QueryInt("city_id", 0)

		active, err := deps.Alerts.ListActive(c.Context(), cityID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch alerts")
		}

		dtos := make([]alerts.DTO, 0, len(active))
		for _, a := range active {
			dtos = append(dtos, a.ToDTO())
		}
		return c.JSON(fiber.Map{
			"success": true,
			"alerts":  dtos,
			"count":   len(dtos),
		})
	})

	api.Get("/alerts/statistics", func(c *fiber.Ctx) error {
		req := statisticsQuery{
			CityID: c.QueryInt("city_id", 0),
			Days:   c.QueryInt("days", 7),
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		stats, err := deps.Alerts.Statistics(c.Context(), req.CityID, req.Days)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute statistics")
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"statistics": stats,
		})
	})

	api.Post("/alerts/:id/acknowledge", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid alert id")
		}

		ok, err := deps.Alerts.Acknowledge(c.Context(), int64(id))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to acknowledge alert")
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "alert not found")
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "alert acknowledged",
		})
	})

	api.Post("/alerts/:id/deactivate", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid alert id")
		}

		ok, err := deps.Alerts.Deactivate(c.Context(), int64(id))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to deactivate alert")
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "alert not found")
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "alert deactivated",
		})
	})
}

// statisticsQuery holds query parameters for the statistics endpoint.
type statisticsQuery struct {
	CityID int `validate:"gte=0"`
	Days   int `validate:"gte=1,lte=90"`
}
