package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpfaria/vinecast/internal/alerts"
	httpapi "github.com/rpfaria/vinecast/internal/api/http"
	"github.com/rpfaria/vinecast/internal/bus"
	"github.com/rpfaria/vinecast/internal/collector"
	"github.com/rpfaria/vinecast/internal/store"
	"github.com/rpfaria/vinecast/internal/vineyard"
	"github.com/rpfaria/vinecast/internal/weather"
)

type stubProvider struct {
	readings map[string]weather.Reading
}

func (p *stubProvider) Name() string     { return "stub" }
func (p *stubProvider) Configured() bool { return true }

func (p *stubProvider) Fetch(_ context.Context, loc weather.Location) (weather.Reading, error) {
	r, ok := p.readings[loc.Name]
	if !ok {
		return weather.Reading{}, weather.ErrNoData
	}
	return r, nil
}

type testEnv struct {
	app      *fiber.App
	readings *store.MemoryReadings
	alerts   *alerts.Manager
	provider *stubProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	locations := []weather.Location{
		{ID: 2, Name: "Évora", Lat: 38.57, Lon: -7.91, Region: "Alentejo"},
		{ID: 5, Name: "Porto", Lat: 41.15, Lon: -8.61, Region: "Douro"},
	}

	readings := store.NewMemoryReadings(0, 0)
	manager := alerts.NewManager(store.NewMemoryAlerts(), 0, clockwork.NewRealClock())
	provider := &stubProvider{readings: map[string]weather.Reading{}}

	coll := collector.New(collector.Deps{
		Provider:  provider,
		Readings:  readings,
		Engine:    vineyard.NewEngine(vineyard.DefaultThresholds()),
		Alerts:    manager,
		Hub:       bus.New(locations, readings),
		Locations: locations,
	})

	app := fiber.New()
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Readings:  readings,
		Alerts:    manager,
		Collector: coll,
		Provider:  provider,
		Locations: locations,
	})

	return &testEnv{app: app, readings: readings, alerts: manager, provider: provider}
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func portoReading() weather.Reading {
	return weather.Reading{
		LocationID:   5,
		LocationName: "Porto",
		Temperature:  19.5,
		Humidity:     70.0,
		Condition:    weather.ConditionClouds,
		Timestamp:    time.Now().UTC(),
	}
}

func TestGetCurrentWeatherEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/current", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["data"])
}

func TestGetCurrentWeatherByCity(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.readings.Save(context.Background(), portoReading()))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/current?city=Porto", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)

	first, ok := data[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Porto", first["city_name"])
	assert.Equal(t, 19.5, first["temperature"])
}

func TestGetCurrentWeatherUnknownCity(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/current?city=Atlantis", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["data"])
}

func TestGetCities(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/cities", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	cities, ok := body["cities"].([]interface{})
	require.True(t, ok)
	assert.Len(t, cities, 2)
}

func TestAnalyzeUnknownCityReturns404(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/analyze/Atlantis", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnalyzeReturnsConditionsAndAlerts(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.readings.Save(context.Background(), portoReading()))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/analyze/Porto", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Porto", body["city"])

	conditions, ok := body["current_conditions"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 19.5, conditions["temperature"])
	assert.NotNil(t, body["alerts"])
}

func TestCollectEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.provider.readings["Porto"] = portoReading()

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, "/api/weather/collect", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	collected, ok := body["cities_collected"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, collected, "Porto")
}

func TestWeatherStatus(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.readings.Save(context.Background(), portoReading()))

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/weather/status", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	status, ok := body["status"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, status["collecting"])
	assert.Equal(t, float64(2), status["cities_monitored"])
	assert.Equal(t, float64(1), status["recent_records"])
	assert.Equal(t, true, status["api_key_configured"])
}

func TestListAlerts(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.alerts.Submit(context.Background(), alerts.Candidate{
		Kind:         alerts.KindFungalRisk,
		Level:        alerts.LevelHigh,
		Message:      "test",
		LocationID:   5,
		LocationName: "Porto",
		TTL:          time.Hour,
	})
	require.NoError(t, err)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/alerts", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	// Filtering by another city returns nothing.
	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/alerts?city_id=2", nil))
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, float64(0), body["count"])
}

func TestAlertStatisticsValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/api/alerts/statistics?days=120", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodGet, "/api/alerts/statistics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	stats, ok := body["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), stats["total_alerts"])
}

func TestAcknowledgeAndDeactivateAlert(t *testing.T) {
	env := newTestEnv(t)

	a, err := env.alerts.Submit(context.Background(), alerts.Candidate{
		Kind:         alerts.KindIrrigation,
		Level:        alerts.LevelMedium,
		LocationID:   2,
		LocationName: "Évora",
		TTL:          time.Hour,
	})
	require.NoError(t, err)

	base := fmt.Sprintf("/api/alerts/%d", a.ID)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, base+"/acknowledge", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodPost, base+"/deactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := env.alerts.ListActive(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAcknowledgeUnknownAlertReturns404(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.app.Test(httptest.NewRequest(http.MethodPost, "/api/alerts/9999/acknowledge", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = env.app.Test(httptest.NewRequest(http.MethodPost, "/api/alerts/9999/deactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
