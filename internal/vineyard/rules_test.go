package vineyard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/vineyard"
	"github.com/rpfaria/vinecast/internal/weather"
)

func reading(temp, humidity, precip float64) weather.Reading {
	return weather.Reading{
		LocationID:   2,
		LocationName: "Évora",
		Temperature:  temp,
		Humidity:     humidity,
		PrecipMM:     precip,
		Condition:    weather.ConditionClear,
		Timestamp:    time.Now().UTC(),
	}
}

func dryReadings(n int) []weather.Reading {
	out := make([]weather.Reading, n)
	for i := range out {
		out[i] = reading(26, 35, 0)
	}
	return out
}

func TestIrrigationBoundaries(t *testing.T) {
	e := vineyard.NewEngine(vineyard.DefaultThresholds())

	t.Run("temperature at threshold does not fire", func(t *testing.T) {
		c := e.CheckIrrigation(reading(25.0, 39, 0), dryReadings(3))
		assert.Nil(t, c)
	})

	t.Run("just above threshold fires at medium", func(t *testing.T) {
		c := e.CheckIrrigation(reading(25.1, 39, 0), dryReadings(3))
		require.NotNil(t, c)
		assert.Equal(t, alerts.KindIrrigation, c.Kind)
		assert.Equal(t, alerts.LevelMedium, c.Level)
		assert.Equal(t, 12*time.Hour, c.TTL)
	})

	t.Run("above 30 degrees upgrades to high", func(t *testing.T) {
		c := e.CheckIrrigation(reading(30.1, 39, 0), dryReadings(3))
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelHigh, c.Level)
	})

	t.Run("humidity at threshold does not fire", func(t *testing.T) {
		c := e.CheckIrrigation(reading(26, 40, 0), dryReadings(3))
		assert.Nil(t, c)
	})

	t.Run("rain inside the window does not fire", func(t *testing.T) {
		recent := dryReadings(3)
		recent[1].PrecipMM = 0.5
		c := e.CheckIrrigation(reading(26, 35, 0), recent)
		assert.Nil(t, c)
	})

	t.Run("too few dry readings does not fire", func(t *testing.T) {
		c := e.CheckIrrigation(reading(26, 35, 0), dryReadings(2))
		assert.Nil(t, c)
	})
}

func favorableReadings(n int) []weather.Reading {
	out := make([]weather.Reading, n)
	for i := range out {
		out[i] = reading(20, 85, 0)
	}
	return out
}

func TestFungalRiskHours(t *testing.T) {
	e := vineyard.NewEngine(vineyard.DefaultThresholds())
	current := reading(20, 85, 0)

	t.Run("five favorable hours does not fire", func(t *testing.T) {
		c := e.CheckFungalRisk(current, favorableReadings(5))
		assert.Nil(t, c)
	})

	t.Run("six favorable hours fires at medium", func(t *testing.T) {
		c := e.CheckFungalRisk(current, favorableReadings(6))
		require.NotNil(t, c)
		assert.Equal(t, alerts.KindFungalRisk, c.Kind)
		assert.Equal(t, alerts.LevelMedium, c.Level)
		assert.Equal(t, 24*time.Hour, c.TTL)
	})

	t.Run("twelve favorable hours fires at high", func(t *testing.T) {
		c := e.CheckFungalRisk(current, favorableReadings(12))
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelHigh, c.Level)
	})

	t.Run("unfavorable current does not fire regardless of history", func(t *testing.T) {
		c := e.CheckFungalRisk(reading(20, 70, 0), favorableReadings(24))
		assert.Nil(t, c)
	})

	t.Run("only the last 24 readings count", func(t *testing.T) {
		// 5 favorable followed by 24 unfavorable, newest first: the 24
		// unfavorable ones fill the window.
		recent := favorableReadings(5)
		for i := 0; i < 24; i++ {
			recent = append([]weather.Reading{reading(30, 50, 0)}, recent...)
		}
		c := e.CheckFungalRisk(current, recent)
		assert.Nil(t, c)
	})
}

func TestHarvestLadder(t *testing.T) {
	e := vineyard.NewEngine(vineyard.DefaultThresholds())

	stableForecast := func(n int, temp float64) []weather.Reading {
		out := make([]weather.Reading, n)
		for i := range out {
			out[i] = reading(temp, 50, 0)
		}
		return out
	}

	t.Run("excellent conditions fire at high", func(t *testing.T) {
		c := e.CheckHarvest(reading(22, 50, 0), stableForecast(5, 22))
		require.NotNil(t, c)
		assert.Equal(t, alerts.KindHarvestSuggestion, c.Kind)
		assert.Equal(t, alerts.LevelHigh, c.Level)
		assert.Equal(t, 48*time.Hour, c.TTL)
	})

	t.Run("variation of exactly 3.0 counts as stable", func(t *testing.T) {
		forecast := stableForecast(5, 22)
		forecast[0].Temperature = 25 // current 22 → variation 3.0
		c := e.CheckHarvest(reading(22, 50, 0), forecast)
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelHigh, c.Level)
	})

	t.Run("variation of 3.1 is not stable", func(t *testing.T) {
		forecast := stableForecast(5, 22)
		forecast[0].Temperature = 25.1
		c := e.CheckHarvest(reading(22, 50, 0), forecast)
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelLow, c.Level)
	})

	t.Run("rain in forecast downgrades to medium", func(t *testing.T) {
		forecast := stableForecast(5, 22)
		forecast[2].PrecipMM = 2.0
		c := e.CheckHarvest(reading(22, 50, 0), forecast)
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelMedium, c.Level)
	})

	t.Run("rainy current condition blocks good conditions", func(t *testing.T) {
		current := reading(22, 50, 0)
		current.Condition = weather.ConditionRain
		c := e.CheckHarvest(current, stableForecast(5, 22))
		require.NotNil(t, c)
		assert.Equal(t, alerts.LevelLow, c.Level)
	})

	t.Run("cold and windy yields no alert", func(t *testing.T) {
		current := reading(10, 50, 0)
		current.WindSpeed = 20
		c := e.CheckHarvest(current, stableForecast(5, 10))
		assert.Nil(t, c)
	})
}

func TestEvaluateAllKinds(t *testing.T) {
	e := vineyard.NewEngine(vineyard.DefaultThresholds())

	// Hot, dry, clear, stable: irrigation and harvest fire, fungal does not.
	current := reading(26, 35, 0)
	recent := dryReadings(24)
	for i := range recent {
		recent[i].Temperature = 26
	}

	cands := e.EvaluateAll(current, recent, recent[:5])
	require.Len(t, cands, 2)
	assert.Equal(t, alerts.KindIrrigation, cands[0].Kind)
	assert.Equal(t, alerts.KindHarvestSuggestion, cands[1].Kind)
}
