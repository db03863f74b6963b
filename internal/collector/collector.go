// Package collector drives the periodic fetch-persist-analyze-publish cycle
// for every monitored location.
package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/bus"
	"github.com/rpfaria/vinecast/internal/logger"
	"github.com/rpfaria/vinecast/internal/observability"
	"github.com/rpfaria/vinecast/internal/vineyard"
	"github.com/rpfaria/vinecast/internal/weather"
)

const (
	// fungalWindow is how many recent readings feed the fungal-risk rule.
	fungalWindow = 24
)

// Deps bundles everything one collection cycle needs. The collector holds
// direct handles; no ambient context is involved.
type Deps struct {
	Provider  weather.Provider
	Readings  weather.Repository
	Engine    *vineyard.Engine
	Alerts    *alerts.Manager
	Hub       *bus.Hub
	Locations []weather.Location

	Interval     time.Duration
	FetchTimeout time.Duration
	RetryBackoff time.Duration
	Workers      int
	Clock        clockwork.Clock
}

// Collector runs the collection cycle on a fixed interval. Never more than
// one cycle is in flight at a time; a manual trigger shares the same cycle.
type Collector struct {
	deps  Deps
	sched *gocron.Scheduler
	log   zerolog.Logger

	runMu      sync.Mutex // one cycle in flight
	collecting atomic.Bool
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// New creates a Collector. Zero-valued durations fall back to the defaults
// (30m interval, 10s fetch timeout, 60s retry backoff).
func New(deps Deps) *Collector {
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Minute
	}
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = 10 * time.Second
	}
	if deps.RetryBackoff <= 0 {
		deps.RetryBackoff = 60 * time.Second
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Collector{
		deps:   deps,
		sched:  gocron.NewScheduler(time.UTC),
		log:    logger.WithComponent("collector"),
		stopCh: make(chan struct{}),
	}
}

// Start schedules the periodic cycle and runs one cycle immediately.
func (c *Collector) Start() error {
	if len(c.deps.Locations) == 0 {
		c.log.Warn().Msg("no locations configured; nothing to schedule")
		return nil
	}

	minutes := int(c.deps.Interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := c.sched.Every(minutes).Minutes().Do(c.runScheduled)
	if err != nil {
		return err
	}

	c.collecting.Store(true)
	if c.deps.Hub != nil {
		c.deps.Hub.SetCollecting(true)
	}
	c.sched.StartAsync()
	c.log.Info().
		Int("locations", len(c.deps.Locations)).
		Dur("interval", c.deps.Interval).
		Msg("periodic collection started")
	return nil
}

// Stop halts further cycles. A cycle already in flight finishes on its own;
// in-flight fetches keep their per-request timeout.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.collecting.Store(false)
	if c.deps.Hub != nil {
		c.deps.Hub.SetCollecting(false)
	}
	c.sched.Stop()
	c.log.Info().Msg("periodic collection stopped")
}

// Collecting reports whether the periodic worker is running.
func (c *Collector) Collecting() bool {
	return c.collecting.Load()
}

func (c *Collector) runScheduled() {
	select {
	case <-c.stopCh:
		return
	default:
	}

	if _, err := c.RunOnce(context.Background()); err != nil {
		c.log.Error().Err(err).
			Dur("backoff", c.deps.RetryBackoff).
			Msg("collection cycle failed, retrying after backoff")
		go func() {
			select {
			case <-c.deps.Clock.After(c.deps.RetryBackoff):
				if _, err := c.RunOnce(context.Background()); err != nil {
					c.log.Error().Err(err).Msg("collection retry failed")
				}
			case <-c.stopCh:
			}
		}()
	}
}

// RunOnce executes one full collection cycle and returns the names of the
// locations that were successfully collected. Safe to call out of band; it
// serializes with the scheduled cycle.
func (c *Collector) RunOnce(ctx context.Context) (collected []string, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			observability.CollectionCyclesTotal.WithLabelValues("error").Inc()
			err = fmt.Errorf("collection cycle panicked: %v", r)
		}
	}()

	start := time.Now()
	c.log.Info().Msg("collection cycle started")

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, c.deps.Workers)
	)
	for _, loc := range c.deps.Locations {
		loc := loc
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if ok := c.collectLocation(ctx, loc); ok {
				mu.Lock()
				collected = append(collected, loc.Name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := c.deps.Alerts.SweepExpired(ctx); err != nil {
		c.log.Error().Err(err).Msg("expiry sweep failed")
	}

	observability.CollectionCyclesTotal.WithLabelValues("ok").Inc()
	observability.CollectionCycleDuration.Observe(time.Since(start).Seconds())
	c.log.Info().
		Int("collected", len(collected)).
		Int("locations", len(c.deps.Locations)).
		Msg("collection cycle completed")
	return collected, nil
}

// collectLocation handles a single location: fetch, persist, analyze,
// publish. Any failure is logged and isolated to this location.
func (c *Collector) collectLocation(ctx context.Context, loc weather.Location) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, c.deps.FetchTimeout)
	defer cancel()

	r, err := c.deps.Provider.Fetch(fetchCtx, loc)
	if err != nil {
		observability.FetchTotal.WithLabelValues(loc.Name, "error").Inc()
		c.log.Warn().Err(err).Str("city", loc.Name).Msg("fetch failed, skipping location")
		return false
	}
	observability.FetchTotal.WithLabelValues(loc.Name, "ok").Inc()

	if err := c.deps.Readings.Save(ctx, r); err != nil {
		c.log.Error().Err(err).Str("city", loc.Name).Msg("failed to persist reading")
		return false
	}

	if _, err := c.Analyze(ctx, loc.Name); err != nil {
		c.log.Error().Err(err).Str("city", loc.Name).Msg("analysis failed")
	}

	if c.deps.Hub != nil {
		c.deps.Hub.PublishReading(r)
	}
	return true
}

// Analyze runs one rule-evaluation pass for a location from stored history,
// submits the resulting candidates, and publishes new or refreshed alerts.
// Returns weather.ErrNoData when no reading exists for the city.
func (c *Collector) Analyze(ctx context.Context, city string) ([]alerts.Alert, error) {
	current, err := c.deps.Readings.LatestByName(ctx, city)
	if err != nil {
		return nil, err
	}

	recent, err := c.deps.Readings.Recent(ctx, current.LocationID, fungalWindow)
	if err != nil {
		return nil, err
	}

	// The forecast window reuses the most recent readings, newest first.
	forecast := recent
	if max := c.deps.Engine.ForecastWindow(); len(forecast) > max {
		forecast = forecast[:max]
	}

	candidates := c.deps.Engine.EvaluateAll(current, recent, forecast)

	var out []alerts.Alert
	for _, cand := range candidates {
		a, err := c.deps.Alerts.Submit(ctx, cand)
		if err != nil {
			c.log.Error().Err(err).
				Str("kind", string(cand.Kind)).
				Str("city", city).
				Msg("failed to submit alert")
			continue
		}
		out = append(out, a)
		if c.deps.Hub != nil {
			c.deps.Hub.PublishAlert(a)
		}
	}
	return out, nil
}
