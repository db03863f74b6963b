// Package bus fans new readings and alerts out to connected clients.
// Delivery is best-effort: a slow consumer never blocks a producer.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpfaria/vinecast/internal/alerts"
	"github.com/rpfaria/vinecast/internal/logger"
	"github.com/rpfaria/vinecast/internal/observability"
	"github.com/rpfaria/vinecast/internal/weather"
)

// EventType names a server-to-client event.
type EventType string

const (
	EventConnectionEstablished   EventType = "connection_established"
	EventSubscriptionConfirmed   EventType = "subscription_confirmed"
	EventUnsubscriptionConfirmed EventType = "unsubscription_confirmed"
	EventWeatherData             EventType = "weather_data"
	EventWeatherUpdate           EventType = "weather_update"
	EventGeneralWeatherUpdate    EventType = "general_weather_update"
	EventVineyardAlert           EventType = "vineyard_alert"
	EventGeneralAlert            EventType = "general_alert"
	EventWeatherStatus           EventType = "weather_status"
	EventSystemMessage           EventType = "system_message"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectionPayload acknowledges a new connection.
type ConnectionPayload struct {
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// SubscriptionPayload confirms a subscribe/unsubscribe.
type SubscriptionPayload struct {
	CityName string `json:"city_name"`
	Message  string `json:"message"`
}

// WeatherPayload carries a full reading. Kind distinguishes the one-shot
// "latest" delivery from the ongoing "real_time" stream.
type WeatherPayload struct {
	City string          `json:"city"`
	Data weather.Reading `json:"data"`
	Kind string          `json:"type"`
}

// DigestPayload is the reduced-field broadcast sent to every connection.
type DigestPayload struct {
	City        string            `json:"city"`
	Temperature float64           `json:"temperature"`
	Humidity    float64           `json:"humidity"`
	Condition   weather.Condition `json:"condition"`
}

// AlertPayload carries a full alert to subscribers of its location.
type AlertPayload struct {
	City  string     `json:"city"`
	Alert alerts.DTO `json:"alert"`
}

// AlertDigestPayload is the reduced alert broadcast sent to every connection.
type AlertDigestPayload struct {
	City      string `json:"city"`
	AlertType string `json:"alert_type"`
	Level     string `json:"level"`
}

// StatusPayload is the snapshot returned by Status.
type StatusPayload struct {
	Collecting         bool     `json:"collecting"`
	Connections        int      `json:"active_connections"`
	AvailableLocations []string `json:"available_cities"`
}

// SystemMessagePayload is an operator broadcast.
type SystemMessagePayload struct {
	Message string `json:"message"`
	Level   string `json:"type"`
}

// sendBuffer bounds the per-connection outbound queue. When it fills, events
// for that connection are dropped rather than blocking the publisher.
const sendBuffer = 64

// Conn represents one connected subscriber.
type Conn struct {
	ID          string
	connectedAt time.Time
	send        chan Event
}

// Events exposes the outbound event stream for the connection's writer.
// The channel is closed on disconnect.
func (c *Conn) Events() <-chan Event {
	return c.send
}

// LatestSource supplies the latest known reading for a location name.
type LatestSource interface {
	LatestByName(ctx context.Context, name string) (weather.Reading, error)
}

// Hub is the publish/subscribe hub. All subscription state is owned here and
// never persisted.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]map[string]struct{} // conn -> subscribed city names

	locations  []weather.Location
	latest     LatestSource
	collecting atomic.Bool
	log        zerolog.Logger
}

func New(locations []weather.Location, latest LatestSource) *Hub {
	return &Hub{
		conns:     make(map[*Conn]map[string]struct{}),
		locations: locations,
		latest:    latest,
		log:       logger.WithComponent("bus"),
	}
}

// SetCollecting records whether the collection worker is running; reported
// through Status.
func (h *Hub) SetCollecting(v bool) {
	h.collecting.Store(v)
}

// Connect registers a new subscriber with an empty subscription set and
// acknowledges the connection to that subscriber only.
func (h *Hub) Connect() *Conn {
	c := &Conn{
		ID:          uuid.NewString(),
		connectedAt: time.Now().UTC(),
		send:        make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	h.mu.Unlock()

	observability.ConnectedClients.Inc()
	h.log.Debug().Str("client_id", c.ID).Msg("client connected")

	h.send(c, Event{
		Type: EventConnectionEstablished,
		Payload: ConnectionPayload{
			ClientID: c.ID,
			Message:  "Connected to the weather service",
		},
		Timestamp: time.Now().UTC(),
	})
	return c
}

// Disconnect removes all subscription state for the connection and closes
// its event stream. Safe to call once per connection.
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
		// Closed under the write lock so no publisher holding the read
		// lock can be mid-delivery on this channel.
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		observability.ConnectedClients.Dec()
		h.log.Debug().Str("client_id", c.ID).Msg("client disconnected")
	}
}

// send delivers to a single connection if it is still registered.
func (h *Hub) send(c *Conn, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	h.deliver(c, e)
}

// Subscribe adds a location to the connection's subscription set and sends
// the latest known reading for it, if any, as a one-shot delivery. Idempotent.
func (h *Hub) Subscribe(ctx context.Context, c *Conn, city string) {
	h.mu.Lock()
	subs, ok := h.conns[c]
	if ok {
		subs[city] = struct{}{}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.send(c, Event{
		Type: EventSubscriptionConfirmed,
		Payload: SubscriptionPayload{
			CityName: city,
			Message:  "Subscribed to updates for " + city,
		},
		Timestamp: time.Now().UTC(),
	})

	if h.latest == nil {
		return
	}
	r, err := h.latest.LatestByName(ctx, city)
	if err != nil {
		return
	}
	h.send(c, Event{
		Type:      EventWeatherData,
		Payload:   WeatherPayload{City: city, Data: r, Kind: "latest"},
		Timestamp: time.Now().UTC(),
	})
}

// Unsubscribe removes a location from the connection's subscription set.
// Idempotent.
func (h *Hub) Unsubscribe(c *Conn, city string) {
	h.mu.Lock()
	subs, ok := h.conns[c]
	if ok {
		delete(subs, city)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.send(c, Event{
		Type: EventUnsubscriptionConfirmed,
		Payload: SubscriptionPayload{
			CityName: city,
			Message:  "Unsubscribed from updates for " + city,
		},
		Timestamp: time.Now().UTC(),
	})
}

// PublishReading delivers a real-time update to every connection subscribed
// to the reading's location, and a digest to every connected client.
func (h *Hub) PublishReading(r weather.Reading) {
	now := time.Now().UTC()
	update := Event{
		Type:      EventWeatherUpdate,
		Payload:   WeatherPayload{City: r.LocationName, Data: r, Kind: "real_time"},
		Timestamp: now,
	}
	digest := Event{
		Type: EventGeneralWeatherUpdate,
		Payload: DigestPayload{
			City:        r.LocationName,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Condition:   r.Condition,
		},
		Timestamp: now,
	}
	observability.EventsPublishedTotal.WithLabelValues(string(EventWeatherUpdate)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, subs := range h.conns {
		if _, ok := subs[r.LocationName]; ok {
			h.deliver(c, update)
		}
		h.deliver(c, digest)
	}
}

// PublishAlert delivers the full alert to subscribers of its location and a
// digest to every connected client.
func (h *Hub) PublishAlert(a alerts.Alert) {
	now := time.Now().UTC()
	detail := Event{
		Type:      EventVineyardAlert,
		Payload:   AlertPayload{City: a.LocationName, Alert: a.ToDTO()},
		Timestamp: now,
	}
	digest := Event{
		Type: EventGeneralAlert,
		Payload: AlertDigestPayload{
			City:      a.LocationName,
			AlertType: string(a.Kind),
			Level:     string(a.Level),
		},
		Timestamp: now,
	}
	observability.EventsPublishedTotal.WithLabelValues(string(EventVineyardAlert)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c, subs := range h.conns {
		if _, ok := subs[a.LocationName]; ok {
			h.deliver(c, detail)
		}
		h.deliver(c, digest)
	}
}

// SendLatest replies to a connection with the latest reading for a location.
func (h *Hub) SendLatest(ctx context.Context, c *Conn, city string) {
	if h.latest == nil {
		return
	}
	payload := WeatherPayload{City: city, Kind: "latest"}
	if r, err := h.latest.LatestByName(ctx, city); err == nil {
		payload.Data = r
	}
	h.send(c, Event{
		Type:      EventWeatherData,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// SendStatus replies to a connection with the current hub status.
func (h *Hub) SendStatus(c *Conn) {
	h.send(c, Event{
		Type:      EventWeatherStatus,
		Payload:   h.Status(),
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastSystemMessage sends a system message to every connected client.
func (h *Hub) BroadcastSystemMessage(message, level string) {
	e := Event{
		Type:      EventSystemMessage,
		Payload:   SystemMessagePayload{Message: message, Level: level},
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		h.deliver(c, e)
	}
}

// Status returns a snapshot of the hub. No mutation.
func (h *Hub) Status() StatusPayload {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()

	names := make([]string, 0, len(h.locations))
	for _, loc := range h.locations {
		names = append(names, loc.Name)
	}
	return StatusPayload{
		Collecting:         h.collecting.Load(),
		Connections:        n,
		AvailableLocations: names,
	}
}

// deliver enqueues an event without blocking. A full buffer means the client
// is not keeping up; the event is dropped for that client only.
func (h *Hub) deliver(c *Conn, e Event) {
	select {
	case c.send <- e:
	default:
		observability.EventsDroppedTotal.Inc()
		h.log.Warn().
			Str("client_id", c.ID).
			Str("event", string(e.Type)).
			Msg("client buffer full, event dropped")
	}
}
