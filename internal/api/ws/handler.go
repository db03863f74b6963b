// Package ws exposes the real-time channel: a websocket endpoint whose
// connections subscribe to locations on the notification hub.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/rpfaria/vinecast/internal/bus"
	"github.com/rpfaria/vinecast/internal/logger"
)

const (
	writeWait      = 10 * time.Second    // time allowed to write a message to the peer
	pongWait       = 60 * time.Second    // time allowed to read the next pong
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

// clientMessage is the shape of every client-to-server event.
type clientMessage struct {
	Event    string `json:"event"`
	CityName string `json:"city_name"`
}

// Upgrade rejects plain HTTP requests to the websocket endpoint.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the websocket handler bound to the hub.
func Handler(hub *bus.Hub) fiber.Handler {
	log := logger.WithComponent("ws")

	return websocket.New(func(ws *websocket.Conn) {
		conn := hub.Connect()

		done := make(chan struct{})
		go writePump(ws, conn, done, log)
		readPump(ws, hub, conn, log)

		// Disconnect closes the event stream, which lets writePump drain
		// and exit before the handler returns.
		hub.Disconnect(conn)
		<-done
	})
}

// readPump reads client events until the connection drops.
func readPump(ws *websocket.Conn, hub *bus.Hub, conn *bus.Conn, log zerolog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", conn.ID).Msg("read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug().Err(err).Str("client_id", conn.ID).Msg("malformed client message")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		switch msg.Event {
		case "subscribe_city":
			if msg.CityName != "" {
				hub.Subscribe(ctx, conn, msg.CityName)
			}
		case "unsubscribe_city":
			if msg.CityName != "" {
				hub.Unsubscribe(conn, msg.CityName)
			}
		case "get_weather_status":
			hub.SendStatus(conn)
		case "request_latest_data":
			if msg.CityName != "" {
				hub.SendLatest(ctx, conn, msg.CityName)
			}
		default:
			log.Debug().Str("event", msg.Event).Str("client_id", conn.ID).Msg("unknown client event")
		}
		cancel()
	}
}

// writePump forwards hub events to the peer and keeps the connection alive
// with pings. Returns when the hub closes the connection's event stream or a
// write fails.
func writePump(ws *websocket.Conn, conn *bus.Conn, done chan<- struct{}, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
		close(done)
	}()

	for {
		select {
		case e, ok := <-conn.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(e)
			if err != nil {
				log.Error().Err(err).Str("client_id", conn.ID).Msg("failed to marshal event")
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("client_id", conn.ID).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
