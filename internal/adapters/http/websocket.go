package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/pkg/metrics"
)

// wsMessage is one client frame. "fix" feeds a location reading,
// "select"/"clear_selection" manage the explicit route selection,
// "subscribe" relays broker-published decisions to this socket.
type wsMessage struct {
	Action   string  `json:"action"` // "fix" | "select" | "clear_selection" | "subscribe"
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	RouteID  string  `json:"route_id,omitempty"`
}

// wsFrame is one server frame. Direct responses carry the decision the
// client's own action produced; relayed frames carry decisions other
// producers pushed through the broker.
type wsFrame struct {
	Type     string                    `json:"type"` // "decision" | "error" | "status"
	Decision *domain.ProximityDecision `json:"decision,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Status   string                    `json:"status,omitempty"`
}

// WebSocketHandler drives one engine session connection. The client
// streams fixes and user actions as JSON frames and receives a
// decision frame back for each; "subscribe" additionally relays
// decisions published on NATS (e.g. by the feeder path) so a viewer
// socket can follow along without sending anything.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		writeFrame := func(f wsFrame) error {
			data, err := json.Marshal(f)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		var relay *nats.Subscription
		defer func() {
			if relay != nil {
				_ = relay.Unsubscribe()
			}
		}()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		ctx := context.Background()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeFrame(wsFrame{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "fix":
				if m.Lat < -90 || m.Lat > 90 || m.Lon < -180 || m.Lon > 180 {
					_ = writeFrame(wsFrame{Type: "error", Error: "lat must be in [-90,90] and lon in [-180,180]"})
					continue
				}
				d, err := deps.Proximity.OnFix(ctx, domain.Fix{
					Lat: m.Lat, Lon: m.Lon, Accuracy: m.Accuracy,
				})
				if err != nil {
					_ = writeFrame(wsFrame{Type: "error", Error: err.Error()})
					continue
				}
				_ = writeFrame(wsFrame{Type: "decision", Decision: &d})

			case "select":
				d, err := deps.Proximity.Select(ctx, m.RouteID)
				if errors.Is(err, domain.ErrRouteNotFound) {
					_ = writeFrame(wsFrame{Type: "error", Error: "route not found: " + m.RouteID})
					continue
				}
				if err != nil {
					_ = writeFrame(wsFrame{Type: "error", Error: err.Error()})
					continue
				}
				_ = writeFrame(wsFrame{Type: "decision", Decision: &d})

			case "clear_selection":
				d, err := deps.Proximity.ClearSelection(ctx)
				if err != nil {
					_ = writeFrame(wsFrame{Type: "error", Error: err.Error()})
					continue
				}
				_ = writeFrame(wsFrame{Type: "decision", Decision: &d})

			case "subscribe":
				if deps.NATS == nil {
					_ = writeFrame(wsFrame{Type: "error", Error: "event relay not configured"})
					continue
				}
				if relay != nil {
					_ = writeFrame(wsFrame{Type: "status", Status: "already subscribed"})
					continue
				}
				relay, err = deps.NATS.Subscribe("trail.decision.>", func(msg *nats.Msg) {
					var d domain.ProximityDecision
					if err := json.Unmarshal(msg.Data, &d); err != nil {
						return
					}
					_ = writeFrame(wsFrame{Type: "decision", Decision: &d})
				})
				if err != nil {
					_ = writeFrame(wsFrame{Type: "error", Error: "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeFrame(wsFrame{Type: "status", Status: "subscribed"})

			default:
				_ = writeFrame(wsFrame{Type: "error", Error: "unknown action: " + m.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
