package http_test

import (
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"

	handler "github.com/sztanko/madeira-pass/internal/adapters/http"
	"github.com/sztanko/madeira-pass/internal/core/domain"
)

type wsClientFrame struct {
	Action   string  `json:"action"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	RouteID  string  `json:"route_id,omitempty"`
}

type wsServerFrame struct {
	Type     string                    `json:"type"`
	Decision *domain.ProximityDecision `json:"decision,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Status   string                    `json:"status,omitempty"`
}

// dialWS serves the app on a loopback listener and opens a socket
// against /ws. app.Test cannot carry the upgrade, so this one surface
// gets a real connection.
func dialWS(t *testing.T, deps *handler.Dependencies) *websocket.Conn {
	t.Helper()

	app := setupApp(deps)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/ws"
	var conn *websocket.Conn
	for i := 0; i < 40; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeWS(t *testing.T, conn *websocket.Conn, frame wsClientFrame) {
	t.Helper()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readWS(t *testing.T, conn *websocket.Conn) wsServerFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame wsServerFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestWebSocketFixFrames(t *testing.T) {
	conn := dialWS(t, makeDeps(t))

	// On the unpaid paying trail: the decision frame carries a warning.
	writeWS(t, conn, wsClientFrame{Action: "fix", Lat: 32.751, Lon: -16.949})
	frame := readWS(t, conn)
	if frame.Type != "decision" || frame.Decision == nil {
		t.Fatalf("expected a decision frame, got %+v", frame)
	}
	if frame.Decision.Action != domain.ActionShowWarning {
		t.Errorf("expected show-warning on the unpaid trail, got %s", frame.Decision.Action)
	}
	if frame.Decision.NearestRouteID != "PR8" {
		t.Errorf("expected nearest PR8, got %q", frame.Decision.NearestRouteID)
	}
	if !frame.Decision.WithinThreshold {
		t.Error("fix on the trail should be within the threshold")
	}

	// Far from every trail: decision drops to none.
	writeWS(t, conn, wsClientFrame{Action: "fix", Lat: 32.70, Lon: -17.05})
	frame = readWS(t, conn)
	if frame.Type != "decision" || frame.Decision == nil {
		t.Fatalf("expected a decision frame, got %+v", frame)
	}
	if frame.Decision.Action != domain.ActionNone {
		t.Errorf("expected none far from every trail, got %s", frame.Decision.Action)
	}
}

func TestWebSocketSelectionFrames(t *testing.T) {
	conn := dialWS(t, makeDeps(t))

	// Explicit selection: show-info regardless of distance.
	writeWS(t, conn, wsClientFrame{Action: "select", RouteID: "PR8"})
	frame := readWS(t, conn)
	if frame.Type != "decision" || frame.Decision == nil {
		t.Fatalf("expected a decision frame, got %+v", frame)
	}
	if frame.Decision.Action != domain.ActionShowInfo {
		t.Errorf("selection should yield show-info, got %s", frame.Decision.Action)
	}
	if !frame.Decision.Selected || frame.Decision.NearestRouteID != "PR8" {
		t.Errorf("expected selected PR8, got %+v", frame.Decision)
	}
	if !math.IsInf(frame.Decision.DistanceMeters, 1) {
		t.Errorf("selection without a fix should carry +Inf distance, got %f", frame.Decision.DistanceMeters)
	}

	// Selecting a route the catalogue does not know is an error frame,
	// and the selection stays untouched.
	writeWS(t, conn, wsClientFrame{Action: "select", RouteID: "PR99"})
	frame = readWS(t, conn)
	if frame.Type != "error" || !strings.Contains(frame.Error, "PR99") {
		t.Fatalf("expected a route-not-found error frame, got %+v", frame)
	}

	// Clearing hands control back to the automatic decision.
	writeWS(t, conn, wsClientFrame{Action: "clear_selection"})
	frame = readWS(t, conn)
	if frame.Type != "decision" || frame.Decision == nil {
		t.Fatalf("expected a decision frame, got %+v", frame)
	}
	if frame.Decision.Selected {
		t.Error("clear_selection must drop the selected flag")
	}
	if frame.Decision.Action != domain.ActionNone {
		t.Errorf("no fix seen yet, expected none after clearing, got %s", frame.Decision.Action)
	}
}

func TestWebSocketErrorFrames(t *testing.T) {
	conn := dialWS(t, makeDeps(t))

	// Malformed JSON.
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	frame := readWS(t, conn)
	if frame.Type != "error" || frame.Error != "invalid JSON" {
		t.Fatalf("expected the invalid JSON error frame, got %+v", frame)
	}

	// Out-of-range coordinates never reach the engine.
	writeWS(t, conn, wsClientFrame{Action: "fix", Lat: 91, Lon: 0})
	frame = readWS(t, conn)
	if frame.Type != "error" || !strings.Contains(frame.Error, "lat") {
		t.Fatalf("expected a coordinate validation error frame, got %+v", frame)
	}

	// Unknown action.
	writeWS(t, conn, wsClientFrame{Action: "teleport"})
	frame = readWS(t, conn)
	if frame.Type != "error" || !strings.Contains(frame.Error, "teleport") {
		t.Fatalf("expected an unknown-action error frame, got %+v", frame)
	}

	// Subscribe without a broker configured.
	writeWS(t, conn, wsClientFrame{Action: "subscribe"})
	frame = readWS(t, conn)
	if frame.Type != "error" || frame.Error != "event relay not configured" {
		t.Fatalf("expected the relay-not-configured error frame, got %+v", frame)
	}

	// The session survives every error frame: a valid fix still works.
	writeWS(t, conn, wsClientFrame{Action: "fix", Lat: 32.751, Lon: -16.949})
	frame = readWS(t, conn)
	if frame.Type != "decision" || frame.Decision == nil {
		t.Fatalf("expected a decision frame after errors, got %+v", frame)
	}
}
