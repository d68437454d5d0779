package telemetry

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and streams every event published to bus
// to the observer as JSON, one frame per event. Grounded on the teacher's
// internal/server/websocket.go wsHandler, generalized from the mesh
// EventBus to telemetry.Bus.
func ServeWS(bus *Bus, log *zap.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("telemetry: websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := bus.Subscribe()
	for event := range sub {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug("telemetry: websocket write failed, closing", zap.Error(err))
			return
		}
	}
}

// Handler returns an http.HandlerFunc suitable for mounting at a path like
// "/telemetry".
func Handler(bus *Bus, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ServeWS(bus, log, w, r)
	}
}
