package transport

import (
	"net/http"

	"github.com/gorilla/websocket"

	"parley/internal/logging"
)

// Observer streams session directives to websocket clients so a UI (or a
// curious developer with websocat) can watch a deliberation live. Clients
// are read-only; messages enter the session through the bus, never here.
type Observer struct {
	bus      *Bus
	upgrader websocket.Upgrader
}

// NewObserver creates an observer over the given bus.
func NewObserver(bus *Bus) *Observer {
	return &Observer{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Local observability endpoint; origin checks are the reverse
			// proxy's job if this is ever exposed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and streams directives until the client
// disconnects or the bus shuts down.
func (o *Observer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Get(logging.CategoryTransport).Warn("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := o.bus.Subscribe(0)
	defer cancel()

	logging.TransportDebug("Observer connected: %s", r.RemoteAddr)

	// Drain client reads so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for msg := range events {
		if err := conn.WriteJSON(msg); err != nil {
			logging.TransportDebug("Observer write failed, disconnecting %s: %v", r.RemoteAddr, err)
			return
		}
	}
}
