package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-city/internal/buildings"
	"github.com/talgya/mini-city/internal/clock"
	"github.com/talgya/mini-city/internal/observe"
)

const (
	maxStreamConns = 8
	streamBuffer   = 64
	writeWait      = 5 * time.Second
	pingEvery      = 15 * time.Second
)

// StreamMessage is one frame sent to stream clients.
type StreamMessage struct {
	Type string `json:"type"` // "created", "destroyed" or "tock"
	Data any    `json:"data"`
}

// EventBridge turns city events into stream frames for every connected
// client. Slow clients lose frames rather than stalling event delivery.
type EventBridge struct {
	mu      sync.Mutex
	nextID  uint64
	clients map[uint64]chan []byte
	dropped atomic.Uint64

	// Held here so the weak registrations live as long as the bridge.
	onCreated   *observe.Func[buildings.BuildingCreated]
	onDestroyed *observe.Func[buildings.BuildingDestroyed]
	onTock      *observe.Func[clock.Tock]
}

// NewEventBridge subscribes a bridge to building changes and tocks.
func NewEventBridge(c *clock.Clock, b *buildings.Buildings) *EventBridge {
	eb := &EventBridge{clients: make(map[uint64]chan []byte)}
	created := observe.Func[buildings.BuildingCreated](func(e buildings.BuildingCreated) {
		eb.broadcast(StreamMessage{Type: "created", Data: e})
	})
	destroyed := observe.Func[buildings.BuildingDestroyed](func(e buildings.BuildingDestroyed) {
		eb.broadcast(StreamMessage{Type: "destroyed", Data: e})
	})
	tock := observe.Func[clock.Tock](func(e clock.Tock) {
		eb.broadcast(StreamMessage{Type: "tock", Data: e})
	})
	eb.onCreated, eb.onDestroyed, eb.onTock = &created, &destroyed, &tock

	observe.Register(b.Created(), eb.onCreated)
	observe.Register(b.Destroyed(), eb.onDestroyed)
	observe.Register(c.Tockers(), eb.onTock)
	return eb
}

// Subscribe returns a client id and its frame channel.
func (eb *EventBridge) Subscribe() (uint64, <-chan []byte) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	ch := make(chan []byte, streamBuffer)
	eb.clients[eb.nextID] = ch
	return eb.nextID, ch
}

// Unsubscribe closes the client's channel.
func (eb *EventBridge) Unsubscribe(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if ch, ok := eb.clients[id]; ok {
		delete(eb.clients, id)
		close(ch)
	}
}

// Clients returns the number of subscribers.
func (eb *EventBridge) Clients() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients)
}

// Dropped returns how many frames were discarded for slow clients.
func (eb *EventBridge) Dropped() uint64 { return eb.dropped.Load() }

func (eb *EventBridge) broadcast(m StreamMessage) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("stream encode failed", "type", m.Type, "error", err)
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, ch := range eb.clients {
		select {
		case ch <- data:
		default:
			eb.dropped.Add(1)
		}
	}
}

// handleStream upgrades to a websocket and forwards frames until either side
// goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.bridge.Clients() >= maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, frames := s.bridge.Subscribe()
	defer s.bridge.Unsubscribe(id)
	slog.Info("stream client connected", "client", id)

	// Reader: only needed to notice the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "client", id)
			return
		}
	}
}
