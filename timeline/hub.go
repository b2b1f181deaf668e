package timeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watlab/autocontrol/task"
)

const maxWSConnections = 200

// eventBufferSize bounds the Hub's internal queue between Decision
// (called from the scheduler's goroutine) and Run's broadcast loop, so a
// slow broadcaster never blocks dispatch.
const eventBufferSize = 256

// Hub fans DecisionEvents out to connected websocket clients. Unlike the
// dashboard hub it's adapted from, it pushes as events happen rather than
// polling a ticker, since there's no per-tenant metrics snapshot to
// recompute here.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan DecisionEvent
	mu         sync.RWMutex
}

// NewHub returns a Hub ready for Run.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan DecisionEvent, eventBufferSize),
	}
}

// Decision implements scheduler.Recorder by queuing the event for
// broadcast. Non-blocking: a full buffer drops the event rather than
// stall the scheduler's driver loop.
func (h *Hub) Decision(kind string, t *task.Task) {
	if t == nil {
		return
	}
	e := DecisionEvent{
		TaskID:       t.ID,
		SampleNumber: t.SampleNum,
		TaskType:     t.Type,
		Kind:         kind,
		Timestamp:    time.Now(),
	}
	select {
	case h.events <- e:
	default:
		log.Printf("timeline: event buffer full, dropping %s for task %s", kind, t.ID)
	}
}

// Run is the hub's single-goroutine loop: register/unregister clients and
// broadcast queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("timeline: websocket connection rejected, max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case e := <-h.events:
			h.broadcast(e)
		}
	}
}

func (h *Hub) broadcast(e DecisionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(e); err != nil {
			log.Printf("timeline: websocket write error: %v", err)
			go h.Unregister(conn)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
}

// Register adds conn to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes conn from the broadcast set.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
