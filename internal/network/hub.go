// Package network exposes the studio over websockets and REST.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
	"github.com/circle-gon/nyigj-2024/server/internal/view"
)

// Studio is the engine surface the network layer drives.
type Studio interface {
	Snapshot() view.Snapshot
	SelectTask(actorID, name string) error
	MakeBox(actorID string) error
	BuyUpgrade(actorID string, id boxes.UpgradeID) error
}

// MessageType tags every frame sent to clients.
type MessageType string

const (
	MsgTypeSnapshot MessageType = "SNAPSHOT"
	MsgTypeEvent    MessageType = "EVENT"
	MsgTypeError    MessageType = "ERROR"
)

// Message is the envelope for server-to-client frames.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// HubOptions tunes the hub. Zero values fall back to defaults.
type HubOptions struct {
	BroadcastInterval    time.Duration
	BroadcastBuffer      int
	ClientSendBuffer     int
	MaxMessagesPerSecond int
	MaxClients           int
}

func (o *HubOptions) applyDefaults() {
	if o.BroadcastInterval <= 0 {
		o.BroadcastInterval = 100 * time.Millisecond
	}
	if o.BroadcastBuffer <= 0 {
		o.BroadcastBuffer = 256
	}
	if o.ClientSendBuffer <= 0 {
		o.ClientSendBuffer = 64
	}
	if o.MaxMessagesPerSecond <= 0 {
		o.MaxMessagesPerSecond = 10
	}
	if o.MaxClients <= 0 {
		o.MaxClients = 200
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	studio  Studio
	logger  *logger.Logger
	metrics *metrics.Collector
	opts    HubOptions
}

// NewHub initializes a new WebSocket Hub.
func NewHub(studio Studio, log *logger.Logger, m *metrics.Collector, opts HubOptions) *Hub {
	opts.applyDefaults()
	if m == nil {
		m = metrics.Get()
	}
	return &Hub{
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		studio:     studio,
		logger:     log,
		metrics:    m,
		opts:       opts,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.opts.MaxClients {
				h.mu.Unlock()
				client.close()
				h.logger.Warn("client rejected, hub is full", "client", client.id, "max", h.opts.MaxClients)
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("websocket client connected", "client", client.id)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected", "client", client.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.trySend(message) {
					// Slow consumer.
					client.close()
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a message to every client. It drops the message when the
// broadcast queue is full.
func (h *Hub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to serialize message for broadcast", "type", msg.Type, "err", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping message", "type", msg.Type)
	}
}

// BroadcastEvent relays a ledger event to every client.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	h.Broadcast(Message{Type: MsgTypeEvent, Timestamp: event.Timestamp.Unix(), Payload: event})
}

// BroadcastSnapshot pushes the current state to every client.
func (h *Hub) BroadcastSnapshot() {
	h.Broadcast(Message{Type: MsgTypeSnapshot, Timestamp: time.Now().Unix(), Payload: h.studio.Snapshot()})
}

// StartSnapshotBroadcaster pushes a snapshot every broadcast interval while
// at least one client is connected.
func (h *Hub) StartSnapshotBroadcaster(ctx context.Context) {
	go func() {
		interval := time.NewTicker(h.opts.BroadcastInterval)
		defer interval.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-interval.C:
				if h.ClientCount() > 0 {
					h.BroadcastSnapshot()
				}
			}
		}
	}()
}

// StartEventPoller polls the EventLog and relays new non-tick events.
// Ticks are already reflected in the snapshots.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog) {
	go func() {
		pollInterval := time.NewTicker(200 * time.Millisecond)
		defer pollInterval.Stop()

		lastSeq := eventLog.LastSeq()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				for _, event := range eventLog.Since(lastSeq) {
					lastSeq = event.Seq
					if event.Type == events.EventTypeUpdate {
						continue
					}
					h.BroadcastEvent(event)
				}
			}
		}
	}()
}

// ServeWS upgrades the request and starts the client's pumps.
// GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.opts.MaxClients {
		jsonError(w, "Too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.RecordWSError()
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := NewClient(h, conn)
	client.queue(Message{Type: MsgTypeSnapshot, Timestamp: time.Now().Unix(), Payload: h.studio.Snapshot()})
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
