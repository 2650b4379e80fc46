package network

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/boxes"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Player action types accepted over the socket.
const (
	ActionSelectTask = "SELECT_TASK"
	ActionMakeBox    = "MAKE_BOX"
	ActionBuyUpgrade = "BUY_UPGRADE"
)

var (
	ErrUnknownAction = errors.New("unknown action type")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// PlayerAction represents an incoming command from the frontend.
type PlayerAction struct {
	Type    string `json:"type"`               // SELECT_TASK, MAKE_BOX or BUY_UPGRADE
	Target  string `json:"target,omitempty"`   // stage name or upgrade id
	ActorID string `json:"actor_id,omitempty"` // defaults to the connection id
}

// ActionError is sent back to the client whose action was rejected.
type ActionError struct {
	Action PlayerAction `json:"action"`
	Error  string       `json:"error"`
}

// Client is one websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	limiter *rate.Limiter
	logger  *logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	perSecond := hub.opts.MaxMessagesPerSecond
	id := "ws-" + uuid.NewString()[:8]
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.opts.ClientSendBuffer),
		id:      id,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
		logger:  hub.logger.With("client", id),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.close()
	}
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// trySend enqueues without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close ends the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// queue sends a message to this client only.
func (c *Client) queue(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to serialize message", "err", err)
		return
	}
	if !c.trySend(payload) {
		c.hub.metrics.RecordWSError()
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.logger.Warn("websocket read failed", "err", err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.logger.Warn("failed to parse PlayerAction", "err", err)
			c.queue(Message{Type: MsgTypeError, Timestamp: time.Now().Unix(), Payload: ActionError{Error: "invalid message"}})
			continue
		}

		c.logger.Debug("action received", "action", action.Type, "target", action.Target)
		if err := c.handlePlayerAction(action); err != nil {
			c.queue(Message{Type: MsgTypeError, Timestamp: time.Now().Unix(), Payload: ActionError{Action: action, Error: err.Error()}})
		}
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) error {
	if !c.limiter.Allow() {
		c.logger.Warn("rate limit exceeded", "action", action.Type)
		return ErrRateLimited
	}
	if action.ActorID == "" {
		action.ActorID = c.id
	}

	err := applyAction(c.hub.studio, action)
	if err != nil {
		c.logger.Warn("player action rejected", "action", action.Type, "target", action.Target, "err", err)
		return err
	}
	c.logger.Event("PLAYER_ACTION_"+action.Type, action.ActorID, action.Target)
	return nil
}

// applyAction routes an action to the studio's action API.
func applyAction(studio Studio, action PlayerAction) error {
	switch action.Type {
	case ActionSelectTask:
		return studio.SelectTask(action.ActorID, action.Target)
	case ActionMakeBox:
		return studio.MakeBox(action.ActorID)
	case ActionBuyUpgrade:
		return studio.BuyUpgrade(action.ActorID, boxes.UpgradeID(action.Target))
	default:
		return ErrUnknownAction
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Queued messages are coalesced into one frame, separated by newlines.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
			c.hub.metrics.RecordWSMessage(false)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
