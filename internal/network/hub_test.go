package network

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circle-gon/nyigj-2024/server/internal/domain/games"
	"github.com/circle-gon/nyigj-2024/server/internal/engine"
	"github.com/circle-gon/nyigj-2024/server/internal/events"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/logger"
	"github.com/circle-gon/nyigj-2024/server/internal/platform/metrics"
)

type frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestEngine() *engine.Engine {
	return engine.NewEngine(events.NewEventLog(0, nil), logger.Discard(), engine.Options{Metrics: metrics.NewCollector()})
}

func startHub(t *testing.T, eng *engine.Engine, opts HubOptions) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(eng, logger.Discard(), metrics.NewCollector(), opts)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eng.EventLog())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var f frame
			require.NoError(t, json.Unmarshal(line, &f))
			if f.Type == want {
				return f
			}
		}
	}
	t.Fatalf("no %s frame received", want)
	return frame{}
}

func send(t *testing.T, conn *websocket.Conn, action PlayerAction) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(action))
}

func TestHub_SendsSnapshotOnConnect(t *testing.T) {
	eng := newTestEngine()
	_, srv := startHub(t, eng, HubOptions{})
	conn := dial(t, srv)

	f := readUntil(t, conn, MsgTypeSnapshot)
	assert.Contains(t, string(f.Payload), `"doing_action":""`)
}

func TestHub_RoutesActionsToEngine(t *testing.T) {
	eng := newTestEngine()
	_, srv := startHub(t, eng, HubOptions{})
	conn := dial(t, srv)
	readUntil(t, conn, MsgTypeSnapshot)

	send(t, conn, PlayerAction{Type: ActionSelectTask, Target: games.Ideas})

	require.Eventually(t, func() bool {
		eng.ProcessPending()
		return eng.Snapshot().Games.DoingAction == games.Ideas
	}, 2*time.Second, 10*time.Millisecond)

	f := readUntil(t, conn, MsgTypeEvent)
	assert.Contains(t, string(f.Payload), `"TASK_SELECTED"`)
}

func TestHub_RejectsBadActions(t *testing.T) {
	eng := newTestEngine()
	_, srv := startHub(t, eng, HubOptions{})
	conn := dial(t, srv)
	readUntil(t, conn, MsgTypeSnapshot)

	send(t, conn, PlayerAction{Type: ActionSelectTask, Target: games.Mechanics})
	f := readUntil(t, conn, MsgTypeError)
	assert.Contains(t, string(f.Payload), games.ErrIneligible.Error())

	send(t, conn, PlayerAction{Type: "FLY"})
	f = readUntil(t, conn, MsgTypeError)
	assert.Contains(t, string(f.Payload), ErrUnknownAction.Error())
}

func TestHub_RateLimitsClient(t *testing.T) {
	eng := newTestEngine()
	_, srv := startHub(t, eng, HubOptions{MaxMessagesPerSecond: 1})
	conn := dial(t, srv)
	readUntil(t, conn, MsgTypeSnapshot)

	send(t, conn, PlayerAction{Type: ActionMakeBox})
	send(t, conn, PlayerAction{Type: ActionMakeBox})

	f := readUntil(t, conn, MsgTypeError)
	assert.Contains(t, string(f.Payload), ErrRateLimited.Error())
}

func TestHub_EnforcesMaxClients(t *testing.T) {
	eng := newTestEngine()
	hub, srv := startHub(t, eng, HubOptions{MaxClients: 1})
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_BroadcastsSnapshots(t *testing.T) {
	eng := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub, srv := startHub(t, eng, HubOptions{BroadcastInterval: 10 * time.Millisecond})
	hub.StartSnapshotBroadcaster(ctx)

	conn := dial(t, srv)
	readUntil(t, conn, MsgTypeSnapshot)

	require.NoError(t, eng.SelectTask("p", games.Ideas))
	eng.Step(3)

	for i := 0; i < 100; i++ {
		f := readUntil(t, conn, MsgTypeSnapshot)
		if strings.Contains(string(f.Payload), `"doing_action":"Ideas"`) {
			return
		}
	}
	t.Fatal("snapshot never reflected the selection")
}
