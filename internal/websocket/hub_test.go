package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"testops/internal/logging"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logging.Discard())
	go hub.Run(ctx)

	upgrader := gorillaws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("topic"))
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, topic string) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?topic=" + topic
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesTopicSubscribers(t *testing.T) {
	hub, srv := startHub(t)
	runs := dial(t, srv, "runs")
	other := dial(t, srv, "other")

	require.Eventually(t, func() bool {
		return hub.Subscribers("runs") == 1 && hub.Subscribers("other") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast("runs", "run_created", map[string]int{"id": 7})

	runs.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Topic   string         `json:"topic"`
		Type    string         `json:"type"`
		Payload map[string]int `json:"payload"`
	}
	require.NoError(t, runs.ReadJSON(&msg))
	assert.Equal(t, "runs", msg.Topic)
	assert.Equal(t, "run_created", msg.Type)
	assert.Equal(t, 7, msg.Payload["id"])

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "other topics receive nothing")
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "runs")

	require.Eventually(t, func() bool { return hub.Subscribers("runs") == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers("runs") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastDoesNotBlockWithoutRun(t *testing.T) {
	hub := NewHub(logging.Discard())
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast("runs", "run_created", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}
}
