package alert

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcastToClient(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration races the broadcast; give the hub a beat.
	time.Sleep(20 * time.Millisecond)
	hub.Broadcast(Message{Type: "alert", Alert: &Entry{Message: "Motion detected"}})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	require.NotNil(t, msg.Alert)
	assert.Equal(t, "Motion detected", msg.Alert.Message)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	// Must not block or panic.
	hub.Broadcast(Message{Type: "flash"})
}

func TestLogPushesToHub(t *testing.T) {
	hub := NewHub(zap.NewNop().Sugar())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	l := NewLog(hub)
	l.Add("Detection system activated")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "Detection system activated", msg.Alert.Message)
}
